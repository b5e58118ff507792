package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArenaPutBytes(t *testing.T) {
	a := New(4)

	off1 := a.Put([]byte("hello"))
	off2 := a.Put([]byte("world!"))

	require.Equal(t, uint32(0), off1)
	require.Equal(t, uint32(5), off2)
	require.Equal(t, []byte("hello"), a.Bytes(off1, 5))
	require.Equal(t, []byte("world!"), a.Bytes(off2, 6))
	require.Equal(t, 11, a.Len())
}

func TestArenaReset(t *testing.T) {
	a := New(0)
	a.Put([]byte("abc"))
	require.Equal(t, 3, a.Len())

	a.Reset()
	require.Equal(t, 0, a.Len())

	off := a.Put([]byte("xyz"))
	require.Equal(t, uint32(0), off)
	require.Equal(t, []byte("xyz"), a.Bytes(off, 3))
}
