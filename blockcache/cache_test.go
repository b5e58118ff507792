package blockcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMissAndHit(t *testing.T) {
	c := New(1024)
	_, ok := c.Get(Key{File: "a", Offset: 0})
	require.False(t, ok)

	c.Insert(Key{File: "a", Offset: 0}, []byte("hello"))
	v, ok := c.Get(Key{File: "a", Offset: 0})
	require.True(t, ok)
	require.Equal(t, []byte("hello"), v)
	require.EqualValues(t, 5, c.Usage())
}

func TestInsertEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(10)
	c.Insert(Key{File: "a", Offset: 0}, []byte("0123456789")) // exactly fills capacity
	require.EqualValues(t, 10, c.Usage())

	c.Insert(Key{File: "b", Offset: 0}, []byte("xy"))
	// "a" must have been evicted to admit "b".
	_, ok := c.Get(Key{File: "a", Offset: 0})
	require.False(t, ok)
	v, ok := c.Get(Key{File: "b", Offset: 0})
	require.True(t, ok)
	require.Equal(t, []byte("xy"), v)
}

func TestGetRefreshesRecency(t *testing.T) {
	c := New(10)
	c.Insert(Key{File: "a", Offset: 0}, []byte("aaaaa"))
	c.Insert(Key{File: "b", Offset: 0}, []byte("bbbbb"))
	require.EqualValues(t, 10, c.Usage())

	// Touch "a" so it becomes more recently used than "b".
	_, ok := c.Get(Key{File: "a", Offset: 0})
	require.True(t, ok)

	c.Insert(Key{File: "c", Offset: 0}, []byte("ccccc"))
	// "b" is now the least recently used and should be evicted, not "a".
	_, ok = c.Get(Key{File: "a", Offset: 0})
	require.True(t, ok)
	_, ok = c.Get(Key{File: "b", Offset: 0})
	require.False(t, ok)
}

func TestInsertOversizedValueIsDropped(t *testing.T) {
	c := New(4)
	c.Insert(Key{File: "a", Offset: 0}, []byte("too big"))
	_, ok := c.Get(Key{File: "a", Offset: 0})
	require.False(t, ok)
	require.EqualValues(t, 0, c.Usage())
}

func TestInsertOverwritesExistingKey(t *testing.T) {
	c := New(1024)
	c.Insert(Key{File: "a", Offset: 0}, []byte("first"))
	c.Insert(Key{File: "a", Offset: 0}, []byte("second-value"))
	v, ok := c.Get(Key{File: "a", Offset: 0})
	require.True(t, ok)
	require.Equal(t, []byte("second-value"), v)
	require.EqualValues(t, len("second-value"), c.Usage())
}

func TestClose(t *testing.T) {
	c := New(1024)
	c.Insert(Key{File: "a", Offset: 0}, []byte("hello"))
	c.Close()
	require.EqualValues(t, 0, c.Usage())
	_, ok := c.Get(Key{File: "a", Offset: 0})
	require.False(t, ok)
}
