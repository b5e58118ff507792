package layer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/tablet/arena"
	"github.com/colstore/tablet/memstore"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
	"github.com/colstore/tablet/tabletenv"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.Column{
		{Name: "key", Type: schema.Bytes, IsKey: true},
		{Name: "val", Type: schema.Uint64},
	})
	require.NoError(t, err)
	return s
}

func filledMemstore(t *testing.T, s *schema.Schema, n int) *memstore.Memstore {
	t.Helper()
	ms := memstore.New(s)
	for i := 0; i < n; i++ {
		rec, err := row.NewBuilder(s).
			SetBytes(0, []byte(fmt.Sprintf("row %04d", i))).
			SetUint(1, uint64(i)).
			Build()
		require.NoError(t, err)
		require.NoError(t, ms.Insert(rec))
	}
	return ms
}

func writeCFileLayer(t *testing.T, env tabletenv.Environment, dir string, s *schema.Schema, ms *memstore.Memstore) *CFileLayer {
	t.Helper()
	it, err := ms.NewIterator(s)
	require.NoError(t, err)
	require.NoError(t, it.Init())

	_, err = WriteCFileLayer(env, dir, s, it, 0)
	require.NoError(t, err)

	l, err := OpenCFileLayer(env, dir, s, nil)
	require.NoError(t, err)
	return l
}

func TestCFileLayerRoundtrip(t *testing.T) {
	s := testSchema(t)
	env, err := tabletenv.Local(t.TempDir())
	require.NoError(t, err)
	ms := filledMemstore(t, s, 37)

	l := writeCFileLayer(t, env, "layers/0000000000", s, ms)
	defer l.Close()

	require.Equal(t, uint64(37), l.CountRows())

	present, err := l.CheckRowPresent([]byte("row 0012"))
	require.NoError(t, err)
	require.True(t, present)

	present, err = l.CheckRowPresent([]byte("row 9999"))
	require.NoError(t, err)
	require.False(t, present)

	ord, ok, err := l.FindRow([]byte("row 0020"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(20), ord)
}

func TestCFileLayerIteratorAscending(t *testing.T) {
	s := testSchema(t)
	env, err := tabletenv.Local(t.TempDir())
	require.NoError(t, err)
	ms := filledMemstore(t, s, 25)
	l := writeCFileLayer(t, env, "layers/0000000000", s, ms)
	defer l.Close()

	it, err := l.NewRowIterator(s)
	require.NoError(t, err)
	require.NoError(t, it.Init())

	blk := row.NewBlock(s, arena.New(64), 8)
	seen := 0
	for it.HasNext() {
		n := 8
		require.NoError(t, it.CopyNextRows(&n, blk))
		for i := 0; i < n; i++ {
			require.Equal(t, uint64(seen), blk.Uint(i, 1))
			seen++
		}
	}
	require.Equal(t, 25, seen)
}

func TestKeysFlushedLayerDelegatesToFrozenMemstore(t *testing.T) {
	s := testSchema(t)
	env, err := tabletenv.Local(t.TempDir())
	require.NoError(t, err)
	ms := filledMemstore(t, s, 10)

	it, err := ms.NewIterator(s)
	require.NoError(t, err)
	require.NoError(t, it.Init())
	dir := "layers/0000000000"
	require.NoError(t, env.MkdirAll(dir))
	_, err = WriteKeyIndex(env, dir, s, it, 0)
	require.NoError(t, err)

	kfl, err := OpenKeysFlushedLayer(env, dir, s, ms, nil)
	require.NoError(t, err)
	defer kfl.Close()

	require.Equal(t, uint64(10), kfl.CountRows())
	present, err := kfl.CheckRowPresent([]byte("row 0003"))
	require.NoError(t, err)
	require.True(t, present)

	rit, err := kfl.NewRowIterator(s)
	require.NoError(t, err)
	require.NoError(t, rit.Init())
	seen := 0
	blk := row.NewBlock(s, arena.New(64), 4)
	for rit.HasNext() {
		n := 4
		require.NoError(t, rit.CopyNextRows(&n, blk))
		seen += n
	}
	require.Equal(t, 10, seen)
}
