package mergeiter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/tablet/arena"
	"github.com/colstore/tablet/memstore"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
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

func buildRecord(t *testing.T, s *schema.Schema, key string, val uint64) *row.Record {
	t.Helper()
	rec, err := row.NewBuilder(s).SetBytes(0, []byte(key)).SetUint(1, val).Build()
	require.NoError(t, err)
	return rec
}

func sourceOver(t *testing.T, s *schema.Schema, rows map[string]uint64) Source {
	t.Helper()
	ms := memstore.New(s)
	for k, v := range rows {
		require.NoError(t, ms.Insert(buildRecord(t, s, k, v)))
	}
	it, err := ms.NewIterator(s)
	require.NoError(t, err)
	return it
}

func drain(t *testing.T, it *Iterator, s *schema.Schema) []string {
	t.Helper()
	require.NoError(t, it.Init())
	blk := row.NewBlock(s, arena.New(64), 4)
	var out []string
	for it.HasNext() {
		n := 4
		require.NoError(t, it.CopyNextRows(&n, blk))
		for i := 0; i < n; i++ {
			out = append(out, fmt.Sprintf("%s=%d", blk.Key(i), blk.Uint(i, 1)))
		}
	}
	return out
}

func TestMergeAcrossSourcesAscending(t *testing.T) {
	s := testSchema(t)
	oldest := sourceOver(t, s, map[string]uint64{"hello from layer 1": 1})
	middle := sourceOver(t, s, map[string]uint64{"hello from layer 2": 2})
	newest := sourceOver(t, s, map[string]uint64{"hello from memstore": 3})

	it := New(s, []Source{oldest, middle, newest})
	out := drain(t, it, s)

	require.Equal(t, []string{
		"hello from layer 1=1",
		"hello from layer 2=2",
		"hello from memstore=3",
	}, out)
}

func TestMergeNewestWinsOnCollision(t *testing.T) {
	s := testSchema(t)
	older := sourceOver(t, s, map[string]uint64{"k": 1})
	newer := sourceOver(t, s, map[string]uint64{"k": 2})

	it := New(s, []Source{older, newer})
	out := drain(t, it, s)

	require.Equal(t, []string{"k=2"}, out)
}

func TestMergeEmptySources(t *testing.T) {
	s := testSchema(t)
	empty := sourceOver(t, s, map[string]uint64{})

	it := New(s, []Source{empty})
	out := drain(t, it, s)
	require.Empty(t, out)
}
