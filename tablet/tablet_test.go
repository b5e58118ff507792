package tablet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/tablet/arena"
	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
	"github.com/colstore/tablet/tabletcfg"
	"github.com/colstore/tablet/tabletenv"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.Column{
		{Name: "key", Type: schema.Bytes, IsKey: true},
		{Name: "val", Type: schema.Uint64},
		{Name: "update_count", Type: schema.Uint32},
	})
	require.NoError(t, err)
	return s
}

func openTestTablet(t *testing.T, s *schema.Schema) *Tablet {
	t.Helper()
	env, err := tabletenv.Local(t.TempDir())
	require.NoError(t, err)
	cfg := tabletcfg.Default()
	cfg.WriteBatchRows = 64
	tb, err := Open(s, env, cfg)
	require.NoError(t, err)
	return tb
}

func insertRow(t *testing.T, tb *Tablet, s *schema.Schema, key string, val uint64) {
	t.Helper()
	rec, err := row.NewBuilder(s).
		SetBytes(0, []byte(key)).
		SetUint(1, val).
		SetUint(2, 0).
		Build()
	require.NoError(t, err)
	require.NoError(t, tb.Insert(rec))
}

// S1 — flush 1000 rows.
func TestScenarioS1FlushAndReopen(t *testing.T) {
	s := testSchema(t)
	env, err := tabletenv.Local(t.TempDir())
	require.NoError(t, err)
	cfg := tabletcfg.Default()

	tb, err := Open(s, env, cfg)
	require.NoError(t, err)
	for k := 0; k < 1000; k++ {
		insertRow(t, tb, s, fmt.Sprintf("row %d", k), uint64(k))
	}
	require.NoError(t, tb.Flush())
	require.Equal(t, uint64(1000), tb.CountRows())

	reopened, err := Open(s, env, cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), reopened.CountRows())

	it, err := reopened.NewRowIterator(s)
	require.NoError(t, err)
	defer it.Close()
	blk := row.NewBlock(s, arena.New(64), 64)
	total := 0
	for it.HasNext() {
		n := 64
		require.NoError(t, it.CopyNextRows(&n, blk))
		total += n
	}
	require.Equal(t, 1000, total)
}

// S2 — duplicate-key insertion.
func TestScenarioS2DuplicateInsert(t *testing.T) {
	s := testSchema(t)
	tb := openTestTablet(t, s)

	insertRow(t, tb, s, "hello world", 12345)
	require.Equal(t, uint64(1), tb.CountRows())

	rec, err := row.NewBuilder(s).SetBytes(0, []byte("hello world")).SetUint(1, 99).SetUint(2, 0).Build()
	require.NoError(t, err)
	err = tb.Insert(rec)
	require.ErrorIs(t, err, errs.ErrAlreadyPresent)
	require.Equal(t, uint64(1), tb.CountRows())

	require.NoError(t, tb.Flush())

	err = tb.Insert(rec)
	require.ErrorIs(t, err, errs.ErrAlreadyPresent)
	require.Equal(t, uint64(1), tb.CountRows())
}

// S3 — merge across layers and memstore.
func TestScenarioS3MergeAcrossLayersAndMemstore(t *testing.T) {
	s := testSchema(t)
	tb := openTestTablet(t, s)

	insertRow(t, tb, s, "hello from layer 1", 1)
	require.NoError(t, tb.Flush())

	insertRow(t, tb, s, "hello from layer 2", 2)
	require.NoError(t, tb.Flush())

	insertRow(t, tb, s, "hello from memstore", 3)

	it, err := tb.NewRowIterator(s)
	require.NoError(t, err)
	defer it.Close()

	blk := row.NewBlock(s, arena.New(64), 8)
	var keys []string
	for it.HasNext() {
		n := 8
		require.NoError(t, it.CopyNextRows(&n, blk))
		for i := 0; i < n; i++ {
			keys = append(keys, string(blk.Key(i)))
		}
	}
	require.Equal(t, []string{
		"hello from layer 1",
		"hello from layer 2",
		"hello from memstore",
	}, keys)
}

// S4 — large merge with updates.
func TestScenarioS4LargeMergeWithUpdates(t *testing.T) {
	s := testSchema(t)
	tb := openTestTablet(t, s)

	// Each update is applied while its row is still in the memstore:
	// updates of layer-resident rows return NotSupported (see
	// TestUpdateLayerResidentRowNotSupported).
	for i := 0; i < 1000; i++ {
		insertRow(t, tb, s, fmt.Sprintf("hello %d", i), uint64(i))
		if i%15 == 0 {
			delta, err := row.NewDelta(s).SetUint(1, uint64(10000+i)).Build()
			require.NoError(t, err)
			require.NoError(t, tb.UpdateRow([]byte(fmt.Sprintf("hello %d", i)), delta))
		}
		if (i+1)%300 == 0 {
			require.NoError(t, tb.Flush())
		}
	}

	it, err := tb.NewRowIterator(s)
	require.NoError(t, err)
	defer it.Close()

	blk := row.NewBlock(s, arena.New(64), 32)
	want := map[uint64]int{}
	for i := 0; i < 1000; i++ {
		if i%15 == 0 {
			want[uint64(10000+i)]++
		} else {
			want[uint64(i)]++
		}
	}
	got := map[uint64]int{}
	total := 0
	for it.HasNext() {
		n := 32
		require.NoError(t, it.CopyNextRows(&n, blk))
		for i := 0; i < n; i++ {
			got[blk.Uint(i, 1)]++
			total++
		}
	}
	require.Equal(t, 1000, total)
	require.Equal(t, want, got)
}

// S5 — compaction.
func TestScenarioS5Compaction(t *testing.T) {
	s := testSchema(t)
	tb := openTestTablet(t, s)

	for batch := 0; batch < 3; batch++ {
		for i := 0; i < 1000; i++ {
			insertRow(t, tb, s, fmt.Sprintf("batch%d-row%04d", batch, i), uint64(batch*1000+i))
		}
		require.NoError(t, tb.Flush())
	}
	require.Equal(t, uint64(3000), tb.CountRows())

	require.NoError(t, tb.Compact())
	require.Equal(t, uint64(3000), tb.CountRows())

	it, err := tb.NewRowIterator(s)
	require.NoError(t, err)
	defer it.Close()

	blk := row.NewBlock(s, arena.New(64), 64)
	var lastKey []byte
	total := 0
	for it.HasNext() {
		n := 64
		require.NoError(t, it.CopyNextRows(&n, blk))
		for i := 0; i < n; i++ {
			k := blk.Key(i)
			if lastKey != nil {
				require.True(t, string(k) > string(lastKey))
			}
			lastKey = append([]byte(nil), k...)
			total++
		}
	}
	require.Equal(t, 3000, total)
}

func TestUpdateLayerResidentRowNotSupported(t *testing.T) {
	s := testSchema(t)
	tb := openTestTablet(t, s)

	insertRow(t, tb, s, "k", 1)
	require.NoError(t, tb.Flush())

	delta, err := row.NewDelta(s).SetUint(1, 2).Build()
	require.NoError(t, err)
	err = tb.UpdateRow([]byte("k"), delta)
	require.ErrorIs(t, err, errs.ErrNotSupported)
}
