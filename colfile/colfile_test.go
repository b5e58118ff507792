package colfile

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/tablet/arena"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
)

func writeUintColumn(t *testing.T, col schema.Column, values []uint64) []byte {
	t.Helper()
	var buf bytes.Buffer
	opt := DefaultWriterOptions()
	opt.BlockRowLimit = 4 // force multiple blocks for a small test set
	w := NewWriter(&buf, col, opt)
	for _, v := range values {
		b := make([]byte, col.Type.Width())
		for i := 0; i < len(b); i++ {
			b[len(b)-1-i] = byte(v >> (8 * i))
		}
		require.NoError(t, w.AppendValue(b))
	}
	require.NoError(t, w.Finish())
	return buf.Bytes()
}

func writeBytesKeyColumn(t *testing.T, col schema.Column, values []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	opt := DefaultWriterOptions()
	opt.BlockRowLimit = 4
	w := NewWriter(&buf, col, opt)
	for _, v := range values {
		require.NoError(t, w.AppendValue([]byte(v)))
	}
	require.NoError(t, w.Finish())
	return buf.Bytes()
}

func TestUintColumnRoundtrip(t *testing.T) {
	col := schema.Column{Name: "val", Type: schema.Uint64}
	values := make([]uint64, 13)
	for i := range values {
		values[i] = uint64(i * 7)
	}
	data := writeUintColumn(t, col, values)

	r, err := Open(bytes.NewReader(data), int64(len(data)), "val", nil, col)
	require.NoError(t, err)
	require.Equal(t, uint64(len(values)), r.RowCount())

	s, err := schema.New([]schema.Column{{Name: "key", Type: schema.Bytes, IsKey: true}, col})
	require.NoError(t, err)
	blk := row.NewBlock(s, arena.New(64), len(values))

	it := r.NewIterator()
	require.True(t, it.HasNext())
	n := len(values)
	require.NoError(t, it.CopyNextValues(&n, blk, 1))
	require.Equal(t, len(values), n)
	for i, v := range values {
		require.Equal(t, v, blk.Uint(i, 1))
	}
	require.False(t, it.HasNext())
}

func TestKeyColumnFindRow(t *testing.T) {
	col := schema.Column{Name: "__key", Type: schema.Bytes, IsKey: true}
	var keys []string
	for i := 0; i < 20; i++ {
		keys = append(keys, fmt.Sprintf("row %03d", i))
	}
	data := writeBytesKeyColumn(t, col, keys)

	r, err := Open(bytes.NewReader(data), int64(len(data)), "__key", nil, col)
	require.NoError(t, err)
	require.Equal(t, uint64(20), r.RowCount())

	ord, ok, err := r.FindRow([]byte("row 013"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(13), ord)

	_, ok, err = r.FindRow([]byte("row 999"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	col := schema.Column{Name: "val", Type: schema.Uint32}
	data := writeUintColumn(t, col, []uint64{1, 2, 3})

	_, err := Open(bytes.NewReader(data), int64(len(data)), "val", nil, schema.Column{Name: "val", Type: schema.Uint64})
	require.Error(t, err)
}

func TestSeekToOrdinal(t *testing.T) {
	col := schema.Column{Name: "val", Type: schema.Uint32}
	values := make([]uint64, 10)
	for i := range values {
		values[i] = uint64(i)
	}
	data := writeUintColumn(t, col, values)
	r, err := Open(bytes.NewReader(data), int64(len(data)), "val", nil, col)
	require.NoError(t, err)

	s, err := schema.New([]schema.Column{{Name: "key", Type: schema.Bytes, IsKey: true}, col})
	require.NoError(t, err)
	blk := row.NewBlock(s, arena.New(64), 3)

	it := r.NewIterator()
	require.NoError(t, it.SeekToOrdinal(7))
	n := 3
	require.NoError(t, it.CopyNextValues(&n, blk, 1))
	require.Equal(t, 3, n)
	require.Equal(t, uint64(7), blk.Uint(0, 1))
	require.Equal(t, uint64(8), blk.Uint(1, 1))
	require.Equal(t, uint64(9), blk.Uint(2, 1))
}
