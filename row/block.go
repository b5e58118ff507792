package row

import (
	"github.com/colstore/tablet/arena"
	"github.com/colstore/tablet/schema"
)

// Block is a contiguous, column-major batch of rows conforming to a
// projection schema, backed by a caller-supplied arena for indirect data
// (spec.md §3). Each column is stored in its own fixed-width slab so that
// a columnar file iterator can fill a column's slab in one call
// (CopyNextValues) without touching the others.
type Block struct {
	schema *schema.Schema
	ar     *arena.Arena
	cols   [][]byte // cols[j] has capacity*width(j) bytes; only n rows are meaningful
	n      int
	cap    int
}

// NewBlock allocates a Block of the given row capacity for schema s,
// using a (owned by the caller) for indirect bytes.
func NewBlock(s *schema.Schema, a *arena.Arena, capacity int) *Block {
	cols := make([][]byte, s.NumColumns())
	for j := 0; j < s.NumColumns(); j++ {
		cols[j] = make([]byte, capacity*s.Column(j).Type.Width())
	}
	return &Block{schema: s, ar: a, cols: cols, cap: capacity}
}

// Schema returns the block's projection schema.
func (b *Block) Schema() *schema.Schema { return b.schema }

// Arena returns the block's indirect-bytes arena.
func (b *Block) Arena() *arena.Arena { return b.ar }

// Cap returns the block's row capacity.
func (b *Block) Cap() int { return b.cap }

// Len returns the number of valid rows currently in the block.
func (b *Block) Len() int { return b.n }

// SetLen sets the number of valid rows; n must not exceed Cap().
func (b *Block) SetLen(n int) { b.n = n }

// Reset empties the block (sets Len to 0) without touching the arena;
// callers reset the arena separately once every consumer of the prior
// batch is done with it (spec.md §5).
func (b *Block) Reset() { b.n = 0 }

// ColumnSlab returns the full-capacity backing buffer for column j, for a
// writer (e.g. a columnar file iterator) to fill starting at row 0.
func (b *Block) ColumnSlab(j int) []byte { return b.cols[j] }

func (b *Block) slot(row, col int) []byte {
	w := b.schema.Column(col).Type.Width()
	return b.cols[col][row*w : row*w+w]
}

// Uint decodes row i's value of a fixed-width column.
func (b *Block) Uint(i, col int) uint64 { return getUint(b.slot(i, col)) }

// Bytes decodes row i's value of a variable-length column.
func (b *Block) Bytes(i, col int) []byte {
	length, off := getIndirect(b.slot(i, col))
	return b.ar.Bytes(off, length)
}

// SetUint writes row i's value of a fixed-width column.
func (b *Block) SetUint(i, col int, v uint64) { putUint(b.slot(i, col), v) }

// SetBytes copies v into the block's arena and records its (length,
// offset) in row i's slot for a variable-length column.
func (b *Block) SetBytes(i, col int, v []byte) {
	off := b.ar.Put(v)
	putIndirect(b.slot(i, col), uint32(len(v)), off)
}

// PutRecord projects one full source Record into row i of the block
// according to proj (spec.md §4.1: "Projections copy a subset of columns,
// rewriting indirect pointers to point into the destination arena").
func (b *Block) PutRecord(i int, proj *schema.Projection, rec *Record) {
	for col := 0; col < b.schema.NumColumns(); col++ {
		srcCol := proj.SourceIndex[col]
		if b.schema.Column(col).Type.IsIndirect() {
			b.SetBytes(i, col, rec.Bytes(srcCol))
		} else {
			b.SetUint(i, col, rec.Uint(srcCol))
		}
	}
}

// PutBlockRow copies row si of src (which must share this block's
// column layout, e.g. another block opened against the same projection
// schema) into row i of b, rewriting indirect pointers into b's own
// arena.
func (b *Block) PutBlockRow(i int, src *Block, si int) {
	for col := 0; col < b.schema.NumColumns(); col++ {
		if b.schema.Column(col).Type.IsIndirect() {
			b.SetBytes(i, col, src.Bytes(si, col))
		} else {
			b.SetUint(i, col, src.Uint(si, col))
		}
	}
}

// Key returns row i's canonical key bytes (only valid when the block's
// schema is, or carries as a prefix, the tablet's key columns).
func (b *Block) Key(i int) []byte {
	w := 0
	for c := 0; c < b.schema.NumKeyColumns(); c++ {
		w += b.schema.Column(c).Type.Width()
	}
	rec := make([]byte, w)
	off := 0
	for c := 0; c < b.schema.NumKeyColumns(); c++ {
		cw := b.schema.Column(c).Type.Width()
		copy(rec[off:off+cw], b.slot(i, c))
		off += cw
	}
	var indirect []byte
	if n := b.ar.Len(); n > 0 {
		indirect = b.ar.Bytes(0, uint32(n))
	}
	return b.schema.KeyBytes(rec, indirect)
}
