// Package row implements the fixed-width row codec: a single stored Row
// (fixed record plus its own compact indirect-bytes store), the sparse
// column-wise Delta applied by updates, and the column-major RowBlock
// batches that readers and iterators fill in. Multi-byte integer columns
// are encoded big-endian so that a byte-wise comparison of the fixed
// record slot is equivalent to a numeric comparison, which is what lets
// schema.Schema.CompareKeys and Schema.KeyBytes work directly off the
// encoded bytes instead of decoding first.
package row

import (
	"encoding/binary"

	"github.com/colstore/tablet/arena"
	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/schema"
)

// Record is one stored row: a fixed-width slab plus the indirect bytes its
// Bytes-typed columns point into. A Record owns both buffers.
type Record struct {
	Schema   *schema.Schema
	Fixed    []byte
	Indirect []byte
}

// Builder constructs a Record column by column. The zero value is not
// usable; use NewBuilder.
type Builder struct {
	s   *schema.Schema
	fix []byte
	ind *arena.Arena
	set []bool
}

// NewBuilder returns a Builder for rows conforming to s.
func NewBuilder(s *schema.Schema) *Builder {
	return &Builder{
		s:   s,
		fix: make([]byte, s.ByteSize()),
		ind: arena.New(64),
		set: make([]bool, s.NumColumns()),
	}
}

func (b *Builder) checkCol(col int) schema.Column {
	c := b.s.Column(col)
	b.set[col] = true
	return c
}

// SetUint writes an unsigned integer column, truncated/encoded to the
// column's declared width.
func (b *Builder) SetUint(col int, v uint64) *Builder {
	c := b.checkCol(col)
	putUint(b.fix[c.Offset():c.Offset()+c.Type.Width()], v)
	return b
}

// SetBytes writes a variable-length column; the bytes are copied into the
// builder's arena immediately, so the caller's slice may be reused.
func (b *Builder) SetBytes(col int, v []byte) *Builder {
	c := b.checkCol(col)
	off := b.ind.Put(v)
	putIndirect(b.fix[c.Offset():c.Offset()+8], uint32(len(v)), off)
	return b
}

// Build finalizes the Record. Every column must have been set.
func (b *Builder) Build() (*Record, error) {
	for i, ok := range b.set {
		if !ok {
			return nil, errs.InvalidArgumentf("row: column %q not set", b.s.Column(i).Name)
		}
	}
	ind := make([]byte, b.ind.Len())
	copy(ind, b.ind.Bytes(0, uint32(b.ind.Len())))
	return &Record{Schema: b.s, Fixed: b.fix, Indirect: ind}, nil
}

// Key returns the row's canonical key bytes, as used by the memstore and
// layer key indexes. Only the final key column may be variable-length;
// schema.New does not enforce this; encoding a schema that violates it
// produces ambiguous keys, so callers designing composite keys should
// keep variable-length columns last.
func (r *Record) Key() []byte {
	return r.Schema.KeyBytes(r.Fixed, r.Indirect)
}

// Uint decodes a fixed-width unsigned integer column.
func (r *Record) Uint(col int) uint64 {
	c := r.Schema.Column(col)
	return getUint(r.Fixed[c.Offset() : c.Offset()+c.Type.Width()])
}

// Bytes decodes a variable-length column's value.
func (r *Record) Bytes(col int) []byte {
	c := r.Schema.Column(col)
	length, off := getIndirect(r.Fixed[c.Offset() : c.Offset()+8])
	return r.Indirect[off : off+length]
}

// Clone returns a deep copy of r, safe to mutate independently.
func (r *Record) Clone() *Record {
	fix := make([]byte, len(r.Fixed))
	copy(fix, r.Fixed)
	ind := make([]byte, len(r.Indirect))
	copy(ind, r.Indirect)
	return &Record{Schema: r.Schema, Fixed: fix, Indirect: ind}
}

func putUint(dst []byte, v uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(dst, uint32(v))
	case 8:
		binary.BigEndian.PutUint64(dst, v)
	}
}

func getUint(src []byte) uint64 {
	switch len(src) {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(src))
	case 4:
		return uint64(binary.BigEndian.Uint32(src))
	case 8:
		return binary.BigEndian.Uint64(src)
	}
	return 0
}

func putIndirect(dst []byte, length, offset uint32) {
	binary.BigEndian.PutUint32(dst[0:4], length)
	binary.BigEndian.PutUint32(dst[4:8], offset)
}

func getIndirect(src []byte) (length, offset uint32) {
	return binary.BigEndian.Uint32(src[0:4]), binary.BigEndian.Uint32(src[4:8])
}
