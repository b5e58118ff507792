package row

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/colstore/tablet/arena"
	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/schema"
)

// Delta is a sparse column update: which non-key columns change, and
// their new values. spec.md §3: a Delta never touches key columns.
type Delta struct {
	Schema   *schema.Schema
	Changed  *roaring.Bitmap
	fixed    []byte
	indirect []byte
}

// DeltaBuilder constructs a Delta column by column.
type DeltaBuilder struct {
	s       *schema.Schema
	fixed   []byte
	ind     *arena.Arena
	changed *roaring.Bitmap
	err     error
}

// NewDelta returns a DeltaBuilder for updates against rows conforming to s.
func NewDelta(s *schema.Schema) *DeltaBuilder {
	return &DeltaBuilder{
		s:       s,
		fixed:   make([]byte, s.ByteSize()),
		ind:     arena.New(64),
		changed: roaring.New(),
	}
}

func (d *DeltaBuilder) checkNonKey(col int) (schema.Column, bool) {
	if d.err != nil {
		return schema.Column{}, false
	}
	if col < d.s.NumKeyColumns() {
		d.err = errs.InvalidArgumentf("row: delta may not modify key column %q", d.s.Column(col).Name)
		return schema.Column{}, false
	}
	return d.s.Column(col), true
}

// SetUint stages a new value for an unsigned-integer non-key column.
func (d *DeltaBuilder) SetUint(col int, v uint64) *DeltaBuilder {
	c, ok := d.checkNonKey(col)
	if !ok {
		return d
	}
	putUint(d.fixed[c.Offset():c.Offset()+c.Type.Width()], v)
	d.changed.Add(uint32(col))
	return d
}

// SetBytes stages a new value for a variable-length non-key column.
func (d *DeltaBuilder) SetBytes(col int, v []byte) *DeltaBuilder {
	c, ok := d.checkNonKey(col)
	if !ok {
		return d
	}
	off := d.ind.Put(v)
	putIndirect(d.fixed[c.Offset():c.Offset()+8], uint32(len(v)), off)
	d.changed.Add(uint32(col))
	return d
}

// Build finalizes the Delta. An empty delta (no columns staged) is
// rejected as InvalidArgument.
func (d *DeltaBuilder) Build() (*Delta, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.changed.IsEmpty() {
		return nil, errs.InvalidArgumentf("row: delta has no changed columns")
	}
	ind := make([]byte, d.ind.Len())
	copy(ind, d.ind.Bytes(0, uint32(d.ind.Len())))
	return &Delta{Schema: d.s, Changed: d.changed, fixed: d.fixed, indirect: ind}, nil
}

// Apply returns a new Record equal to rec with the delta's changed
// columns overwritten, per spec.md §8 invariant 2.
func (delta *Delta) Apply(rec *Record) (*Record, error) {
	b := NewBuilder(delta.Schema)
	for col := 0; col < delta.Schema.NumColumns(); col++ {
		c := delta.Schema.Column(col)
		if delta.Changed.Contains(uint32(col)) {
			if c.Type.IsIndirect() {
				length, off := getIndirect(delta.fixed[c.Offset() : c.Offset()+8])
				b.SetBytes(col, delta.indirect[off:off+length])
			} else {
				b.SetUint(col, getUint(delta.fixed[c.Offset():c.Offset()+c.Type.Width()]))
			}
			continue
		}
		if c.Type.IsIndirect() {
			b.SetBytes(col, rec.Bytes(col))
		} else {
			b.SetUint(col, rec.Uint(col))
		}
	}
	return b.Build()
}
