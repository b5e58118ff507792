package memstore

import (
	"bytes"

	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
)

// Iterator yields memstore rows in ascending key order, projected onto a
// projection schema (spec.md §4.2, §4.4). It observes the live memstore:
// rows not yet yielded may reflect updates applied after the iterator was
// constructed (spec.md §5).
type Iterator struct {
	ms         *Memstore
	proj       *schema.Projection
	projSchema *schema.Schema

	lowerBound []byte
	inclusive  bool
	started    bool
	exhausted  bool
}

// Schema returns the projection schema this iterator yields rows against.
func (it *Iterator) Schema() *schema.Schema { return it.projSchema }

// Init resets the iterator to the beginning of the memstore.
func (it *Iterator) Init() error {
	it.lowerBound = nil
	it.inclusive = true
	it.started = true
	it.exhausted = false
	return nil
}

// SeekAtOrAfter positions the iterator at the smallest key >= key. On an
// empty key it behaves like SeekToOrdinal(0). exact reports whether a row
// with exactly that key exists.
func (it *Iterator) SeekAtOrAfter(key []byte) (exact bool, err error) {
	it.started = true
	it.exhausted = false
	if len(key) == 0 {
		it.lowerBound = nil
		it.inclusive = true
		return false, nil
	}
	it.lowerBound = key
	it.inclusive = true
	_, exact = it.ms.m.Load(key)
	return exact, nil
}

// SeekToOrdinal positions the iterator at the n-th row in ascending key
// order. The memstore has no stable ordinal index (skipmap.FuncMap is
// unordered-by-position under concurrent writers), so this recomputes the
// n-th key by linear scan each call; acceptable since the memstore is
// bounded by the write-buffer flush threshold.
func (it *Iterator) SeekToOrdinal(n int) error {
	it.started = true
	it.exhausted = false
	if n == 0 {
		it.lowerBound = nil
		it.inclusive = true
		return nil
	}
	i := 0
	var at []byte
	found := false
	it.ms.m.Range(func(k []byte, _ *row.Record) bool {
		if i == n {
			at = k
			found = true
			return false
		}
		i++
		return true
	})
	if !found {
		it.exhausted = true
		it.lowerBound = nil
		return nil
	}
	it.lowerBound = at
	it.inclusive = true
	return nil
}

func (it *Iterator) accepts(k []byte) bool {
	if it.lowerBound == nil {
		return true
	}
	c := bytes.Compare(k, it.lowerBound)
	if it.inclusive {
		return c >= 0
	}
	return c > 0
}

// HasNext reports whether at least one more row would be yielded.
func (it *Iterator) HasNext() bool {
	if it.exhausted {
		return false
	}
	has := false
	it.ms.m.Range(func(k []byte, _ *row.Record) bool {
		if it.accepts(k) {
			has = true
			return false
		}
		return true
	})
	return has
}

// CopyNextRows fills up to *nRows rows into blk, starting at blk index 0,
// advancing the iterator past the last row copied. *nRows is set to the
// number of rows actually copied.
func (it *Iterator) CopyNextRows(nRows *int, blk *row.Block) error {
	want := *nRows
	if want > blk.Cap() {
		want = blk.Cap()
	}
	blk.Reset()

	filled := 0
	var last []byte
	it.ms.m.Range(func(k []byte, v *row.Record) bool {
		if !it.accepts(k) {
			return true
		}
		if filled >= want {
			return false
		}
		blk.PutRecord(filled, it.proj, v)
		last = k
		filled++
		return filled < want
	})

	blk.SetLen(filled)
	*nRows = filled
	if filled > 0 {
		it.lowerBound = last
		it.inclusive = false
	}
	if filled < want {
		it.exhausted = true
	}
	return nil
}
