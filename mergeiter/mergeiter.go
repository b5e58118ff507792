// Package mergeiter implements the ordered union of the memstore and
// every on-disk layer, projected onto a single schema (spec.md §4.5).
package mergeiter

import (
	"bytes"

	"github.com/colstore/tablet/arena"
	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
)

// Source is anything the merge iterator can fuse: memstore's Iterator
// and every layer.Iterator variant satisfy this shape structurally.
// Sources are listed oldest-to-newest; index i+1 is considered newer
// than index i, and the last Source is the memstore (newest of all).
type Source interface {
	Schema() *schema.Schema
	Init() error
	SeekAtOrAfter(key []byte) (exact bool, err error)
	SeekToOrdinal(n int) error
	HasNext() bool
	CopyNextRows(nRows *int, blk *row.Block) error
}

// cursor tracks one source's next-unyielded row, buffered one row at a
// time so the minimum-finder can compare keys across sources cheaply.
type cursor struct {
	src      Source
	rank     int // position in the newest-wins order; higher wins ties
	hasRow   bool
	key      []byte
	rowArena *row.Block // one-row block holding the current head row; fill allocates a new one per row
}

// Iterator is a k-way merge over a fixed set of sources, newest wins on
// key collision (spec.md §4.5). Per-source batching: CopyNextRows
// drains one source until its key would no longer be the minimum.
type Iterator struct {
	projSchema *schema.Schema
	cursors    []*cursor
}

// New returns a merge iterator over sources, in oldest-to-newest order
// (the tablet passes layers in creation order followed by the live
// memstore last). All sources must already be opened against
// projSchema.
func New(projSchema *schema.Schema, sources []Source) *Iterator {
	cursors := make([]*cursor, len(sources))
	for i, s := range sources {
		cursors[i] = &cursor{src: s, rank: i}
	}
	return &Iterator{projSchema: projSchema, cursors: cursors}
}

func (it *Iterator) Schema() *schema.Schema { return it.projSchema }

func (it *Iterator) Init() error {
	for _, c := range it.cursors {
		if err := c.src.Init(); err != nil {
			return err
		}
		if err := it.fill(c); err != nil {
			return err
		}
	}
	return nil
}

// SeekAtOrAfter seeks every source to key and refills cursors. exact
// reports whether any source reported an exact match. The first error a
// source returns is returned as is (a CFileLayer source, for one, returns
// NotSupported for a key it does not hold).
func (it *Iterator) SeekAtOrAfter(key []byte) (bool, error) {
	anyExact := false
	for _, c := range it.cursors {
		exact, err := c.src.SeekAtOrAfter(key)
		if err != nil {
			return false, err
		}
		anyExact = anyExact || exact
		if err := it.fill(c); err != nil {
			return false, err
		}
	}
	return anyExact, nil
}

// SeekToOrdinal is not a well-defined operation across heterogeneous
// sources with independent ordinal spaces (a merge iterator's ordinal
// is only meaningful relative to its own output stream, not to any one
// source) — the tablet never calls it; a full scan always starts from
// Init.
func (it *Iterator) SeekToOrdinal(n int) error {
	if n != 0 {
		return errs.NotSupportedf("mergeiter: ordinal seek is only supported for n=0")
	}
	return it.Init()
}

func (it *Iterator) fill(c *cursor) error {
	if !c.src.HasNext() {
		c.hasRow = false
		return nil
	}
	blk := row.NewBlock(it.projSchema, arena.New(64), 1)
	n := 1
	if err := c.src.CopyNextRows(&n, blk); err != nil {
		return err
	}
	if n == 0 {
		c.hasRow = false
		return nil
	}
	c.hasRow = true
	c.key = blk.Key(0)
	c.rowArena = blk
	return nil
}

// HasNext reports whether any source still has a buffered row.
func (it *Iterator) HasNext() bool {
	for _, c := range it.cursors {
		if c.hasRow {
			return true
		}
	}
	return false
}

// CopyNextRows fills up to *nRows rows into blk in ascending key order,
// newest-wins on collision. Per spec.md §4.5's batched variant, this
// drains the winning source repeatedly while it keeps producing the
// overall minimum key, switching sources as soon as another source's
// buffered key would be smaller.
func (it *Iterator) CopyNextRows(nRows *int, blk *row.Block) error {
	want := *nRows
	if want > blk.Cap() {
		want = blk.Cap()
	}
	blk.Reset()

	filled := 0
	for filled < want {
		winner := it.minCursor()
		if winner == nil {
			break
		}
		// Drop any other cursor currently tied with the winner's key:
		// an older/lower-rank source's row at the same key is shadowed.
		for _, c := range it.cursors {
			if c != winner && c.hasRow && bytes.Equal(c.key, winner.key) {
				if err := it.fill(c); err != nil {
					return err
				}
			}
		}
		blk.PutBlockRow(filled, winner.rowArena, 0)
		filled++
		if err := it.fill(winner); err != nil {
			return err
		}
	}

	blk.SetLen(filled)
	*nRows = filled
	return nil
}

// minCursor returns the cursor whose buffered key is smallest,
// breaking ties by rank (higher rank, i.e. newer source, wins). A
// linear scan, as spec.md §4.5 says is acceptable for this core's
// expected layer counts.
func (it *Iterator) minCursor() *cursor {
	var min *cursor
	for _, c := range it.cursors {
		if !c.hasRow {
			continue
		}
		if min == nil {
			min = c
			continue
		}
		cmp := bytes.Compare(c.key, min.key)
		if cmp < 0 || (cmp == 0 && c.rank > min.rank) {
			min = c
		}
	}
	return min
}
