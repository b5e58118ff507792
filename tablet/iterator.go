package tablet

import (
	"github.com/colstore/tablet/mergeiter"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
)

// RowIterator is the reader-facing handle returned by
// Tablet.NewRowIterator. Closing it releases the iterator's epoch,
// letting a concurrent compaction proceed with deleting layers this
// iterator's snapshot no longer needs (spec.md §5).
type RowIterator struct {
	tablet *Tablet
	iter   *mergeiter.Iterator
	epoch  uint64
	closed bool
}

func (it *RowIterator) Schema() *schema.Schema { return it.iter.Schema() }

func (it *RowIterator) HasNext() bool { return it.iter.HasNext() }

func (it *RowIterator) SeekAtOrAfter(key []byte) (bool, error) { return it.iter.SeekAtOrAfter(key) }

func (it *RowIterator) CopyNextRows(nRows *int, blk *row.Block) error {
	return it.iter.CopyNextRows(nRows, blk)
}

// Close releases the iterator's snapshot epoch. Safe to call more than
// once.
func (it *RowIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.tablet.epochs.Release(it.epoch)
	it.tablet.tryCleanupPendingDeletes()
	return nil
}
