package tablet

import (
	"sync"

	"github.com/google/btree"
)

// epochItem orders registered iterator epochs by sequence number; the
// btree is used purely as an ordered set so the registry can cheaply
// answer "what is the oldest epoch still outstanding" without scanning
// a map on every release (spec.md §5: an iterator observes a snapshot
// of the layer set fixed at construction, so layers retired by a later
// compaction must outlive every iterator opened before the swap).
type epochItem uint64

func (a epochItem) Less(b btree.Item) bool { return a < b.(epochItem) }

// epochRegistry tracks which NewRowIterator-assigned epochs are still
// open, so Compact can tell whether it is safe to delete a layer's
// files yet.
type epochRegistry struct {
	mu   sync.Mutex
	next uint64
	open *btree.BTree
}

func newEpochRegistry() *epochRegistry {
	return &epochRegistry{open: btree.New(32)}
}

// Register allocates and activates a new epoch.
func (r *epochRegistry) Register() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	e := r.next
	r.open.ReplaceOrInsert(epochItem(e))
	return e
}

// Release deactivates epoch.
func (r *epochRegistry) Release(epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open.Delete(epochItem(epoch))
}

// OldestOpen returns the smallest still-open epoch, or ok=false if
// none are open.
func (r *epochRegistry) OldestOpen() (epoch uint64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := r.open.Min()
	if item == nil {
		return 0, false
	}
	return uint64(item.(epochItem)), true
}

// LastIssued returns the most recently registered epoch number,
// regardless of whether it is still open. Used to stamp a compaction's
// swap point: any epoch issued at or before this value was handed a
// layer-set snapshot taken no later than the swap.
func (r *epochRegistry) LastIssued() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}
