// Package memstore implements the ordered, in-place-updatable, scannable
// in-memory row store described in spec.md §4.2. The ordered key index is
// a lock-free skip list (github.com/zhangyunhao116/skipmap), giving
// logarithmic-expected lookup and lock-free ascending traversal without a
// hand-rolled balanced tree; updates still require external
// single-writer serialization (spec.md §5) since UpdateRow replaces a
// *row.Record wholesale rather than mutating it in place.
package memstore

import (
	"bytes"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"

	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
)

// Memstore is an ordered mapping from key to row. It is safe for
// concurrent readers, but Insert/UpdateRow must be serialized by the
// caller (the tablet is the only writer, per spec.md §5).
type Memstore struct {
	schema *schema.Schema
	m      *skipmap.FuncMap[[]byte, *row.Record]
	count  atomic.Int64
}

// New returns an empty Memstore for rows conforming to s.
func New(s *schema.Schema) *Memstore {
	return &Memstore{
		schema: s,
		m:      skipmap.NewFunc[[]byte, *row.Record](func(a, b []byte) bool { return bytes.Compare(a, b) < 0 }),
	}
}

// Schema returns the memstore's row schema.
func (ms *Memstore) Schema() *schema.Schema { return ms.schema }

// Insert adds rec if its key is not already present. Returns
// ErrAlreadyPresent otherwise.
func (ms *Memstore) Insert(rec *row.Record) error {
	key := rec.Key()
	if _, loaded := ms.m.LoadOrStore(key, rec); loaded {
		return errs.ErrAlreadyPresent
	}
	ms.count.Add(1)
	return nil
}

// UpdateRow applies delta to the row at key, in place (replacing the
// stored *row.Record with the result of Delta.Apply). Returns
// ErrNotFound if key is absent.
func (ms *Memstore) UpdateRow(key []byte, delta *row.Delta) error {
	cur, ok := ms.m.Load(key)
	if !ok {
		return errs.ErrNotFound
	}
	updated, err := delta.Apply(cur)
	if err != nil {
		return err
	}
	ms.m.Store(key, updated)
	return nil
}

// CheckRowPresent reports whether key is present.
func (ms *Memstore) CheckRowPresent(key []byte) bool {
	_, ok := ms.m.Load(key)
	return ok
}

// Get returns the stored row for key.
func (ms *Memstore) Get(key []byte) (*row.Record, error) {
	rec, ok := ms.m.Load(key)
	if !ok {
		return nil, errs.ErrNotFound
	}
	return rec, nil
}

// FindRow reports whether a row at or after key exists and returns that
// row's own key, for a scan that needs to resume from a point. Unlike a
// layer's FindRow (an on-disk ordinal), the memstore has no stable
// ordinal — a skip list's position shifts as rows are inserted — so scans
// resume by key rather than by numeric position; see Iterator.SeekAtOrAfter.
func (ms *Memstore) FindRow(key []byte) (resumeKey []byte, ok bool) {
	var found []byte
	ms.m.Range(func(k []byte, _ *row.Record) bool {
		if bytes.Compare(k, key) >= 0 {
			found = k
			return false
		}
		return true
	})
	if found == nil {
		return nil, false
	}
	return found, true
}

// EntryCount returns the number of distinct keys currently stored.
func (ms *Memstore) EntryCount() int { return int(ms.count.Load()) }

// NewIterator returns an Iterator over the memstore projected onto
// projSchema, yielding rows in ascending key order.
func (ms *Memstore) NewIterator(projSchema *schema.Schema) (*Iterator, error) {
	proj, err := ms.schema.Resolve(projSchema)
	if err != nil {
		return nil, err
	}
	return &Iterator{ms: ms, proj: proj, projSchema: projSchema}, nil
}
