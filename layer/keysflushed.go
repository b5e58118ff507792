package layer

import (
	"fmt"

	"github.com/colstore/tablet/blockcache"
	"github.com/colstore/tablet/colfile"
	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/memstore"
	"github.com/colstore/tablet/schema"
	"github.com/colstore/tablet/tabletenv"
)

// KeysFlushedLayer is the transitional flush-handoff variant (spec.md
// §4.4): the key index is already durable, so CheckRowPresent and
// FindRow serve from disk, but row data is still served from the
// memstore the flush is in the process of draining. It is never
// mutated once published — the memstore it wraps is the retired one a
// flush is converting, not the tablet's live memstore.
type KeysFlushedLayer struct {
	dir      string
	schema   *schema.Schema
	keyIdx   *colfile.Reader
	frozen   *memstore.Memstore
	rowCount uint64
}

// OpenKeysFlushedLayer opens the persisted key index under dir and
// pairs it with the retired memstore still backing row data.
func OpenKeysFlushedLayer(env tabletenv.Environment, dir string, s *schema.Schema, frozen *memstore.Memstore, cache *blockcache.Cache) (*KeysFlushedLayer, error) {
	keyIdx, err := openColumnFile(env, joinPath(dir, keyColumnFileName()), keyColumn, cache)
	if err != nil {
		return nil, err
	}
	if int(keyIdx.RowCount()) != frozen.EntryCount() {
		return nil, errs.Corruptf("layer: key index row count %d disagrees with frozen memstore count %d", keyIdx.RowCount(), frozen.EntryCount())
	}
	return &KeysFlushedLayer{dir: dir, schema: s, keyIdx: keyIdx, frozen: frozen, rowCount: keyIdx.RowCount()}, nil
}

func (l *KeysFlushedLayer) CheckRowPresent(key []byte) (bool, error) {
	_, ok, err := l.keyIdx.FindRow(key)
	return ok, err
}

func (l *KeysFlushedLayer) FindRow(key []byte) (uint64, bool, error) { return l.keyIdx.FindRow(key) }

func (l *KeysFlushedLayer) CountRows() uint64 { return l.rowCount }

func (l *KeysFlushedLayer) Dir() string { return l.dir }

func (l *KeysFlushedLayer) ToString() string {
	return fmt.Sprintf("KeysFlushedLayer(dir=%s, rows=%d, bytes=%d)", l.dir, l.rowCount, l.keyIdx.Size())
}

func (l *KeysFlushedLayer) IsUpdatableInPlace() bool { return false }
func (l *KeysFlushedLayer) SupportsFindRow() bool    { return true }

func (l *KeysFlushedLayer) Close() error { return nil }

// NewRowIterator delegates directly to the frozen memstore's iterator:
// since the memstore is immutable from this point on (the flush owns
// it exclusively while draining), its rows are exactly the layer's
// rows, already in the order the persisted key index agrees with.
func (l *KeysFlushedLayer) NewRowIterator(projSchema *schema.Schema) (Iterator, error) {
	return l.frozen.NewIterator(projSchema)
}
