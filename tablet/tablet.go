// Package tablet implements the coordinator spec.md §4.6 describes: it
// owns the memstore and the ordered layer set, serializes writes,
// orchestrates flush and compaction, and vends merged row iterators.
package tablet

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"sync"

	"github.com/colstore/tablet/blockcache"
	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/layer"
	"github.com/colstore/tablet/memstore"
	"github.com/colstore/tablet/mergeiter"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
	"github.com/colstore/tablet/tabletcfg"
	"github.com/colstore/tablet/tabletenv"
	"github.com/colstore/tablet/tabletmetrics"
)

const layersDirName = "layers"

// opState tracks the flush and compaction state machines spec.md §4.6
// names: Idle -> {Flushing,Compacting} -> Idle. A single state field
// covers both, since mu serializes them: a flush and a compaction never
// run at the same time, and either one refused for a busy tablet gets
// the same error.
type opState int

const (
	stateIdle opState = iota
	stateFlushing
	stateCompacting
)

// Tablet is the single-writer, multi-reader coordinator for one table
// shard's rows.
type Tablet struct {
	schema  *schema.Schema
	env     tabletenv.Environment
	cfg     tabletcfg.Options
	cache   *blockcache.Cache
	metrics tabletmetrics.Recorder
	log     *slog.Logger

	// mu serializes Insert/UpdateRow/Flush/Compact: spec.md §5's
	// single-writer model. Reads (NewRowIterator, CountRows) only take
	// a read lock over the layer-list snapshot, never mu.
	mu    sync.Mutex
	state opState

	layersMu sync.RWMutex // guards ms and layers against concurrent readers
	ms       *memstore.Memstore
	layers   []layer.Layer // oldest first; directory name order
	nextSeq  int

	epochs *epochRegistry

	pendingMu sync.Mutex
	pending   []pendingDelete
}

// pendingDelete is a set of layer directories a compaction's swap made
// obsolete, held back from deletion until every iterator that might
// still read them (registered at or before epochAtSwap) has released.
type pendingDelete struct {
	epochAtSwap uint64
	dirs        []string
	layers      []layer.Layer
}

// tryCleanupPendingDeletes deletes any pending layer directories whose
// epochAtSwap now precedes every still-open iterator epoch.
func (t *Tablet) tryCleanupPendingDeletes() {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if len(t.pending) == 0 {
		return
	}
	oldestOpen, anyOpen := t.epochs.OldestOpen()

	remaining := t.pending[:0]
	for _, p := range t.pending {
		if anyOpen && oldestOpen <= p.epochAtSwap {
			remaining = append(remaining, p)
			continue
		}
		for _, l := range p.layers {
			_ = l.Close()
		}
		for _, dir := range p.dirs {
			if err := t.env.RemoveAll(dir); err != nil {
				t.log.Warn("cleanup: failed to remove obsolete layer directory", "dir", dir, "error", err)
			}
		}
	}
	t.pending = remaining
}

// Option configures optional collaborators at Open time.
type Option func(*Tablet)

// WithMetrics installs a metrics recorder; the default is a no-op.
func WithMetrics(m tabletmetrics.Recorder) Option { return func(t *Tablet) { t.metrics = m } }

// WithLogger installs a structured logger; the default is slog's
// current default logger.
func WithLogger(l *slog.Logger) Option { return func(t *Tablet) { t.log = l } }

// Open enumerates env's layer directory in creation order, opens each
// layer, and initializes an empty memstore (spec.md §4.6).
func Open(s *schema.Schema, env tabletenv.Environment, cfg tabletcfg.Options, opts ...Option) (*Tablet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tablet{
		schema:  s,
		env:     env,
		cfg:     cfg,
		cache:   blockcache.New(cfg.BlockCacheBytes),
		metrics: tabletmetrics.NoopRecorder{},
		log:     slog.Default(),
		ms:      memstore.New(s),
		epochs:  newEpochRegistry(),
	}
	for _, o := range opts {
		o(t)
	}

	if err := env.MkdirAll(layersDirName); err != nil {
		return nil, err
	}
	names, err := env.List(layersDirName)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	for _, name := range names {
		dir := path.Join(layersDirName, name)
		l, err := layer.OpenCFileLayer(env, dir, s, t.cache)
		if err != nil {
			return nil, errs.Corruptf("tablet: open layer %q: %v", dir, err)
		}
		t.layers = append(t.layers, l)
		seq, serr := strconv.Atoi(name)
		if serr == nil && seq >= t.nextSeq {
			t.nextSeq = seq + 1
		}
	}
	t.log.Info("tablet opened", "layers", len(t.layers))
	t.metrics.LayerCount(len(t.layers))
	return t, nil
}

// Schema returns the tablet's row schema.
func (t *Tablet) Schema() *schema.Schema { return t.schema }

func (t *Tablet) layerDir(seq int) string {
	return path.Join(layersDirName, fmt.Sprintf("%010d", seq))
}

// Insert adds row rec if its key is absent from the memstore and every
// layer (spec.md §4.6, §8 invariant 1).
func (t *Tablet) Insert(rec *row.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := rec.Key()
	present, err := t.checkPresentLocked(key)
	if err != nil {
		return err
	}
	if present {
		t.metrics.InsertAlreadyPresent()
		return errs.ErrAlreadyPresent
	}
	if err := t.ms.Insert(rec); err != nil {
		return err
	}
	t.metrics.InsertOK()
	t.metrics.MemstoreRows(t.ms.EntryCount())
	return nil
}

// UpdateRow applies delta to the row at key. In-memstore rows update
// in place; layer-resident rows return NotSupported (spec.md §9
// decision 1).
func (t *Tablet) UpdateRow(key []byte, delta *row.Delta) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ms.CheckRowPresent(key) {
		if err := t.ms.UpdateRow(key, delta); err != nil {
			t.metrics.UpdateNotFound()
			return err
		}
		t.metrics.UpdateOK()
		return nil
	}

	t.layersMu.RLock()
	layers := t.layers
	t.layersMu.RUnlock()
	for i := len(layers) - 1; i >= 0; i-- {
		present, err := layers[i].CheckRowPresent(key)
		if err != nil {
			return err
		}
		if present {
			return errs.NotSupportedf("tablet: update of a layer-resident row is not supported")
		}
	}
	t.metrics.UpdateNotFound()
	return errs.ErrNotFound
}

// CheckRowPresent reports whether key is visible in the memstore or
// any layer.
func (t *Tablet) CheckRowPresent(key []byte) (bool, error) {
	return t.checkPresentLocked(key)
}

// checkPresentLocked is safe to call with or without mu held: it takes
// its own layersMu read lock for the memstore and layer slice, so
// callers never need to pre-lock.
func (t *Tablet) checkPresentLocked(key []byte) (bool, error) {
	t.layersMu.RLock()
	ms := t.ms
	layers := t.layers
	t.layersMu.RUnlock()
	if ms.CheckRowPresent(key) {
		return true, nil
	}
	for _, l := range layers {
		present, err := l.CheckRowPresent(key)
		if err != nil {
			return false, err
		}
		if present {
			return true, nil
		}
	}
	return false, nil
}

// CountRows sums the memstore's and every layer's row count. Not
// deduplicated across stores (spec.md §4.6).
func (t *Tablet) CountRows() uint64 {
	t.layersMu.RLock()
	defer t.layersMu.RUnlock()
	count := uint64(t.ms.EntryCount())
	for _, l := range t.layers {
		count += l.CountRows()
	}
	return count
}

// NewRowIterator returns a merge iterator over the current memstore
// and the current ordered layer set, projected onto projSchema. The
// returned iterator observes a consistent snapshot of the layer set at
// the moment of construction (spec.md §4.6, §5).
func (t *Tablet) NewRowIterator(projSchema *schema.Schema) (*RowIterator, error) {
	// The layer-slice snapshot and the epoch registration must happen
	// in the same layersMu critical section as a concurrent Compact's
	// swap (also taken under layersMu): that ordering is what lets
	// Compact's cleanup tell, from epoch numbers alone, whether this
	// iterator's snapshot predates or postdates the swap (spec.md §5).
	t.layersMu.RLock()
	layers := make([]layer.Layer, len(t.layers))
	copy(layers, t.layers)
	ms := t.ms
	epoch := t.epochs.Register()
	t.layersMu.RUnlock()

	sources := make([]mergeiter.Source, 0, len(layers)+1)
	for _, l := range layers {
		it, err := l.NewRowIterator(projSchema)
		if err != nil {
			t.epochs.Release(epoch)
			return nil, err
		}
		sources = append(sources, it)
	}
	msIter, err := ms.NewIterator(projSchema)
	if err != nil {
		t.epochs.Release(epoch)
		return nil, err
	}
	sources = append(sources, msIter)

	mi := mergeiter.New(projSchema, sources)
	if err := mi.Init(); err != nil {
		t.epochs.Release(epoch)
		return nil, err
	}
	return &RowIterator{tablet: t, iter: mi, epoch: epoch}, nil
}
