package tablet

import (
	"time"

	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/layer"
	"github.com/colstore/tablet/mergeiter"
)

// Compact merges every current layer into a single new layer and
// atomically swaps the inputs out for the output (spec.md §4.6).
// Input layer directories are only deleted once no iterator opened
// before the swap remains open (spec.md §5), tracked via the epoch
// registry.
func (t *Tablet) Compact() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateIdle {
		return errs.NotSupportedf("tablet: a flush or compaction is already in progress")
	}

	t.layersMu.RLock()
	inputs := make([]layer.Layer, len(t.layers))
	copy(inputs, t.layers)
	t.layersMu.RUnlock()

	if len(inputs) < 2 {
		return nil
	}

	t.state = stateCompacting
	defer func() { t.state = stateIdle }()

	t.metrics.CompactionStarted(len(inputs))
	start := time.Now()

	sources := make([]mergeiter.Source, len(inputs))
	for i, l := range inputs {
		it, err := l.NewRowIterator(t.schema)
		if err != nil {
			t.metrics.CompactionFailed()
			return err
		}
		if err := it.Init(); err != nil {
			t.metrics.CompactionFailed()
			return err
		}
		sources[i] = it
	}
	mi := mergeiter.New(t.schema, sources)
	if err := mi.Init(); err != nil {
		t.metrics.CompactionFailed()
		return err
	}

	dir := t.layerDir(t.nextSeq)
	rowCount, err := layer.WriteCFileLayer(t.env, dir, t.schema, mi, t.cfg.WriteBatchRows)
	if err != nil {
		t.metrics.CompactionFailed()
		return err
	}
	newLayer, err := layer.OpenCFileLayer(t.env, dir, t.schema, t.cache)
	if err != nil {
		_ = t.env.RemoveAll(dir)
		t.metrics.CompactionFailed()
		return err
	}
	t.nextSeq++

	t.layersMu.Lock()
	oldLayers := t.layers[:len(inputs)]
	newerLayers := append([]layer.Layer(nil), t.layers[len(inputs):]...)
	t.layers = append([]layer.Layer{newLayer}, newerLayers...)
	epochAtSwap := t.epochs.LastIssued()
	t.layersMu.Unlock()

	dirs := make([]string, len(oldLayers))
	for i, l := range oldLayers {
		dirs[i] = l.Dir()
	}
	t.pendingMu.Lock()
	t.pending = append(t.pending, pendingDelete{epochAtSwap: epochAtSwap, dirs: dirs, layers: oldLayers})
	t.pendingMu.Unlock()
	t.tryCleanupPendingDeletes()

	t.metrics.CompactionCompleted(int(rowCount), time.Since(start).Seconds())
	t.metrics.LayerCount(len(t.layers))
	t.log.Info("compaction completed", "dir", dir, "rows", rowCount, "inputs", len(inputs))
	return nil
}
