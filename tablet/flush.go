package tablet

import (
	"time"

	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/layer"
	"github.com/colstore/tablet/memstore"
)

// Flush atomically retires the current memstore, writes its contents
// as a new layer, and installs a fresh empty memstore (spec.md §4.6).
// The key index is published as a KeysFlushedLayer before the
// remaining column files finish writing (spec.md §9 decision 3), then
// upgraded in place to a CFileLayer.
func (t *Tablet) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateIdle {
		return errs.NotSupportedf("tablet: a flush or compaction is already in progress")
	}
	t.state = stateFlushing
	defer func() { t.state = stateIdle }()

	t.metrics.FlushStarted()
	start := time.Now()

	retiredMs := t.ms
	if retiredMs.EntryCount() == 0 {
		return nil
	}

	dir := t.layerDir(t.nextSeq)
	if err := t.env.MkdirAll(dir); err != nil {
		t.metrics.FlushFailed()
		return err
	}

	keyRows, err := t.writeKeyIndexFrom(retiredMs, dir)
	if err != nil {
		_ = t.env.RemoveAll(dir)
		t.metrics.FlushFailed()
		return err
	}

	kfl, err := layer.OpenKeysFlushedLayer(t.env, dir, t.schema, retiredMs, t.cache)
	if err != nil {
		_ = t.env.RemoveAll(dir)
		t.metrics.FlushFailed()
		return err
	}

	t.layersMu.Lock()
	t.ms = memstore.New(t.schema)
	t.layers = append(t.layers, kfl)
	publishedIdx := len(t.layers) - 1
	t.layersMu.Unlock()

	colRows, err := t.writeColumnsFrom(retiredMs, dir)
	if err != nil {
		t.rollbackFlush(retiredMs, publishedIdx, dir)
		t.metrics.FlushFailed()
		return err
	}
	if colRows != keyRows {
		t.rollbackFlush(retiredMs, publishedIdx, dir)
		t.metrics.FlushFailed()
		return errs.Corruptf("tablet: flush column row count %d disagrees with key row count %d", colRows, keyRows)
	}

	cfl, err := layer.OpenCFileLayer(t.env, dir, t.schema, t.cache)
	if err != nil {
		t.rollbackFlush(retiredMs, publishedIdx, dir)
		t.metrics.FlushFailed()
		return err
	}

	t.layersMu.Lock()
	t.layers[publishedIdx] = cfl
	t.layersMu.Unlock()
	_ = kfl.Close()

	t.nextSeq++
	t.metrics.FlushCompleted(int(keyRows), time.Since(start).Seconds())
	t.metrics.LayerCount(len(t.layers))
	t.log.Info("flush completed", "dir", dir, "rows", keyRows)
	return nil
}

// rollbackFlush undoes a flush's transitional publish: the tablet held
// mu throughout, so no insert could have landed in the fresh memstore
// installed at publish time, making it safe to simply restore the
// retired memstore as the live one and drop the published layer.
func (t *Tablet) rollbackFlush(retiredMs *memstore.Memstore, publishedIdx int, dir string) {
	t.layersMu.Lock()
	t.ms = retiredMs
	t.layers = append(t.layers[:publishedIdx], t.layers[publishedIdx+1:]...)
	t.layersMu.Unlock()
	_ = t.env.RemoveAll(dir)
}

func (t *Tablet) writeKeyIndexFrom(ms *memstore.Memstore, dir string) (uint64, error) {
	it, err := ms.NewIterator(t.schema)
	if err != nil {
		return 0, err
	}
	if err := it.Init(); err != nil {
		return 0, err
	}
	return layer.WriteKeyIndex(t.env, dir, t.schema, it, t.cfg.WriteBatchRows)
}

func (t *Tablet) writeColumnsFrom(ms *memstore.Memstore, dir string) (uint64, error) {
	it, err := ms.NewIterator(t.schema)
	if err != nil {
		return 0, err
	}
	if err := it.Init(); err != nil {
		return 0, err
	}
	return layer.WriteColumns(t.env, dir, t.schema, it, t.cfg.WriteBatchRows)
}
