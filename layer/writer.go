package layer

import (
	"github.com/colstore/tablet/arena"
	"github.com/colstore/tablet/colfile"
	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
	"github.com/colstore/tablet/tabletenv"
)

// defaultWriteBatchRows is used when a caller passes batchRows <= 0.
const defaultWriteBatchRows = 1024

// keyColumn is the synthetic, always-Bytes pseudo-column both layer
// variants persist in addition to (or, for KeysFlushedLayer, instead
// of) the schema's own columns: the flattened canonical key (spec.md
// §3's "lexicographic comparison over key columns" collapsed to one
// sequence of bytes), indexed for FindRow regardless of how many real
// key columns the schema declares.
var keyColumn = schema.Column{Name: "__key", Type: schema.Bytes, IsKey: true}

// RowSource is the minimal shape layer writing needs from a row
// producer: memstore's Iterator and the merge iterator both satisfy it
// when opened against the full (unprojected) schema.
type RowSource interface {
	HasNext() bool
	CopyNextRows(nRows *int, blk *row.Block) error
}

// WriteCFileLayer drains src (already positioned at its start) into a
// new CFileLayer directory under env, writing the key index and every
// schema column file. It reads src twice: once for the key index, then,
// after rewinding it with its Init method, for the column files; a src
// without an Init() error method is rejected as InvalidArgument. It
// returns the number of rows written. On any error, the partial
// directory is removed. Used by compaction, which has no transitional
// handoff to stage. batchRows
// bounds the row.Block batch size (tabletcfg.Options.WriteBatchRows);
// <= 0 falls back to defaultWriteBatchRows.
func WriteCFileLayer(env tabletenv.Environment, dir string, s *schema.Schema, src RowSource, batchRows int) (uint64, error) {
	if err := env.MkdirAll(dir); err != nil {
		return 0, err
	}
	keyRows, err := WriteKeyIndex(env, dir, s, src, batchRows)
	if err != nil {
		_ = env.RemoveAll(dir)
		return 0, err
	}
	rewindable, ok := src.(interface{ Init() error })
	if !ok {
		_ = env.RemoveAll(dir)
		return 0, errs.InvalidArgumentf("layer: WriteCFileLayer needs a source with an Init method to rewind it")
	}
	if err := rewindable.Init(); err != nil {
		_ = env.RemoveAll(dir)
		return 0, err
	}
	colRows, err := WriteColumns(env, dir, s, src, batchRows)
	if err != nil {
		_ = env.RemoveAll(dir)
		return 0, err
	}
	if colRows != keyRows {
		_ = env.RemoveAll(dir)
		return 0, errs.Corruptf("layer: column row count %d disagrees with key index row count %d", colRows, keyRows)
	}
	return keyRows, nil
}

// WriteKeyIndex drains src into dir's synthetic key index file only
// (spec.md §9 decision 3: the flush path writes the key column first
// so a KeysFlushedLayer can be published before the remaining columns
// finish). dir must already exist. src must be freshly initialized;
// WriteColumns needs its own independently-initialized source over the
// same underlying rows to write the remaining files afterward.
func WriteKeyIndex(env tabletenv.Environment, dir string, s *schema.Schema, src RowSource, batchRows int) (uint64, error) {
	if batchRows <= 0 {
		batchRows = defaultWriteBatchRows
	}
	keyFile, err := env.Create(joinPath(dir, keyColumnFileName()))
	if err != nil {
		return 0, err
	}
	keyWriter := colfile.NewWriter(keyFile, keyColumn, colfile.DefaultWriterOptions())

	a := arena.New(batchRows * 16)
	blk := row.NewBlock(s, a, batchRows)

	var rowCount uint64
	for src.HasNext() {
		n := batchRows
		if err := src.CopyNextRows(&n, blk); err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			if err := keyWriter.AppendValue(blk.Key(i)); err != nil {
				return 0, err
			}
		}
		rowCount += uint64(n)
	}
	if err := keyWriter.Finish(); err != nil {
		return 0, err
	}
	if err := keyFile.Close(); err != nil {
		return 0, errs.IOErrorf("layer: close key file: %v", err)
	}
	return rowCount, nil
}

// WriteColumns drains src into dir's per-column files (not the key
// index). dir must already exist.
func WriteColumns(env tabletenv.Environment, dir string, s *schema.Schema, src RowSource, batchRows int) (uint64, error) {
	if batchRows <= 0 {
		batchRows = defaultWriteBatchRows
	}
	writers := make([]*colfile.Writer, s.NumColumns())
	files := make([]tabletenv.File, s.NumColumns())
	for j := 0; j < s.NumColumns(); j++ {
		f, err := env.Create(joinPath(dir, columnFileName(j)))
		if err != nil {
			return 0, err
		}
		files[j] = f
		writers[j] = colfile.NewWriter(f, s.Column(j), colfile.DefaultWriterOptions())
	}

	a := arena.New(batchRows * 16)
	blk := row.NewBlock(s, a, batchRows)

	var rowCount uint64
	for src.HasNext() {
		n := batchRows
		if err := src.CopyNextRows(&n, blk); err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			for j := 0; j < s.NumColumns(); j++ {
				if err := appendBlockValue(writers[j], s.Column(j), blk, i, j); err != nil {
					return 0, err
				}
			}
		}
		rowCount += uint64(n)
	}

	for j, w := range writers {
		if err := w.Finish(); err != nil {
			return 0, err
		}
		if err := files[j].Close(); err != nil {
			return 0, errs.IOErrorf("layer: close column file: %v", err)
		}
	}
	return rowCount, nil
}

func appendBlockValue(w *colfile.Writer, col schema.Column, blk *row.Block, i, j int) error {
	if col.Type.IsIndirect() {
		return w.AppendValue(blk.Bytes(i, j))
	}
	buf := make([]byte, col.Type.Width())
	putFixedUint(buf, blk.Uint(i, j))
	return w.AppendValue(buf)
}

func putFixedUint(buf []byte, v uint64) {
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
}

func joinPath(dir, rel string) string {
	if dir == "" {
		return rel
	}
	return dir + "/" + rel
}
