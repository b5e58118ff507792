package layer

import (
	"fmt"

	"github.com/colstore/tablet/blockcache"
	"github.com/colstore/tablet/colfile"
	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
	"github.com/colstore/tablet/tabletenv"
)

// CFileLayer is the steady-state layer variant: every column, plus the
// synthetic key index, is a separate immutable columnar file (spec.md
// §4.4).
type CFileLayer struct {
	dir      string
	schema   *schema.Schema
	columns  []*colfile.Reader // aligned with schema columns
	keyIdx   *colfile.Reader
	rowCount uint64
}

// OpenCFileLayer opens every column file (plus the key index) under
// dir and validates their row counts agree.
func OpenCFileLayer(env tabletenv.Environment, dir string, s *schema.Schema, cache *blockcache.Cache) (*CFileLayer, error) {
	l := &CFileLayer{dir: dir, schema: s}
	columns := make([]*colfile.Reader, s.NumColumns())
	for j := 0; j < s.NumColumns(); j++ {
		p := joinPath(dir, columnFileName(j))
		r, err := openColumnFile(env, p, s.Column(j), cache)
		if err != nil {
			return nil, err
		}
		columns[j] = r
	}
	keyPath := joinPath(dir, keyColumnFileName())
	keyIdx, err := openColumnFile(env, keyPath, keyColumn, cache)
	if err != nil {
		return nil, err
	}

	rowCount := keyIdx.RowCount()
	for j, r := range columns {
		if r.RowCount() != rowCount {
			return nil, errs.Corruptf("layer: column %d row count %d disagrees with key index %d", j, r.RowCount(), rowCount)
		}
	}

	l.columns = columns
	l.keyIdx = keyIdx
	l.rowCount = rowCount
	return l, nil
}

func openColumnFile(env tabletenv.Environment, p string, col schema.Column, cache *blockcache.Cache) (*colfile.Reader, error) {
	f, err := env.Open(p)
	if err != nil {
		return nil, err
	}
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	return colfile.Open(f, size, p, cache, col)
}

func (l *CFileLayer) CheckRowPresent(key []byte) (bool, error) {
	_, ok, err := l.keyIdx.FindRow(key)
	return ok, err
}

func (l *CFileLayer) FindRow(key []byte) (uint64, bool, error) { return l.keyIdx.FindRow(key) }

func (l *CFileLayer) CountRows() uint64 { return l.rowCount }

func (l *CFileLayer) Dir() string { return l.dir }

func (l *CFileLayer) ToString() string {
	return fmt.Sprintf("CFileLayer(dir=%s, rows=%d, bytes=%d)", l.dir, l.rowCount, l.byteSize())
}

func (l *CFileLayer) byteSize() int64 {
	size := l.keyIdx.Size()
	for _, r := range l.columns {
		size += r.Size()
	}
	return size
}

func (l *CFileLayer) IsUpdatableInPlace() bool { return false }
func (l *CFileLayer) SupportsFindRow() bool    { return true }

func (l *CFileLayer) Close() error { return nil }

// NewRowIterator returns an iterator over projSchema's columns, each
// backed by its own colfile.ColumnIterator, advanced in lockstep.
func (l *CFileLayer) NewRowIterator(projSchema *schema.Schema) (Iterator, error) {
	proj, err := l.schema.Resolve(projSchema)
	if err != nil {
		return nil, err
	}
	cols := make([]*colfile.ColumnIterator, projSchema.NumColumns())
	for i := range cols {
		cols[i] = l.columns[proj.SourceIndex[i]].NewIterator()
	}
	return &cfileIterator{
		layer:      l,
		projSchema: projSchema,
		cols:       cols,
	}, nil
}

// cfileIterator assembles rows from one ColumnIterator per projected
// column (spec.md §4.4: "the i-th row of the block is assembled from
// the i-th value of each column iterator").
type cfileIterator struct {
	layer      *CFileLayer
	projSchema *schema.Schema
	cols       []*colfile.ColumnIterator
	ordinal    uint64
}

func (it *cfileIterator) Schema() *schema.Schema { return it.projSchema }

func (it *cfileIterator) Init() error { return it.SeekToOrdinal(0) }

func (it *cfileIterator) SeekToOrdinal(n int) error {
	it.ordinal = uint64(n)
	for _, c := range it.cols {
		if err := c.SeekToOrdinal(uint64(n)); err != nil {
			return err
		}
	}
	return nil
}

// SeekAtOrAfter implements spec.md §9's option (a): find the key via
// the key index, then align every column cursor to that ordinal. An
// empty key behaves like SeekToOrdinal(0). A key that is not in the
// layer returns NotSupported and leaves the iterator where it was; it is
// not moved to the next greater key.
func (it *cfileIterator) SeekAtOrAfter(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, it.SeekToOrdinal(0)
	}
	ord, ok, err := it.layer.keyIdx.FindRow(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errs.NotSupportedf("layer: seek to non-resident key is not supported by CFileLayer")
	}
	return true, it.SeekToOrdinal(int(ord))
}

func (it *cfileIterator) HasNext() bool { return it.ordinal < it.layer.rowCount }

func (it *cfileIterator) CopyNextRows(nRows *int, blk *row.Block) error {
	want := *nRows
	if want > blk.Cap() {
		want = blk.Cap()
	}
	blk.Reset()
	for j, c := range it.cols {
		n := want
		if err := c.CopyNextValues(&n, blk, j); err != nil {
			return err
		}
		want = n // all columns advance the same number of rows in lockstep
	}
	blk.SetLen(want)
	it.ordinal += uint64(want)
	*nRows = want
	return nil
}
