package colfile

import (
	"encoding/binary"
	"io"

	"github.com/colstore/tablet/blockcache"
	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
)

// Reader is a column file reader: it validates the footer on Open and
// serves ordinal and (for key columns) key-indexed lookups by reading
// only the index and the blocks a caller actually asks for.
type Reader struct {
	src  io.ReaderAt
	size int64
	path string // cache key namespace; may be empty if caching is unused

	cache *blockcache.Cache // optional, shared across readers

	colType schema.Type
	isKey   bool
	rowCnt  uint64
	name    string

	index []indexEntry
}

// Open parses src's footer and index, validating that it is a column
// file for the given column's type, key-ness and slot width (the footer
// stores no column name, so the name is not checked). A mismatch,
// or a structurally invalid file, returns ErrCorruption. path identifies
// the file for block-cache keying; cache may be nil to disable caching.
func Open(src io.ReaderAt, size int64, path string, cache *blockcache.Cache, want schema.Column) (*Reader, error) {
	if size < int64(footerLen) {
		return nil, errs.Corruptf("colfile: file too small to contain a footer")
	}
	fbuf := make([]byte, footerLen)
	if _, err := src.ReadAt(fbuf, size-int64(footerLen)); err != nil {
		return nil, errs.IOErrorf("colfile: read footer: %v", err)
	}

	off := 0
	gotMagic := binary.BigEndian.Uint64(fbuf[off:])
	off += 8
	if gotMagic != magic {
		return nil, errs.Corruptf("colfile: bad magic")
	}
	colType := schema.Type(fbuf[off])
	off++
	isKey := fbuf[off] != 0
	off++
	rowCnt := binary.BigEndian.Uint64(fbuf[off:])
	off += 8
	indexOff := binary.BigEndian.Uint64(fbuf[off:])
	off += 8
	indexLen := binary.BigEndian.Uint32(fbuf[off:])
	off += 4
	width := binary.BigEndian.Uint64(fbuf[off:])
	off += 8

	if colType != want.Type || isKey != want.IsKey || int(width) != want.Type.Width() {
		return nil, errs.Corruptf("colfile: column %q schema mismatch on open", want.Name)
	}

	r := &Reader{src: src, size: size, path: path, cache: cache, colType: colType, isKey: isKey, rowCnt: rowCnt, name: want.Name}

	idxBuf := make([]byte, indexLen)
	if _, err := src.ReadAt(idxBuf, int64(indexOff)); err != nil {
		return nil, errs.IOErrorf("colfile: read index: %v", err)
	}
	if err := r.parseIndex(idxBuf); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) parseIndex(buf []byte) error {
	if len(buf) < 4 {
		return errs.Corruptf("colfile: truncated index")
	}
	count := binary.BigEndian.Uint32(buf)
	buf = buf[4:]
	r.index = make([]indexEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(buf) < 8+blockHandleLen {
			return errs.Corruptf("colfile: truncated index entry")
		}
		ord := binary.BigEndian.Uint64(buf)
		buf = buf[8:]
		h := getBlockHandle(buf)
		buf = buf[blockHandleLen:]
		e := indexEntry{startOrdinal: ord, handle: h}
		if r.isKey {
			fv, n := binary.Uvarint(buf)
			buf = buf[n:]
			e.firstValue = append([]byte(nil), buf[:fv]...)
			buf = buf[fv:]
		}
		r.index = append(r.index, e)
	}
	return nil
}

// RowCount returns the total number of values in the column file.
func (r *Reader) RowCount() uint64 { return r.rowCnt }

// Size returns the column file's total on-disk byte size.
func (r *Reader) Size() int64 { return r.size }

func (r *Reader) readBlock(h blockHandle) ([]byte, error) {
	var ck blockcache.Key
	if r.cache != nil {
		ck = blockcache.Key{File: r.path, Offset: h.offset}
		if v, ok := r.cache.Get(ck); ok {
			return v, nil
		}
	}
	raw := make([]byte, h.length)
	if _, err := r.src.ReadAt(raw, int64(h.offset)); err != nil {
		return nil, errs.IOErrorf("colfile: read block: %v", err)
	}
	payload, err := decompressBlock(raw)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Insert(ck, payload)
	}
	return payload, nil
}

// decodeBlockValues splits a decompressed block's payload into rowsInBlock
// raw value byte slices (each exactly width bytes for fixed-width columns,
// or the raw payload for Bytes columns).
func decodeBlockValues(payload []byte, isIndirect bool, width, rowsInBlock int) ([][]byte, error) {
	values := make([][]byte, 0, rowsInBlock)
	if !isIndirect {
		if len(payload) != width*rowsInBlock {
			return nil, errs.Corruptf("colfile: fixed-width block size mismatch")
		}
		for i := 0; i < rowsInBlock; i++ {
			values = append(values, payload[i*width:(i+1)*width])
		}
		return values, nil
	}
	for i := 0; i < rowsInBlock; i++ {
		l, n := binary.Uvarint(payload)
		if n <= 0 {
			return nil, errs.Corruptf("colfile: bad varint length in block")
		}
		payload = payload[n:]
		if uint64(len(payload)) < l {
			return nil, errs.Corruptf("colfile: truncated value in block")
		}
		values = append(values, payload[:l])
		payload = payload[l:]
	}
	return values, nil
}

func (r *Reader) blockRowCount(i int) int {
	end := r.rowCnt
	if i+1 < len(r.index) {
		end = r.index[i+1].startOrdinal
	}
	return int(end - r.index[i].startOrdinal)
}

// FindRow looks up the ordinal of the row whose value in this (key)
// column exactly matches key. Only valid for key columns.
func (r *Reader) FindRow(key []byte) (ordinal uint64, ok bool, err error) {
	if !r.isKey {
		return 0, false, errs.NotSupportedf("colfile: FindRow requires a key column")
	}
	// Sparse index is ordered by first value per block; find the last
	// block whose first value is <= key.
	blk := -1
	for i, e := range r.index {
		if compareRaw(e.firstValue, key) <= 0 {
			blk = i
		} else {
			break
		}
	}
	if blk < 0 {
		return 0, false, nil
	}
	payload, err := r.readBlock(r.index[blk].handle)
	if err != nil {
		return 0, false, err
	}
	values, err := decodeBlockValues(payload, r.colType == schema.Bytes, r.colType.Width(), r.blockRowCount(blk))
	if err != nil {
		return 0, false, err
	}
	for i, v := range values {
		c := compareRaw(v, key)
		if c == 0 {
			return r.index[blk].startOrdinal + uint64(i), true, nil
		}
		if c > 0 {
			break
		}
	}
	return 0, false, nil
}

func compareRaw(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// ColumnIterator yields this column's decoded values in ordinal order,
// filling a caller-supplied row.Block's column slot directly.
type ColumnIterator struct {
	r       *Reader
	blk     int // current block index, -1 before first seek/init
	ordinal uint64
	cur     [][]byte // decoded values of the current block
}

// NewIterator returns a ColumnIterator positioned before the first value.
func (r *Reader) NewIterator() *ColumnIterator {
	return &ColumnIterator{r: r, blk: -1}
}

// SeekToOrdinal positions the iterator at the n-th value (0-based).
func (it *ColumnIterator) SeekToOrdinal(n uint64) error {
	it.ordinal = n
	it.cur = nil
	it.blk = -1
	if n >= it.r.rowCnt {
		return nil
	}
	for i, e := range it.r.index {
		rows := it.r.blockRowCount(i)
		if n < e.startOrdinal+uint64(rows) {
			it.blk = i
			return nil
		}
	}
	return nil
}

func (it *ColumnIterator) ensureBlockLoaded() error {
	if it.blk < 0 || it.blk >= len(it.r.index) {
		return nil
	}
	if it.cur != nil {
		return nil
	}
	payload, err := it.r.readBlock(it.r.index[it.blk].handle)
	if err != nil {
		return err
	}
	it.cur, err = decodeBlockValues(payload, it.r.colType == schema.Bytes, it.r.colType.Width(), it.r.blockRowCount(it.blk))
	return err
}

// HasNext reports whether another value remains.
func (it *ColumnIterator) HasNext() bool {
	return it.ordinal < it.r.rowCnt
}

// CopyNextValues decodes up to *n values into blk's column blkCol slots,
// starting at block row index 0. *n is set to how many were copied.
func (it *ColumnIterator) CopyNextValues(n *int, blk *row.Block, blkCol int) error {
	want := *n
	copied := 0
	for copied < want && it.ordinal < it.r.rowCnt {
		if it.blk < 0 {
			if err := it.SeekToOrdinal(it.ordinal); err != nil {
				return err
			}
		}
		if err := it.ensureBlockLoaded(); err != nil {
			return err
		}
		if it.blk < 0 {
			break
		}
		startOrd := it.r.index[it.blk].startOrdinal
		localIdx := int(it.ordinal - startOrd)
		v := it.cur[localIdx]
		if blk.Schema().Column(blkCol).Type.IsIndirect() {
			blk.SetBytes(copied, blkCol, v)
		} else {
			blk.SetUint(copied, blkCol, decodeFixedUint(v))
		}
		it.ordinal++
		copied++
		if localIdx+1 >= len(it.cur) {
			it.blk++
			it.cur = nil
		}
	}
	*n = copied
	return nil
}

func decodeFixedUint(v []byte) uint64 {
	var x uint64
	for _, b := range v {
		x = x<<8 | uint64(b)
	}
	return x
}
