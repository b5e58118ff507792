package colfile

import (
	"encoding/binary"
	"io"

	"github.com/colstore/tablet/errs"
	"github.com/colstore/tablet/schema"
)

// WriterOptions configures block size and compression for a column file.
type WriterOptions struct {
	Compression   Compression
	BlockRowLimit int
}

// DefaultWriterOptions returns snappy-compressed blocks of
// defaultBlockRowLimit rows, matching the teacher's default codec choice.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{Compression: SnappyCompression, BlockRowLimit: defaultBlockRowLimit}
}

// Writer streams a single column's values, in input order, to a
// self-describing file (spec.md §4.3, §6).
type Writer struct {
	w   io.Writer
	col schema.Column
	opt WriterOptions

	offset uint64
	rows   uint64

	blockBuf    []byte
	blockRows   int
	blockFirst  []byte // first value appended to the current block, retained for key columns
	indexBlocks []indexEntry
}

type indexEntry struct {
	startOrdinal uint64
	handle       blockHandle
	firstValue   []byte // populated only when col.IsKey
}

// NewWriter returns a Writer appending column col's values to w.
func NewWriter(w io.Writer, col schema.Column, opt WriterOptions) *Writer {
	if opt.BlockRowLimit <= 0 {
		opt.BlockRowLimit = defaultBlockRowLimit
	}
	return &Writer{w: w, col: col, opt: opt}
}

// AppendValue appends one value in encoded form: exactly col.Type.Width()
// bytes for fixed-width columns, or the raw variable-length payload for a
// Bytes column (the writer adds its own length prefix).
func (wr *Writer) AppendValue(v []byte) error {
	if !wr.col.Type.IsIndirect() && len(v) != wr.col.Type.Width() {
		return errs.InvalidArgumentf("colfile: value width %d does not match column width %d", len(v), wr.col.Type.Width())
	}
	if wr.blockRows == 0 {
		wr.blockFirst = append([]byte(nil), v...)
	}
	if wr.col.Type.IsIndirect() {
		var lenBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(v)))
		wr.blockBuf = append(wr.blockBuf, lenBuf[:n]...)
		wr.blockBuf = append(wr.blockBuf, v...)
	} else {
		wr.blockBuf = append(wr.blockBuf, v...)
	}
	wr.blockRows++
	wr.rows++
	if wr.blockRows >= wr.opt.BlockRowLimit {
		return wr.flushBlock()
	}
	return nil
}

func (wr *Writer) flushBlock() error {
	if wr.blockRows == 0 {
		return nil
	}
	encoded := compressBlock(wr.blockBuf, wr.opt.Compression)
	if _, err := wr.w.Write(encoded); err != nil {
		return errs.IOErrorf("colfile: write block: %v", err)
	}
	h := blockHandle{offset: wr.offset, length: uint64(len(encoded))}
	entry := indexEntry{startOrdinal: wr.rows - uint64(wr.blockRows), handle: h}
	if wr.col.IsKey {
		entry.firstValue = wr.blockFirst
	}
	wr.indexBlocks = append(wr.indexBlocks, entry)
	wr.offset += uint64(len(encoded))
	wr.blockBuf = wr.blockBuf[:0]
	wr.blockRows = 0
	wr.blockFirst = nil
	return nil
}

// Finish flushes any pending block and writes the file's index and
// footer. No further AppendValue calls are allowed afterward.
func (wr *Writer) Finish() error {
	if err := wr.flushBlock(); err != nil {
		return err
	}

	indexOff := wr.offset
	var idxBuf []byte
	for _, e := range wr.indexBlocks {
		var ordBuf [8]byte
		binary.BigEndian.PutUint64(ordBuf[:], e.startOrdinal)
		idxBuf = append(idxBuf, ordBuf[:]...)
		hb := make([]byte, blockHandleLen)
		putBlockHandle(hb, e.handle)
		idxBuf = append(idxBuf, hb...)
		if wr.col.IsKey {
			var lenBuf [binary.MaxVarintLen64]byte
			n := binary.PutUvarint(lenBuf[:], uint64(len(e.firstValue)))
			idxBuf = append(idxBuf, lenBuf[:n]...)
			idxBuf = append(idxBuf, e.firstValue...)
		}
	}
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(wr.indexBlocks)))
	idxBuf = append(countBuf[:], idxBuf...)
	if _, err := wr.w.Write(idxBuf); err != nil {
		return errs.IOErrorf("colfile: write index: %v", err)
	}
	wr.offset += uint64(len(idxBuf))

	return wr.writeFooter(indexOff, uint64(len(idxBuf)))
}

func (wr *Writer) writeFooter(indexOff, indexLen uint64) error {
	buf := make([]byte, footerLen)
	off := 0
	binary.BigEndian.PutUint64(buf[off:], magic)
	off += 8
	buf[off] = byte(wr.col.Type)
	off++
	if wr.col.IsKey {
		buf[off] = 1
	}
	off++
	binary.BigEndian.PutUint64(buf[off:], wr.rows)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], indexOff)
	off += 8
	binary.BigEndian.PutUint32(buf[off:], uint32(indexLen))
	off += 4
	binary.BigEndian.PutUint64(buf[off:], uint64(wr.col.Type.Width()))
	off += 8
	if _, err := wr.w.Write(buf); err != nil {
		return errs.IOErrorf("colfile: write footer: %v", err)
	}
	return nil
}
