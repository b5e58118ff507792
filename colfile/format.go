// Package colfile implements the columnar file reader/writer spec.md §4.3
// and §6 treat as a black-box collaborator: one self-describing file per
// column, supporting ordinal seek and, for key-bearing columns, key-indexed
// seek. Block layout and compression follow the teacher's sstable block
// trailer convention (a one-byte compression tag plus a four-byte CRC-32
// checksum appended after the, possibly compressed, payload) adapted from
// a key/value block to a single-column value block.
package colfile

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/golang/snappy"

	"github.com/colstore/tablet/errs"
)

// Compression identifies the codec used for a data block's payload.
type Compression uint8

const (
	NoCompression Compression = iota
	SnappyCompression
)

const (
	blockTrailerLen = 5 // 1 byte compression tag + 4 byte crc32 checksum
	magic           = uint64(0xC01F11E0_57AB1E00)
	footerLen       = 8 + 1 + 1 + 8 + 8 + 4 + 8 // see writeFooter
	// defaultBlockRowLimit bounds how many values accumulate in a data
	// block before it is flushed, matching the teacher's fixed block-size
	// trigger in spirit (there it is byte-budget driven; a column file
	// has a uniform value width or length-prefix overhead, so a row
	// count budget is the simpler equivalent).
	defaultBlockRowLimit = 1024
)

// blockHandle locates a block within the file.
type blockHandle struct {
	offset uint64
	length uint64
}

func putBlockHandle(dst []byte, h blockHandle) {
	binary.BigEndian.PutUint64(dst[0:8], h.offset)
	binary.BigEndian.PutUint64(dst[8:16], h.length)
}

func getBlockHandle(src []byte) blockHandle {
	return blockHandle{
		offset: binary.BigEndian.Uint64(src[0:8]),
		length: binary.BigEndian.Uint64(src[8:16]),
	}
}

const blockHandleLen = 16

func compressBlock(payload []byte, c Compression) []byte {
	switch c {
	case SnappyCompression:
		enc := snappy.Encode(nil, payload)
		out := make([]byte, len(enc)+blockTrailerLen)
		copy(out, enc)
		out[len(enc)] = byte(SnappyCompression)
		binary.LittleEndian.PutUint32(out[len(enc)+1:], crc32.ChecksumIEEE(out[:len(enc)+1]))
		return out
	default:
		out := make([]byte, len(payload)+blockTrailerLen)
		copy(out, payload)
		out[len(payload)] = byte(NoCompression)
		binary.LittleEndian.PutUint32(out[len(payload)+1:], crc32.ChecksumIEEE(out[:len(payload)+1]))
		return out
	}
}

func decompressBlock(raw []byte) ([]byte, error) {
	if len(raw) < blockTrailerLen {
		return nil, errs.Corruptf("colfile: block shorter than trailer")
	}
	n := len(raw) - blockTrailerLen
	typ := Compression(raw[n])
	wantCRC := binary.LittleEndian.Uint32(raw[n+1:])
	gotCRC := crc32.ChecksumIEEE(raw[:n+1])
	if wantCRC != gotCRC {
		return nil, errs.Corruptf("colfile: block checksum mismatch")
	}
	switch typ {
	case NoCompression:
		return raw[:n], nil
	case SnappyCompression:
		out, err := snappy.Decode(nil, raw[:n])
		if err != nil {
			return nil, errs.Corruptf("colfile: snappy decode failed: %v", err)
		}
		return out, nil
	default:
		return nil, errs.Corruptf("colfile: unknown compression tag %d", typ)
	}
}
