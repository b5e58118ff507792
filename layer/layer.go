// Package layer implements the immutable, on-disk snapshot of a
// memstore's content at flush time (spec.md §3, §4.4): one columnar
// file per column, plus the transitional KeysFlushedLayer variant used
// during flush handoff.
package layer

import (
	"path"
	"strconv"

	"github.com/colstore/tablet/row"
	"github.com/colstore/tablet/schema"
)

// Layer is the common contract both concrete variants satisfy. The
// tablet must not assume a concrete variant (spec.md §9), so it only
// ever holds values of this interface.
type Layer interface {
	CheckRowPresent(key []byte) (bool, error)
	NewRowIterator(projSchema *schema.Schema) (Iterator, error)
	CountRows() uint64
	ToString() string
	// Dir returns the layer's directory path, relative to its
	// Environment root, for the tablet to delete once a compaction
	// retires it.
	Dir() string

	// IsUpdatableInPlace reports whether UpdateRow against a resident
	// key can succeed; both current variants return false.
	IsUpdatableInPlace() bool
	// SupportsFindRow reports whether FindRow is implemented.
	SupportsFindRow() bool
	// FindRow looks up a row's ordinal by key. Only valid when
	// SupportsFindRow() is true.
	FindRow(key []byte) (ordinal uint64, ok bool, err error)

	// Close releases any open column file handles.
	Close() error
}

// Iterator is a layer's row iterator, matching the shape memstore's
// Iterator and the merge iterator also expose so the tablet can treat
// every row source uniformly (spec.md §4.4, §6).
type Iterator interface {
	Schema() *schema.Schema
	Init() error
	SeekAtOrAfter(key []byte) (exact bool, err error)
	SeekToOrdinal(n int) error
	HasNext() bool
	CopyNextRows(nRows *int, blk *row.Block) error
}

// columnFileName is the on-disk name for col's file within a layer
// directory: the column's ordinal, not its name, so that a column
// rename (not supported by this core, but kept simple regardless) can
// never collide with an existing file.
func columnFileName(ordinal int) string {
	return path.Join("columns", strconv.Itoa(ordinal)+".col")
}

func keyColumnFileName() string {
	return path.Join("columns", "key.col")
}
