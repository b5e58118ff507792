// Package schema describes the ordered column list of a tablet: names,
// primitive types, which columns form the key prefix, and the fixed record
// width the row codec needs to lay out a row.
package schema

import (
	"strings"

	"github.com/colstore/tablet/errs"
)

// Type is a primitive column type. This core recognizes fixed-width
// unsigned integers and variable-length byte strings, the minimum spec.md
// §3 requires.
type Type int

const (
	// Uint8 through Uint64 are fixed-width unsigned integer types.
	Uint8 Type = iota
	Uint16
	Uint32
	Uint64
	// Bytes is a variable-length byte string; its fixed-width slot holds
	// a (length, arena offset) pair rather than the value itself.
	Bytes
)

// Width returns the fixed-width slot size in bytes for t. Bytes columns
// occupy a (uint32 length, uint32 offset) slot; the actual payload lives
// in an arena.
func (t Type) Width() int {
	switch t {
	case Uint8:
		return 1
	case Uint16:
		return 2
	case Uint32:
		return 4
	case Uint64:
		return 8
	case Bytes:
		return 8
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Bytes:
		return "bytes"
	default:
		return "invalid"
	}
}

// IsIndirect reports whether values of this type are stored behind an
// arena pointer rather than inline in the fixed-width record.
func (t Type) IsIndirect() bool { return t == Bytes }

// Column describes a single column: its position, name, primitive type,
// and whether it participates in the key.
type Column struct {
	Name   string
	Type   Type
	IsKey  bool
	offset int // fixed-record byte offset, set by New
}

// Offset returns the column's byte offset within a row's fixed-width
// record.
func (c Column) Offset() int { return c.offset }

// Schema is an ordered, immutable column list. Key columns must form a
// prefix of the column list (spec.md §3).
type Schema struct {
	columns     []Column
	byName      map[string]int
	keyColCount int
	keyWidth    int
	rowWidth    int
}

// New builds a Schema from an ordered column list. Key columns must be a
// prefix; violating that, or repeating a column name, returns
// InvalidArgument.
func New(columns []Column) (*Schema, error) {
	if len(columns) == 0 {
		return nil, errs.InvalidArgumentf("schema: at least one column required")
	}

	s := &Schema{
		columns: make([]Column, len(columns)),
		byName:  make(map[string]int, len(columns)),
	}

	seenNonKey := false
	offset := 0
	for i, c := range columns {
		if c.IsKey {
			if seenNonKey {
				return nil, errs.InvalidArgumentf("schema: key column %q is not part of the key prefix", c.Name)
			}
			s.keyColCount++
		} else {
			seenNonKey = true
		}
		if _, dup := s.byName[c.Name]; dup {
			return nil, errs.InvalidArgumentf("schema: duplicate column name %q", c.Name)
		}
		c.offset = offset
		offset += c.Type.Width()
		s.columns[i] = c
		s.byName[c.Name] = i
	}
	if s.keyColCount == 0 {
		return nil, errs.InvalidArgumentf("schema: at least one key column required")
	}
	s.rowWidth = offset
	for i := 0; i < s.keyColCount; i++ {
		s.keyWidth += s.columns[i].Type.Width()
	}
	return s, nil
}

// NumColumns returns the number of columns.
func (s *Schema) NumColumns() int { return len(s.columns) }

// Column returns the column at ordinal index i.
func (s *Schema) Column(i int) Column { return s.columns[i] }

// ColumnByName looks up a column's ordinal by name, returning
// InvalidArgument if absent.
func (s *Schema) ColumnByName(name string) (int, error) {
	i, ok := s.byName[name]
	if !ok {
		return 0, errs.InvalidArgumentf("schema: no such column %q", name)
	}
	return i, nil
}

// NumKeyColumns returns how many leading columns form the key.
func (s *Schema) NumKeyColumns() int { return s.keyColCount }

// KeyByteSize returns the fixed-width size in bytes of the key prefix.
func (s *Schema) KeyByteSize() int { return s.keyWidth }

// ByteSize returns the total fixed record width, including key columns.
func (s *Schema) ByteSize() int { return s.rowWidth }

// KeyBytes returns the canonical flat key for a row's fixed record and
// indirect arena: the concatenation of each key column's raw value bytes,
// fixed-width columns encoded big-endian (see package row) so that
// bytes.Compare over the result equals field-by-field lexicographic
// comparison. This requires that at most the final key column be
// variable-length, since variable-length fields are not length-prefixed.
func (s *Schema) KeyBytes(rec, indirect []byte) []byte {
	if s.keyColCount == 1 && !s.columns[0].Type.IsIndirect() {
		// Common case: fixed-width single-column key, no copy needed.
		c := s.columns[0]
		return rec[c.offset : c.offset+c.Type.Width()]
	}
	out := make([]byte, 0, s.keyWidth)
	for i := 0; i < s.keyColCount; i++ {
		out = append(out, fieldBytes(s.columns[i], rec, indirect)...)
	}
	return out
}

// CompareKeys lexicographically compares the key prefix of two
// fixed-width records. Indirect (Bytes) key columns are compared by their
// referenced bytes, not their (length, offset) slot, so callers must pass
// the arena each record's indirect data lives in; for pure fixed-width
// keys, arenas may be nil.
func (s *Schema) CompareKeys(aRec, aArena, bRec, bArena []byte) int {
	return compareBytes(s.KeyBytes(aRec, aArena), s.KeyBytes(bRec, bArena))
}

func fieldBytes(c Column, rec, arena []byte) []byte {
	if !c.Type.IsIndirect() {
		return rec[c.offset : c.offset+c.Type.Width()]
	}
	length := be32(rec[c.offset:])
	off := be32(rec[c.offset+4:])
	return arena[off : off+length]
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func compareBytes(a, b []byte) int {
	return strings.Compare(string(a), string(b))
}

// String is a debug formatter listing column name:type pairs, key columns
// marked with a trailing '*'.
func (s *Schema) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte(':')
		b.WriteString(c.Type.String())
		if c.IsKey {
			b.WriteByte('*')
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Projection resolves each column of a subset schema to its ordinal in
// this (source) schema, failing if a projected column is absent or its
// type does not match.
type Projection struct {
	// SourceIndex[i] is the ordinal in the source schema of the i-th
	// column of the projection schema.
	SourceIndex []int
}

// Resolve builds a Projection mapping proj's columns onto s's columns.
func (s *Schema) Resolve(proj *Schema) (*Projection, error) {
	idx := make([]int, proj.NumColumns())
	for i := 0; i < proj.NumColumns(); i++ {
		pc := proj.Column(i)
		si, err := s.ColumnByName(pc.Name)
		if err != nil {
			return nil, errs.InvalidArgumentf("schema: projection column %q not present in source schema", pc.Name)
		}
		sc := s.Column(si)
		if sc.Type != pc.Type {
			return nil, errs.InvalidArgumentf("schema: projection column %q type mismatch: source %s, projection %s", pc.Name, sc.Type, pc.Type)
		}
		idx[i] = si
	}
	return &Projection{SourceIndex: idx}, nil
}

// EnsureKeyWidth returns InvalidArgument if key is shorter than the
// schema's fixed key width.
func (s *Schema) EnsureKeyWidth(key []byte) error {
	if len(key) < s.KeyByteSize() {
		return errs.InvalidArgumentf("schema: key of %d bytes shorter than key width %d", len(key), s.KeyByteSize())
	}
	return nil
}
