// Package arena implements a bump allocator for the variable-length
// indirect bytes (e.g. Bytes-typed column values) that a fixed-width row
// record points into. spec.md §3/§5: a RowBlock owns an arena whose
// lifetime bounds the validity of indirect pointers into it; callers may
// reset the arena between batches only after consuming the prior batch.
package arena

// Arena is a single-writer, append-only byte buffer. It is not safe for
// concurrent use.
type Arena struct {
	buf []byte
}

// New returns an Arena with the given initial capacity hint.
func New(capacityHint int) *Arena {
	return &Arena{buf: make([]byte, 0, capacityHint)}
}

// Put appends b to the arena and returns the offset it was written at.
// The returned offset, together with len(b), is what a fixed-width record
// stores as its indirect pointer.
func (a *Arena) Put(b []byte) (offset uint32) {
	offset = uint32(len(a.buf))
	a.buf = append(a.buf, b...)
	return offset
}

// Bytes returns the slice of the arena at [offset, offset+length). The
// returned slice aliases the arena's backing array and is only valid
// until the next Reset.
func (a *Arena) Bytes(offset, length uint32) []byte {
	return a.buf[offset : offset+length]
}

// Len returns the number of bytes currently held in the arena.
func (a *Arena) Len() int { return len(a.buf) }

// Reset empties the arena for reuse, retaining its backing storage.
// Callers must not hold any previously returned Bytes slices across a
// Reset.
func (a *Arena) Reset() { a.buf = a.buf[:0] }
