// Package piecetree implements the persistent piece-tree text buffer: a
// red-black tree of byte-range descriptors over an immutable Original store
// and an append-only Add store, with copy-on-write snapshots, marks and
// Boyer-Moore search.
package piecetree

// Source names which backing store a Piece's byte range lives in.
type Source uint8

const (
	// Original is the immutable, fully-loaded (or memory-mapped) file content.
	Original Source = iota
	// Add is the append-only log of inserted bytes.
	Add
)

func (s Source) String() string {
	if s == Original {
		return "original"
	}
	return "add"
}

// Piece names a contiguous byte range in one backing store. Count
// disambiguates pieces that share the same (Source, Offset, Length) —
// required because MultiInsert appends one byte sequence and references it
// from many pieces; without Count, marks could not be uniquely attributed
// to a single piece among those duplicates.
type Piece struct {
	Source Source
	Offset int
	Length int
	Count  uint32
}

// End returns the exclusive end offset of the piece's range in its store.
func (p Piece) End() int { return p.Offset + p.Length }

// sameRun reports whether p and other describe immediately adjacent bytes
// in the same store with the same disambiguating Count — the condition
// under which Insert's append-coalescing may extend p in place instead of
// allocating a new piece.
func (p Piece) sameRun(other Piece) bool {
	return p.Source == other.Source && p.Count == other.Count && p.End() == other.Offset
}
