package piecetree

import edcerr "github.com/standardbeagle/edcore/internal/errors"

// Mark anchors a logical position to the backing-store byte it names
// rather than to a tree-relative offset, so it survives edits anywhere
// else in the buffer (spec §4.2). Count picks out a single piece among
// the several that can reference the very same store range — MultiInsert
// appends one byte run and attaches it to many pieces, one per cursor.
//
// A Mark created at end-of-buffer has no covering piece to anchor to —
// there is no byte there yet, and if there later is one, text typed at
// the end of the buffer should not retroactively appear before the
// mark. It is represented with eof set and always resolves to the
// buffer's current length, tracking further appends.
type Mark struct {
	id     uint64
	source Source
	offset int
	count  uint32
	eof    bool
}

// ID returns the mark's identifier, stable for its lifetime.
func (m Mark) ID() uint64 { return m.id }

// CreateMark anchors a new mark at the given logical offset.
func (t *PieceTree) CreateMark(logicalOffset int64) (Mark, error) {
	root, total := t.loadForReading()
	if logicalOffset < 0 || logicalOffset > total {
		return Mark{}, &edcerr.OutOfBoundsError{Offset: int(logicalOffset), Length: 0}
	}
	id := t.nextHandleID.Add(1) // shares the same monotonic source as snapshot IDs; both are opaque handles

	if logicalOffset == total {
		return Mark{id: id, eof: true}, nil
	}

	p, pieceStart, ok := findAt(root, logicalOffset)
	if !ok {
		return Mark{id: id, eof: true}, nil
	}
	storeOffset := p.Offset + int(logicalOffset-pieceStart)
	return Mark{id: id, source: p.Source, offset: storeOffset, count: p.Count}, nil
}

// Resolve returns m's current logical offset, or false if the text it
// was anchored to has since been deleted.
func (t *PieceTree) Resolve(m Mark) (int64, bool) {
	root, total := t.loadForReading()
	if m.eof {
		return total, true
	}
	var found int64 = -1
	inorder(root, 0, func(p Piece, start int64) bool {
		if p.Source != m.source || p.Count != m.count {
			return true
		}
		if m.offset < p.Offset || m.offset > p.End() {
			return true
		}
		found = start + int64(m.offset-p.Offset)
		return false
	})
	if found < 0 {
		return 0, false
	}
	return found, true
}
