package buffer

import "github.com/standardbeagle/edcore/internal/piecetree"

// Direction selects a search's scan direction (spec §6 `search(pattern,
// dir, from) → Iterator<offset>`).
type Direction int

const (
	Forward Direction = iota
	Backward
)

// SearchIterator lazily yields match offsets from a completed Boyer-Moore
// scan. The underlying piecetree.PieceTree.Search already materializes
// every match eagerly (it reads the whole remaining buffer once to keep
// the skip tables correct across piece boundaries) — this type exists so
// callers consume results through the spec's Iterator shape rather than a
// raw slice, without claiming the underlying scan is itself lazy.
type SearchIterator struct {
	matches []piecetree.Match
	idx     int
}

// Next returns the next match's start offset, or ok=false when exhausted.
func (it *SearchIterator) Next() (offset int64, ok bool) {
	if it.idx >= len(it.matches) {
		return 0, false
	}
	m := it.matches[it.idx]
	it.idx++
	return m.Start, true
}

// Search scans for pattern starting at from in the given direction (spec
// §6 `search(pattern, dir, from)`), returning a lazily-consumed iterator
// over match start offsets.
func (b *Buffer) Search(pattern []byte, dir Direction, from int64, opts piecetree.SearchOptions) *SearchIterator {
	if dir == Backward {
		m, ok := b.tree.SearchBackward(pattern, from, opts)
		if !ok {
			return &SearchIterator{}
		}
		return &SearchIterator{matches: []piecetree.Match{m}}
	}
	return &SearchIterator{matches: b.tree.Search(pattern, from, opts)}
}
