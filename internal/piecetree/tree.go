package piecetree

import (
	"sync"
	"sync/atomic"

	edcerr "github.com/standardbeagle/edcore/internal/errors"
)

// treeState bundles a root pointer with the length it describes so
// concurrent readers observe them together: root and length are
// published with one atomic store, never two, so a reader can never see
// a new root paired with a stale length or vice versa.
type treeState struct {
	root   *node
	length int64
}

// PieceTree is the persistent piece-tree text buffer (spec §3-§4): an
// immutable Original byte store, an append-only Add store, and a
// red-black tree of Pieces describing how to reassemble buffer content
// from the two. One writer at a time mutates the tree under mu; readers
// load the current state atomically and never block on the writer.
// Every read also marks the root it loaded as shared (bumping its
// refcount) before walking it, so if the writer is mid-edit against that
// same state concurrently, cow() is forced to clone rather than mutate a
// node the reader might still be visiting — the same mechanism that
// protects an outstanding Snapshot.
type PieceTree struct {
	mu  sync.Mutex
	add *AddStore

	original []byte
	state    atomic.Pointer[treeState]

	nextHandleID atomic.Uint64
	pieceCount   atomic.Uint32

	snapMu    sync.Mutex
	snapshots map[uint64]Snapshot

	// lastAppend tracks the most recent Insert's append site so a
	// directly-following Insert at the same cursor position can extend
	// the existing piece instead of allocating a new node (spec §4.1
	// append-coalescing). Cleared by any edit that isn't a simple
	// forward append at the same spot.
	lastAppend struct {
		valid    bool
		treePos  int64 // logical offset the run currently ends at
		addEnd   int   // add-store global offset the run currently ends at
		pieceRef *node // the node holding the run's piece, for the refs==1 in-place check
	}
}

// New builds a PieceTree over the given original content. The slice is
// retained, not copied — callers must not mutate it afterward.
func New(original []byte) *PieceTree {
	t := &PieceTree{
		add:       NewAddStore(),
		original:  original,
		snapshots: make(map[uint64]Snapshot),
	}
	var root *node
	if len(original) > 0 {
		p := Piece{Source: Original, Offset: 0, Length: len(original), Count: t.pieceCount.Add(1)}
		root = insertAt(nil, 0, p)
		root.color = black
	}
	t.state.Store(&treeState{root: root, length: int64(len(original))})
	return t
}

// loadForReading returns the current root and length, marking the root
// shared so a concurrent writer clones instead of mutating it in place.
// The snapshot-and-bump has to happen while mu is held: bumping the
// refcount a moment after loading the pointer would leave a window where
// the writer could see refs==1, mutate the published root in place, and
// only then have the reader bump arrive too late to have prevented it.
// Once bumped, the subsequent field walk itself stays lock-free — no
// further writer can touch this root without first re-observing the
// bumped count and cloning.
func (t *PieceTree) loadForReading() (*node, int64) {
	t.mu.Lock()
	s := t.state.Load()
	if s.root != nil {
		atomic.AddInt32(&s.root.refs, 1)
	}
	t.mu.Unlock()
	return s.root, s.length
}

// Len returns the current buffer length in bytes.
func (t *PieceTree) Len() int64 { return t.state.Load().length }

func (t *PieceTree) nextPieceCount() uint32 { return t.pieceCount.Add(1) }

func (t *PieceTree) readPieceBytes(p Piece) []byte {
	if p.Source == Original {
		return t.original[p.Offset : p.Offset+p.Length]
	}
	return t.add.Read(p.Offset, p.Length)
}

func readRange(t *PieceTree, root *node, total, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > total {
		return nil, &edcerr.OutOfBoundsError{Offset: int(offset), Length: int(length)}
	}
	if length == 0 {
		return []byte{}, nil
	}
	end := offset + length
	out := make([]byte, 0, length)
	inorder(root, 0, func(p Piece, start int64) bool {
		pEnd := start + int64(p.Length)
		if pEnd <= offset {
			return true
		}
		if start >= end {
			return false
		}
		lo := int64(0)
		if start < offset {
			lo = offset - start
		}
		hi := int64(p.Length)
		if pEnd > end {
			hi = end - start
		}
		out = append(out, t.readPieceBytes(p)[lo:hi]...)
		return pEnd < end
	})
	return out, nil
}

// Read returns a copy of the length bytes starting at offset.
func (t *PieceTree) Read(offset, length int64) ([]byte, error) {
	root, total := t.loadForReading()
	return readRange(t, root, total, offset, length)
}

// Bytes returns a copy of the entire buffer content.
func (t *PieceTree) Bytes() []byte {
	root, total := t.loadForReading()
	b, _ := readRange(t, root, total, 0, total)
	return b
}

func rightmost(h *node) (*node, int64) {
	if h == nil {
		return nil, 0
	}
	start := h.leftBytes
	for h.right != nil {
		start += int64(h.right.leftBytes) + int64(h.piece.Length)
		h = h.right
	}
	return h, start
}

// spliceInsert inserts piece at logical offset pos into root, splitting
// the piece covering pos first if pos falls strictly inside it.
func spliceInsert(root *node, pos int64, piece Piece) *node {
	if root == nil {
		nr := insertAt(nil, 0, piece)
		nr.color = black
		return nr
	}
	p, pieceStart, ok := findAt(root, pos)
	if ok && pos > pieceStart {
		k := pos - pieceStart
		left := Piece{Source: p.Source, Offset: p.Offset, Length: int(k), Count: p.Count}
		right := Piece{Source: p.Source, Offset: p.Offset + int(k), Length: p.Length - int(k), Count: p.Count}
		root = deleteAt(root, pieceStart)
		root = insertAt(root, pieceStart, left)
		root = insertAt(root, pieceStart+k, piece)
		root = insertAt(root, pieceStart+k+int64(piece.Length), right)
	} else {
		root = insertAt(root, pos, piece)
	}
	root.color = black
	return root
}

// Insert places content at logical offset pos.
func (t *PieceTree) Insert(pos int64, content []byte) error {
	if len(content) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.state.Load()
	if pos < 0 || pos > cur.length {
		return &edcerr.OutOfBoundsError{Offset: int(pos), Length: len(content)}
	}

	addOffset, contiguous := t.add.Append(content)
	root := cur.root

	if t.tryExtendLastAppend(root, pos, addOffset, contiguous, len(content)) {
		t.state.Store(&treeState{root: root, length: cur.length + int64(len(content))})
		return nil
	}

	piece := Piece{Source: Add, Offset: addOffset, Length: len(content), Count: t.nextPieceCount()}
	root = spliceInsert(root, pos, piece)
	t.state.Store(&treeState{root: root, length: cur.length + int64(len(content))})

	newNode, _ := findNodeAt(root, pos)
	t.lastAppend.valid = true
	t.lastAppend.treePos = pos + int64(len(content))
	t.lastAppend.addEnd = addOffset + len(content)
	t.lastAppend.pieceRef = newNode
	return nil
}

// tryExtendLastAppend extends the piece created by the immediately
// preceding Insert in place when this Insert continues typing right
// after it: same cursor position, contiguous add-store bytes, and the
// node is still exclusively owned (no Snapshot or concurrent read has
// touched it since). Returns false (doing nothing) whenever any of that
// doesn't hold — extension is an optimization, never required for
// correctness.
func (t *PieceTree) tryExtendLastAppend(root *node, pos int64, addOffset int, contiguous bool, n int) bool {
	la := &t.lastAppend
	if !la.valid || !contiguous || pos != la.treePos || addOffset != la.addEnd {
		la.valid = false
		return false
	}
	if atomic.LoadInt32(&la.pieceRef.refs) != 1 {
		la.valid = false
		return false
	}
	// Every node on the right spine has its bytes cache grown below, so
	// each must be exclusively owned too; Snapshot and reads mark only the
	// root as shared.
	for h := root; h != nil; h = h.right {
		if atomic.LoadInt32(&h.refs) != 1 {
			la.valid = false
			return false
		}
	}
	last, lastStart := rightmost(root)
	extended := Piece{Source: Add, Offset: addOffset, Length: 0, Count: last.piece.Count}
	if last != la.pieceRef || lastStart+int64(last.piece.Length) != pos || !last.piece.sameRun(extended) {
		la.valid = false
		return false
	}
	last.piece = Piece{Source: Add, Offset: last.piece.Offset, Length: last.piece.Length + n, Count: last.piece.Count}
	for h := root; h != nil; h = h.right {
		h.bytes += int64(n)
	}
	la.treePos = pos + int64(n)
	la.addEnd = addOffset + n
	return true
}

func findNodeAt(h *node, offset int64) (*node, int64) {
	for h != nil {
		if offset < h.leftBytes {
			h = h.left
			continue
		}
		rel := offset - h.leftBytes
		if rel < int64(h.piece.Length) {
			return h, offset - rel
		}
		offset = rel - int64(h.piece.Length)
		h = h.right
	}
	return nil, 0
}

// MultiInsert places the same content at every position simultaneously,
// as a multi-cursor edit: the bytes are appended to the Add store exactly
// once and referenced from one Piece per cursor, each carrying a distinct
// Count so marks can still tell the copies apart. Positions are applied
// from highest to lowest so that inserting at a later offset never
// invalidates an earlier, not-yet-applied one.
func (t *PieceTree) MultiInsert(positions []int64, content []byte) error {
	if len(content) == 0 || len(positions) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAppend.valid = false

	cur := t.state.Load()
	sorted := append([]int64(nil), positions...)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] > sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	for _, p := range sorted {
		if p < 0 || p > cur.length {
			return &edcerr.OutOfBoundsError{Offset: int(p), Length: len(content)}
		}
	}

	addOffset, _ := t.add.Append(content)
	root := cur.root
	for _, pos := range sorted {
		piece := Piece{Source: Add, Offset: addOffset, Length: len(content), Count: t.nextPieceCount()}
		root = spliceInsert(root, pos, piece)
	}
	t.state.Store(&treeState{root: root, length: cur.length + int64(len(content))*int64(len(positions))})
	return nil
}

// splitAt ensures `at` is a piece boundary in root, splitting the piece
// that straddles it if necessary, and returns the (possibly new) root.
func splitAt(root *node, at int64) *node {
	if root == nil || at <= 0 || at >= subtreeBytes(root) {
		return root
	}
	p, pieceStart, ok := findAt(root, at)
	if !ok || at == pieceStart {
		return root
	}
	k := at - pieceStart
	left := Piece{Source: p.Source, Offset: p.Offset, Length: int(k), Count: p.Count}
	right := Piece{Source: p.Source, Offset: p.Offset + int(k), Length: p.Length - int(k), Count: p.Count}
	root = deleteAt(root, pieceStart)
	root = insertAt(root, pieceStart, left)
	root = insertAt(root, pieceStart+k, right)
	root.color = black
	return root
}

// Delete removes the half-open byte range [start, end).
func (t *PieceTree) Delete(start, end int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAppend.valid = false

	cur := t.state.Load()
	if start < 0 || end > cur.length || start > end {
		return &edcerr.OutOfBoundsError{Offset: int(start), Length: int(end - start)}
	}
	if start == end {
		return nil
	}

	root := cur.root
	root = splitAt(root, start)
	root = splitAt(root, end)

	for {
		p, pieceStart, ok := findAt(root, start)
		if !ok || pieceStart != start || pieceStart+int64(p.Length) > end {
			break
		}
		root = deleteAt(root, start)
	}
	if root != nil {
		root.color = black
	}
	t.state.Store(&treeState{root: root, length: cur.length - (end - start)})
	return nil
}

// Snapshot captures the current buffer state as an immutable handle.
// Taking a snapshot never copies tree nodes — it only marks the current
// root as shared, so the next mutating call clones along the edited path
// instead of touching anything the snapshot can still see.
type Snapshot struct {
	id     uint64
	root   *node
	length int64
}

// ID returns the snapshot's identifier, stable for its lifetime.
func (s Snapshot) ID() uint64 { return s.id }

// Snapshot takes an immutable handle on the buffer's current content.
func (t *PieceTree) Snapshot() Snapshot {
	root, length := t.loadForReading()
	id := t.nextHandleID.Add(1)
	snap := Snapshot{id: id, root: root, length: length}

	t.snapMu.Lock()
	t.snapshots[id] = snap
	t.snapMu.Unlock()
	return snap
}

// Restore makes the buffer's live content equal to a previously taken
// Snapshot (undo/redo). The snapshot remains valid and may be restored
// to again, or discarded explicitly with DiscardSnapshot.
func (t *PieceTree) Restore(s Snapshot) error {
	t.snapMu.Lock()
	_, ok := t.snapshots[s.id]
	t.snapMu.Unlock()
	if !ok {
		return &edcerr.StaleSnapshotError{SnapshotID: s.id}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s.root != nil {
		atomic.AddInt32(&s.root.refs, 1)
	}
	t.state.Store(&treeState{root: s.root, length: s.length})
	t.lastAppend.valid = false
	return nil
}

// DiscardSnapshot releases a snapshot handle. Restoring it afterward
// reports StaleSnapshotError.
func (t *PieceTree) DiscardSnapshot(s Snapshot) {
	t.snapMu.Lock()
	delete(t.snapshots, s.id)
	t.snapMu.Unlock()
}

// ReadAt copies a Snapshot's content without disturbing the live buffer.
func (s Snapshot) ReadAt(t *PieceTree, offset, length int64) ([]byte, error) {
	return readRange(t, s.root, s.length, offset, length)
}
