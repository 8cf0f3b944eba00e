package piecetree

import "sync/atomic"

// color is a left-leaning red-black tree link color (Sedgewick LLRB): red
// links lean left and no node ever carries two red children.
type color uint8

const (
	black color = iota
	red
)

// node is one entry of the piece tree: a Piece plus the red-black linkage
// and the byte-accounting caches used for O(log n) offset resolution.
//
// leftBytes is the cache spec §3 requires: total piece-length bytes held
// in the left subtree. bytes additionally caches this node's own subtree
// total (leftBytes + this piece + right subtree) so rotations can restore
// both in O(1) without a subtree walk; the spec only mandates leftBytes,
// bytes is an implementation enrichment in the same spirit as a
// order-statistics tree's size field.
//
// refs is the copy-on-write reference count: the number of live parent
// slots (across the active tree and every outstanding Snapshot) that
// point at this node. It only ever increases — nothing decrements it, so a
// node once shared is always cloned by cow() before a later mutation, and
// Restore bumps the restored root's count.
type node struct {
	piece     Piece
	left      *node
	right     *node
	color     color
	leftBytes int64
	bytes     int64
	refs      int32
}

func newLeaf(p Piece) *node {
	return &node{piece: p, color: red, bytes: int64(p.Length), refs: 1}
}

func isRed(n *node) bool {
	return n != nil && n.color == red
}

func subtreeBytes(n *node) int64 {
	if n == nil {
		return 0
	}
	return n.bytes
}

// cow returns a node safe to mutate in place: n itself if its refcount is
// exactly 1 (exclusively owned by the tree performing this edit), or a
// fresh shallow clone — with refs reset to 1 and both children's refcounts
// bumped for the extra parent pointer the clone now holds — otherwise.
// This is the sole COW decision point (spec §9): "clone a node iff its
// refcount > 1 at the moment of mutation; otherwise mutate in place."
func cow(n *node) *node {
	if atomic.LoadInt32(&n.refs) <= 1 {
		return n
	}
	clone := &node{
		piece:     n.piece,
		left:      n.left,
		right:     n.right,
		color:     n.color,
		leftBytes: n.leftBytes,
		bytes:     n.bytes,
		refs:      1,
	}
	if clone.left != nil {
		atomic.AddInt32(&clone.left.refs, 1)
	}
	if clone.right != nil {
		atomic.AddInt32(&clone.right.refs, 1)
	}
	return clone
}

// rotateLeft and rotateRight require h to already be cow-safe (the
// caller's responsibility, enforced throughout this file by always
// cow()-ing a node before passing it to balance/rotate/flip); the child
// being promoted is mutated too, so it is cow()'d here.
func rotateLeft(h *node) *node {
	x := cow(h.right)
	h.right = x.left
	x.left = h
	x.color = h.color
	h.color = red

	h.bytes = h.leftBytes + int64(h.piece.Length) + subtreeBytes(h.right)
	x.leftBytes = h.bytes
	x.bytes = x.leftBytes + int64(x.piece.Length) + subtreeBytes(x.right)
	return x
}

func rotateRight(h *node) *node {
	x := cow(h.left)
	h.left = x.right
	x.right = h
	x.color = h.color
	h.color = red

	h.leftBytes = subtreeBytes(h.left)
	h.bytes = h.leftBytes + int64(h.piece.Length) + subtreeBytes(h.right)
	x.bytes = subtreeBytes(x.left) + int64(x.piece.Length) + h.bytes
	return x
}

// flipColors requires h to already be cow-safe. It mutates both
// children's color fields, so it cow()'s each child first and writes the
// (possibly cloned) result back into h.
func flipColors(h *node) {
	h.color = otherColor(h.color)
	h.left = cow(h.left)
	h.right = cow(h.right)
	h.left.color = otherColor(h.left.color)
	h.right.color = otherColor(h.right.color)
}

func otherColor(c color) color {
	if c == red {
		return black
	}
	return red
}

// balance restores the LLRB invariants after an insert or delete step and
// refreshes the node's byte caches.
func balance(h *node) *node {
	if isRed(h.right) && !isRed(h.left) {
		h = rotateLeft(h)
	}
	if isRed(h.left) && isRed(h.left.left) {
		h = rotateRight(h)
	}
	if isRed(h.left) && isRed(h.right) {
		flipColors(h)
	}
	h.leftBytes = subtreeBytes(h.left)
	h.bytes = h.leftBytes + int64(h.piece.Length) + subtreeBytes(h.right)
	return h
}

// insertAt inserts piece so that it occupies logical byte offset `at`
// among the pieces already in the subtree rooted at h. `at` is always a
// piece boundary — the caller (PieceTree) has already split any piece
// that `at` would otherwise land inside. Ties (at == h.leftBytes) insert
// into the left subtree, i.e. immediately before h's own piece.
func insertAt(h *node, at int64, piece Piece) *node {
	if h == nil {
		return newLeaf(piece)
	}
	h = cow(h)
	if at <= h.leftBytes {
		h.left = insertAt(h.left, at, piece)
	} else {
		h.right = insertAt(h.right, at-h.leftBytes-int64(h.piece.Length), piece)
	}
	return balance(h)
}

func moveRedLeft(h *node) *node {
	flipColors(h)
	if isRed(h.right.left) {
		h.right = rotateRight(h.right)
		h = rotateLeft(h)
		flipColors(h)
	}
	return h
}

func moveRedRight(h *node) *node {
	flipColors(h)
	if isRed(h.left.left) {
		h = rotateRight(h)
		flipColors(h)
	}
	return h
}

func minNode(h *node) *node {
	for h.left != nil {
		h = h.left
	}
	return h
}

func deleteMin(h *node) *node {
	h = cow(h)
	if h.left == nil {
		return nil
	}
	if !isRed(h.left) && !isRed(h.left.left) {
		h = moveRedLeft(h)
	}
	h.left = deleteMin(h.left)
	return balance(h)
}

// deleteAt removes the node whose piece begins exactly at logical offset
// `at` within the subtree rooted at h. As with insertAt, the caller
// guarantees `at` names an exact piece boundary.
func deleteAt(h *node, at int64) *node {
	if at < h.leftBytes {
		h = cow(h)
		if !isRed(h.left) && !isRed(h.left.left) {
			h = moveRedLeft(h)
		}
		h.left = deleteAt(h.left, at)
	} else {
		if isRed(h.left) {
			h = cow(h)
			h = rotateRight(h)
		}
		if at == h.leftBytes && h.right == nil {
			return nil
		}
		h = cow(h)
		if !isRed(h.right) && !isRed(h.right.left) {
			h = moveRedRight(h)
		}
		if at == h.leftBytes {
			succ := minNode(h.right)
			h.piece = succ.piece
			h.right = deleteMin(h.right)
		} else {
			h.right = deleteAt(h.right, at-h.leftBytes-int64(h.piece.Length))
		}
	}
	return balance(h)
}

// findAt resolves a logical byte offset to the piece covering it and the
// logical start offset of that piece. O(log n).
func findAt(h *node, offset int64) (piece Piece, pieceStart int64, ok bool) {
	for h != nil {
		if offset < h.leftBytes {
			h = h.left
			continue
		}
		rel := offset - h.leftBytes
		if rel < int64(h.piece.Length) {
			return h.piece, offset - rel, true
		}
		offset = rel - int64(h.piece.Length)
		h = h.right
	}
	return Piece{}, 0, false
}

// inorder walks every piece left to right, passing each piece's logical
// start offset. Used for content reconstruction, search chunk iteration
// and mark resolution.
func inorder(h *node, base int64, visit func(p Piece, start int64) bool) bool {
	if h == nil {
		return true
	}
	if !inorder(h.left, base, visit) {
		return false
	}
	start := base + h.leftBytes
	if !visit(h.piece, start) {
		return false
	}
	return inorder(h.right, start+int64(h.piece.Length), visit)
}
