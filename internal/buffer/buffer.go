// Package buffer implements the Buffer API (spec §6): the editor-facing
// surface gluing internal/piecetree (content + snapshots + marks +
// search) to internal/highlight (incremental re-parse) and internal/task
// (background work).
package buffer

import (
	"context"
	"os"
	"sync"
	"time"

	edcerr "github.com/standardbeagle/edcore/internal/errors"
	"github.com/standardbeagle/edcore/internal/highlight"
	"github.com/standardbeagle/edcore/internal/parser"
	"github.com/standardbeagle/edcore/internal/piecetree"
	"github.com/standardbeagle/edcore/internal/task"
)

// SnapshotID and MarkID are the opaque handles spec §6 names
// `snapshot() → SnapshotId` and `mark(offset) → MarkId` around. Both are
// PieceTree handle IDs (a single monotonic counter shared by both kinds,
// per piecetree.PieceTree.nextHandleID).
type SnapshotID = uint64
type MarkID = uint64

// Buffer is one open document: a PieceTree plus the snapshot/mark handle
// bookkeeping and optional highlighting the Buffer API layers on top.
type Buffer struct {
	tree *piecetree.PieceTree
	path string

	mu        sync.Mutex
	snapshots map[SnapshotID]piecetree.Snapshot
	marks     map[MarkID]piecetree.Mark

	subMu     sync.Mutex
	subs      map[int]chan EditEvent
	nextSubID int

	driver *highlight.Driver
}

// Open reads path's full content and returns a Buffer over it (spec §6
// `open(path) → Buffer | IoError`).
func Open(path string) (*Buffer, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, edcerr.NewIoError("open", path, err)
	}
	return New(path, content), nil
}

// New returns a Buffer over content without touching disk, for in-memory
// buffers (scratch documents, tests). content is retained, not copied —
// callers must not mutate it afterward, matching piecetree.New.
func New(path string, content []byte) *Buffer {
	return &Buffer{
		tree:      piecetree.New(content),
		path:      path,
		snapshots: make(map[SnapshotID]piecetree.Snapshot),
		marks:     make(map[MarkID]piecetree.Mark),
		subs:      make(map[int]chan EditEvent),
	}
}

// Path returns the path this buffer was opened from ("" for an in-memory
// buffer built with New).
func (b *Buffer) Path() string { return b.path }

// Len returns the buffer's current logical length in bytes.
func (b *Buffer) Len() int64 { return b.tree.Len() }

// Read returns a copy of the length bytes starting at offset (spec §6
// `read(offset, len) → bytes`).
func (b *Buffer) Read(offset, length int64) ([]byte, error) {
	return b.tree.Read(offset, length)
}

// Bytes returns a copy of the buffer's entire content.
func (b *Buffer) Bytes() []byte { return b.tree.Bytes() }

// Insert places content at offset (spec §6 `insert(offset, bytes)`).
func (b *Buffer) Insert(offset int64, content []byte) error {
	if err := b.tree.Insert(offset, content); err != nil {
		return err
	}
	b.afterEdit(EditEvent{Kind: EditInsert, Offsets: []int64{offset}, Length: len(content)})
	return nil
}

// MultiInsert places the same content at every offset simultaneously, as
// one multi-cursor edit (spec §6 `multi_insert(offsets[], bytes)`).
func (b *Buffer) MultiInsert(offsets []int64, content []byte) error {
	if err := b.tree.MultiInsert(offsets, content); err != nil {
		return err
	}
	dup := append([]int64(nil), offsets...)
	b.afterEdit(EditEvent{Kind: EditMultiInsert, Offsets: dup, Length: len(content)})
	return nil
}

// Delete removes the half-open byte range [start, end) (spec §6
// `delete(range)`).
func (b *Buffer) Delete(start, end int64) error {
	if err := b.tree.Delete(start, end); err != nil {
		return err
	}
	b.afterEdit(EditEvent{Kind: EditDelete, Offsets: []int64{start}, Length: int(end - start)})
	return nil
}

// afterEdit notifies subscribers and, if highlighting is attached,
// requests a debounced re-parse (spec §4.3).
func (b *Buffer) afterEdit(ev EditEvent) {
	b.notify(ev)
	if b.driver != nil {
		b.driver.RequestReparse(context.Background())
	}
}

// Snapshot retains the buffer's current content as an immutable handle
// (spec §6 `snapshot() → SnapshotId`).
func (b *Buffer) Snapshot() SnapshotID {
	snap := b.tree.Snapshot()
	b.mu.Lock()
	b.snapshots[snap.ID()] = snap
	b.mu.Unlock()
	return snap.ID()
}

// Restore replaces the buffer's live content with a previously taken
// snapshot (spec §6 `restore(SnapshotId)`). Returns StaleSnapshotError if
// id is unknown or was already discarded.
func (b *Buffer) Restore(id SnapshotID) error {
	b.mu.Lock()
	snap, ok := b.snapshots[id]
	b.mu.Unlock()
	if !ok {
		return &edcerr.StaleSnapshotError{SnapshotID: id}
	}
	if err := b.tree.Restore(snap); err != nil {
		return err
	}
	b.afterEdit(EditEvent{Kind: EditRestore, Offsets: nil, Length: 0})
	return nil
}

// DiscardSnapshot releases a snapshot handle; restoring it afterward
// reports StaleSnapshotError.
func (b *Buffer) DiscardSnapshot(id SnapshotID) {
	b.mu.Lock()
	snap, ok := b.snapshots[id]
	delete(b.snapshots, id)
	b.mu.Unlock()
	if ok {
		b.tree.DiscardSnapshot(snap)
	}
}

// Mark anchors a new mark at offset (spec §6 `mark(offset) → MarkId`).
func (b *Buffer) Mark(offset int64) (MarkID, error) {
	m, err := b.tree.CreateMark(offset)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	b.marks[m.ID()] = m
	b.mu.Unlock()
	return m.ID(), nil
}

// Resolve returns id's current logical offset, or ok=false if it is
// unknown or orphaned (spec §6 `resolve(MarkId) → offset | Orphaned`).
func (b *Buffer) Resolve(id MarkID) (offset int64, ok bool) {
	b.mu.Lock()
	m, known := b.marks[id]
	b.mu.Unlock()
	if !known {
		return 0, false
	}
	return b.tree.Resolve(m)
}

// AttachHighlighting wires a HighlightDriver to this buffer so edits
// trigger a debounced re-parse (spec §4.3). executor may be nil, in which
// case each parse runs on the debounce timer's goroutine instead of a
// worker pool.
func (b *Buffer) AttachHighlighting(lang *parser.Language, resolver parser.GrammarResolver, executor *task.Executor, cacheSize int, debounce time.Duration) {
	b.driver = highlight.NewDriver(highlight.ContentSourceFunc(b.tree.Bytes), lang, resolver, executor, cacheSize, debounce)
}

// Highlighting returns the attached HighlightDriver, or nil if
// AttachHighlighting was never called.
func (b *Buffer) Highlighting() *highlight.Driver { return b.driver }
