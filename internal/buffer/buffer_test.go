package buffer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	edcerr "github.com/standardbeagle/edcore/internal/errors"
	"github.com/standardbeagle/edcore/internal/piecetree"
)

func TestOpenReadsFileContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	b, err := Open(path)
	require.NoError(t, err)
	got, err := b.Read(0, b.Len())
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestOpenMissingFileReturnsIoError(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	var ioErr *edcerr.IoError
	require.True(t, errors.As(err, &ioErr))
}

func TestInsertThenReadYieldsPrefixBytesSuffix(t *testing.T) {
	b := New("", []byte("hello world"))
	require.NoError(t, b.Insert(5, []byte(",")))
	got, err := b.Read(0, b.Len())
	require.NoError(t, err)
	require.Equal(t, "hello, world", string(got))
}

func TestMultiInsertAppliesAtEveryOffset(t *testing.T) {
	b := New("", []byte("abc"))
	require.NoError(t, b.MultiInsert([]int64{0, 1, 2, 3}, []byte("-")))
	got, err := b.Read(0, b.Len())
	require.NoError(t, err)
	require.Equal(t, "-a-b-c-", string(got))
}

func TestDeleteRemovesHalfOpenRange(t *testing.T) {
	b := New("", []byte("hello world"))
	require.NoError(t, b.Delete(5, 11))
	got, err := b.Read(0, b.Len())
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestSnapshotAndRestoreRoundTripsContent(t *testing.T) {
	b := New("", []byte("hello"))
	s1 := b.Snapshot()
	require.NoError(t, b.Insert(5, []byte(" world")))
	got, err := b.Read(0, b.Len())
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))

	require.NoError(t, b.Restore(s1))
	got, err = b.Read(0, b.Len())
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestRestoreUnknownSnapshotReturnsStaleSnapshotError(t *testing.T) {
	b := New("", []byte("hello"))
	err := b.Restore(9999)
	require.Error(t, err)
	var staleErr *edcerr.StaleSnapshotError
	require.True(t, errors.As(err, &staleErr))
}

func TestDiscardSnapshotMakesLaterRestoreStale(t *testing.T) {
	b := New("", []byte("hello"))
	s1 := b.Snapshot()
	b.DiscardSnapshot(s1)
	err := b.Restore(s1)
	require.Error(t, err)
}

func TestMarkResolvesToShiftedOffsetAfterEarlierInsert(t *testing.T) {
	b := New("", []byte("hello world"))
	id, err := b.Mark(6) // anchored at 'w'
	require.NoError(t, err)

	require.NoError(t, b.Insert(0, []byte(">>> ")))
	offset, ok := b.Resolve(id)
	require.True(t, ok)
	require.EqualValues(t, 10, offset)
}

func TestMarkOrphanedAfterCoveringRangeDeleted(t *testing.T) {
	b := New("", []byte("hello world"))
	id, err := b.Mark(6)
	require.NoError(t, err)

	require.NoError(t, b.Delete(0, b.Len()))
	_, ok := b.Resolve(id)
	require.False(t, ok)
}

func TestResolveUnknownMarkReturnsFalse(t *testing.T) {
	b := New("", []byte("hello"))
	_, ok := b.Resolve(9999)
	require.False(t, ok)
}

func TestSearchForwardFindsAllOccurrences(t *testing.T) {
	b := New("", []byte("the cat sat on the mat"))
	it := b.Search([]byte("at"), Forward, 0, piecetree.SearchOptions{CaseSensitive: true})

	var offsets []int64
	for {
		off, ok := it.Next()
		if !ok {
			break
		}
		offsets = append(offsets, off)
	}
	require.Equal(t, []int64{5, 9, 20}, offsets)
}

func TestSearchBackwardFindsClosestPrecedingMatch(t *testing.T) {
	b := New("", []byte("the cat sat on the mat"))
	it := b.Search([]byte("at"), Backward, int64(len("the cat sat")), piecetree.SearchOptions{CaseSensitive: true})

	off, ok := it.Next()
	require.True(t, ok)
	require.EqualValues(t, 9, off)
}

func TestSubscribeReceivesInsertAndDeleteEvents(t *testing.T) {
	b := New("", []byte("hello"))
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	require.NoError(t, b.Insert(5, []byte("!")))
	ev := <-ch
	require.Equal(t, EditInsert, ev.Kind)
	require.Equal(t, []int64{5}, ev.Offsets)

	require.NoError(t, b.Delete(0, 1))
	ev = <-ch
	require.Equal(t, EditDelete, ev.Kind)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New("", []byte("hello"))
	ch, unsubscribe := b.Subscribe()
	unsubscribe()

	_, open := <-ch
	require.False(t, open)
}
