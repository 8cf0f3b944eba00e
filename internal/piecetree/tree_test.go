package piecetree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewReadsOriginalContent(t *testing.T) {
	pt := New([]byte("hello world"))
	got, err := pt.Read(0, pt.Len())
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestEmptyBuffer(t *testing.T) {
	pt := New(nil)
	require.EqualValues(t, 0, pt.Len())
	got, err := pt.Read(0, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestInsertSplitsPrefixAndSuffix(t *testing.T) {
	pt := New([]byte("helloworld"))
	require.NoError(t, pt.Insert(5, []byte(" ")))
	got, err := pt.Read(0, pt.Len())
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestInsertAtStartAndEnd(t *testing.T) {
	pt := New([]byte("middle"))
	require.NoError(t, pt.Insert(0, []byte("[")))
	require.NoError(t, pt.Insert(pt.Len(), []byte("]")))
	got, err := pt.Read(0, pt.Len())
	require.NoError(t, err)
	require.Equal(t, "[middle]", string(got))
}

func TestInsertIntoEmptyBuffer(t *testing.T) {
	pt := New(nil)
	require.NoError(t, pt.Insert(0, []byte("abc")))
	got, err := pt.Read(0, pt.Len())
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestInsertOutOfBounds(t *testing.T) {
	pt := New([]byte("abc"))
	err := pt.Insert(-1, []byte("x"))
	require.Error(t, err)
	err = pt.Insert(100, []byte("x"))
	require.Error(t, err)
}

func TestAppendCoalescingProducesCorrectContent(t *testing.T) {
	pt := New(nil)
	for _, r := range "typing one character at a time" {
		require.NoError(t, pt.Insert(pt.Len(), []byte(string(r))))
	}
	got, err := pt.Read(0, pt.Len())
	require.NoError(t, err)
	require.Equal(t, "typing one character at a time", string(got))
}

func TestDeleteRange(t *testing.T) {
	pt := New([]byte("hello cruel world"))
	require.NoError(t, pt.Delete(5, 11))
	got, err := pt.Read(0, pt.Len())
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestDeleteEntireBuffer(t *testing.T) {
	pt := New([]byte("gone"))
	require.NoError(t, pt.Delete(0, pt.Len()))
	require.EqualValues(t, 0, pt.Len())
	got, err := pt.Read(0, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDeleteThenInsertReusesTree(t *testing.T) {
	pt := New([]byte("0123456789"))
	require.NoError(t, pt.Delete(2, 8))
	require.NoError(t, pt.Insert(2, []byte("XY")))
	got, err := pt.Read(0, pt.Len())
	require.NoError(t, err)
	require.Equal(t, "01XY89", string(got))
}

func TestMultiInsertSharesAddRunButDiffersByCursor(t *testing.T) {
	pt := New([]byte("aaa"))
	require.NoError(t, pt.MultiInsert([]int64{0, 1, 2, 3}, []byte("-")))
	got, err := pt.Read(0, pt.Len())
	require.NoError(t, err)
	require.Equal(t, "-a-a-a-", string(got))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	pt := New([]byte("original content"))
	snap := pt.Snapshot()

	require.NoError(t, pt.Insert(0, []byte("EDITED ")))
	require.NoError(t, pt.Delete(pt.Len()-7, pt.Len()))
	edited, err := pt.Read(0, pt.Len())
	require.NoError(t, err)
	require.Equal(t, "EDITED original", string(edited))

	require.NoError(t, pt.Restore(snap))
	restored, err := pt.Read(0, pt.Len())
	require.NoError(t, err)
	require.Equal(t, "original content", string(restored))
}

func TestSnapshotIsUnaffectedByLaterEdits(t *testing.T) {
	pt := New([]byte("alpha beta gamma"))
	snap := pt.Snapshot()

	require.NoError(t, pt.Insert(0, []byte("XXX")))
	require.NoError(t, pt.Delete(10, 14))

	snapContent, err := snap.ReadAt(pt, 0, snap.length)
	require.NoError(t, err)
	require.Equal(t, "alpha beta gamma", string(snapContent))
}

func TestRestoreUnknownSnapshotIsStale(t *testing.T) {
	pt := New([]byte("x"))
	snap := pt.Snapshot()
	pt.DiscardSnapshot(snap)
	err := pt.Restore(snap)
	require.Error(t, err)
}

func TestMarkTracksEditsElsewhere(t *testing.T) {
	pt := New([]byte("0123456789"))
	mark, err := pt.CreateMark(5)
	require.NoError(t, err)

	require.NoError(t, pt.Insert(0, []byte("XXX")))
	offset, ok := pt.Resolve(mark)
	require.True(t, ok)
	require.EqualValues(t, 8, offset)

	got, err := pt.Read(offset, 1)
	require.NoError(t, err)
	require.Equal(t, "5", string(got))
}

func TestMarkInvalidatedByDeletingItsText(t *testing.T) {
	pt := New([]byte("0123456789"))
	mark, err := pt.CreateMark(5)
	require.NoError(t, err)

	require.NoError(t, pt.Delete(4, 6))
	_, ok := pt.Resolve(mark)
	require.False(t, ok)
}

func TestMarkAtEndOfBufferTracksAppends(t *testing.T) {
	pt := New([]byte("abc"))
	mark, err := pt.CreateMark(pt.Len())
	require.NoError(t, err)

	require.NoError(t, pt.Insert(pt.Len(), []byte("def")))
	offset, ok := pt.Resolve(mark)
	require.True(t, ok)
	require.EqualValues(t, 6, offset)
}

func TestMarkInEmptyBuffer(t *testing.T) {
	pt := New(nil)
	mark, err := pt.CreateMark(0)
	require.NoError(t, err)
	offset, ok := pt.Resolve(mark)
	require.True(t, ok)
	require.EqualValues(t, 0, offset)
}

func TestSearchFindsAllNonOverlappingMatches(t *testing.T) {
	pt := New([]byte("abcabcabc"))
	matches := pt.Search([]byte("abc"), 0, SearchOptions{CaseSensitive: true})
	require.Len(t, matches, 3)
	require.Equal(t, Match{Start: 0, End: 3}, matches[0])
	require.Equal(t, Match{Start: 3, End: 6}, matches[1])
	require.Equal(t, Match{Start: 6, End: 9}, matches[2])
}

func TestSearchCrossesPieceBoundaries(t *testing.T) {
	pt := New([]byte("hello "))
	require.NoError(t, pt.Insert(pt.Len(), []byte("world")))
	matches := pt.Search([]byte("lo wo"), 0, SearchOptions{CaseSensitive: true})
	require.Len(t, matches, 1)
	require.EqualValues(t, 3, matches[0].Start)
}

func TestSearchCaseInsensitive(t *testing.T) {
	pt := New([]byte("Hello HELLO hello"))
	matches := pt.Search([]byte("hello"), 0, SearchOptions{CaseSensitive: false})
	require.Len(t, matches, 3)
}

func TestSearchNoMatch(t *testing.T) {
	pt := New([]byte("nothing here"))
	matches := pt.Search([]byte("zzz"), 0, SearchOptions{CaseSensitive: true})
	require.Empty(t, matches)
}

func TestSearchBackward(t *testing.T) {
	pt := New([]byte("foo bar foo baz"))
	m, ok := pt.SearchBackward([]byte("foo"), pt.Len(), SearchOptions{CaseSensitive: true})
	require.True(t, ok)
	require.EqualValues(t, 8, m.Start)
}

// TestAgainstReferenceImplementation runs a randomized sequence of
// inserts and deletes against both a PieceTree and a plain Go string,
// checking equality after every step — the property spec §8 calls out:
// content always equals the reference byte-vector.
func TestAgainstReferenceImplementation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	reference := []byte("the quick brown fox jumps over the lazy dog")
	pt := New(append([]byte(nil), reference...))

	for step := 0; step < 500; step++ {
		switch rng.Intn(2) {
		case 0:
			pos := rng.Intn(len(reference) + 1)
			text := []byte(fmt.Sprintf("<%d>", rng.Intn(1000)))
			require.NoError(t, pt.Insert(int64(pos), text))
			reference = append(reference[:pos:pos], append(append([]byte{}, text...), reference[pos:]...)...)
		case 1:
			if len(reference) == 0 {
				continue
			}
			start := rng.Intn(len(reference))
			end := start + 1 + rng.Intn(len(reference)-start)
			require.NoError(t, pt.Delete(int64(start), int64(end)))
			reference = append(reference[:start:start], reference[end:]...)
		}
		got, err := pt.Read(0, pt.Len())
		require.NoError(t, err)
		require.Equal(t, string(reference), string(got), "mismatch at step %d", step)
	}
}
