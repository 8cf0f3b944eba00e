package piecetree

import (
	"sync"

	"github.com/standardbeagle/edcore/internal/alloc"
	"github.com/standardbeagle/edcore/internal/debug"
)

// bucketSizes are the power-of-two tiers a bucket is allocated at, smallest
// first so allocBucket picks the smallest tier that still fits a single
// insertion without a mid-insert bucket rollover.
var bucketSizes = []int{4 * 1024, 16 * 1024, 64 * 1024, 256 * 1024}

// DefaultBucketCapacity is the bucket size used when an insertion's byte
// count doesn't itself demand a larger tier.
const DefaultBucketCapacity = 4 * 1024

// bucket is a fixed-capacity append-only byte arena. Its backing array,
// once allocated, never moves or grows — addresses into a published bucket
// stay valid for the lifetime of any snapshot referencing them.
type bucket struct {
	data []byte // len tracks the high-water mark; cap is fixed
}

func (b *bucket) remaining() int { return cap(b.data) - len(b.data) }

// append writes p into the bucket if it fits and returns the offset it was
// written at. Ok is false when the bucket lacks room — the caller must
// roll to a new bucket rather than let the slice header reallocate, which
// would silently move previously published addresses.
func (b *bucket) append(p []byte) (offset int, ok bool) {
	if len(p) > b.remaining() {
		return 0, false
	}
	offset = len(b.data)
	b.data = append(b.data, p...)
	return offset, true
}

// AddStore is the append-only, bucketed backing log for inserted bytes
// (spec §3). Readers never observe torn writes: a piece is only published
// to the tree after byte.append completes, and pieces never span a bucket
// boundary — an insertion that does not fit in the current bucket's
// remaining room is written whole into a fresh bucket instead.
type AddStore struct {
	mu       sync.Mutex // writer-only append path; readers use GlobalOffset to resolve directly
	buckets  []*bucket
	bytePool *alloc.SlabAllocator[byte]
}

// GlobalOffset identifies a byte uniquely across all buckets: the bucket
// index and the intra-bucket offset packed together so a Piece can keep
// naming a single int range as required by spec §3 while the store is
// physically segmented.
type GlobalOffset = int

func NewAddStore() *AddStore {
	return &AddStore{
		bytePool: alloc.NewBucketSlabAllocator[byte](),
	}
}

// Append writes bytes to the store and returns the global offset of the
// first byte plus whether the whole write landed in one bucket (contiguous
// — required for append-coalescing and for MultiInsert's single shared
// reference). A write never splits across buckets, so contiguous is
// always true.
func (s *AddStore) Append(p []byte) (offset GlobalOffset, contiguous bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buckets) == 0 {
		s.allocBucket(len(p))
	}

	cur := s.buckets[len(s.buckets)-1]
	base := s.bucketBase(len(s.buckets) - 1)

	if off, ok := cur.append(p); ok {
		debug.LogBuffer("add-store: appended %d bytes at global offset %d (bucket %d)", len(p), base+off, len(s.buckets)-1)
		return base + off, true
	}

	// Doesn't fit in the current bucket: roll to a fresh one sized to hold
	// the whole write (allocBucket always sizes it to at least len(p)), so
	// a single insertion is never itself split across buckets mid-flight.
	s.allocBucket(len(p))
	cur = s.buckets[len(s.buckets)-1]
	base = s.bucketBase(len(s.buckets) - 1)
	off, _ := cur.append(p)
	debug.LogBuffer("add-store: rolled bucket, appended %d bytes at global offset %d", len(p), base+off)
	return base + off, true
}

// allocBucket grows the store by one bucket sized to the smallest tier that
// accommodates atLeast bytes.
func (s *AddStore) allocBucket(atLeast int) {
	capacity := DefaultBucketCapacity
	for _, tier := range bucketSizes {
		if tier >= atLeast {
			capacity = tier
			break
		}
		capacity = tier
	}
	if capacity < atLeast {
		capacity = atLeast
	}
	buf := s.bytePool.Get(capacity)
	s.buckets = append(s.buckets, &bucket{data: buf[:0]})
}

// bucketBase returns the global offset of bucket index i's first byte.
// Buckets are variable-sized, so the base is the sum of prior buckets'
// capacities (stable once allocated, since capacities never change).
func (s *AddStore) bucketBase(i int) int {
	base := 0
	for j := 0; j < i; j++ {
		base += cap(s.buckets[j].data)
	}
	return base
}

// Read returns a slice view of length bytes at the global offset. The
// returned slice aliases store memory directly — callers must not retain
// it past use in a way that assumes it's a copy.
func (s *AddStore) Read(offset, length int) []byte {
	idx, intra := s.locate(offset)
	b := s.buckets[idx]
	return b.data[intra : intra+length]
}

// locate resolves a global offset to (bucket index, intra-bucket offset).
func (s *AddStore) locate(offset int) (bucketIdx, intra int) {
	remaining := offset
	for i, b := range s.buckets {
		c := cap(b.data)
		if remaining < c {
			return i, remaining
		}
		remaining -= c
	}
	// Offset lands exactly at the start of a not-yet-allocated bucket; this
	// only happens transiently during Append and callers resolve against
	// the returned offset immediately, so it is not reached in practice.
	return len(s.buckets) - 1, remaining
}

// SpansBucketBoundary reports whether the half-open range [offset,
// offset+length) crosses a bucket edge — used to forbid append-coalescing
// across a bucket roll (spec §4.1).
func (s *AddStore) SpansBucketBoundary(offset, length int) bool {
	idx, intra := s.locate(offset)
	return intra+length > cap(s.buckets[idx].data)
}
