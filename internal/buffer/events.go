package buffer

// EditKind classifies an EditEvent.
type EditKind int

const (
	EditInsert EditKind = iota
	EditMultiInsert
	EditDelete
	EditRestore
)

func (k EditKind) String() string {
	switch k {
	case EditInsert:
		return "insert"
	case EditMultiInsert:
		return "multi_insert"
	case EditDelete:
		return "delete"
	case EditRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// EditEvent is one change notification delivered to a Subscribe channel
// (spec §6 `subscribe(changes) → Stream<EditEvent>`). Offsets holds one
// entry for Insert/Delete, one per cursor for MultiInsert, and is nil for
// Restore (a restore replaces the whole content; no single offset names
// the change).
type EditEvent struct {
	Kind    EditKind
	Offsets []int64
	Length  int
}

// subscriberChanCapacity bounds how many undelivered events a slow
// subscriber can fall behind by before further events to it are dropped
// rather than blocking the editor thread (spec §4 "editor-thread edit
// path is synchronous and non-blocking" — a subscriber can never make an
// Insert/Delete call itself block).
const subscriberChanCapacity = 64

// Subscribe registers a new listener for this buffer's edit events,
// returning the channel and an unsubscribe function. The channel is
// buffered; an event is dropped (not blocked on) if the subscriber falls
// more than subscriberChanCapacity events behind.
func (b *Buffer) Subscribe() (<-chan EditEvent, func()) {
	ch := make(chan EditEvent, subscriberChanCapacity)
	b.subMu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subs[id] = ch
	b.subMu.Unlock()

	unsubscribe := func() {
		b.subMu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.subMu.Unlock()
	}
	return ch, unsubscribe
}

func (b *Buffer) notify(ev EditEvent) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
