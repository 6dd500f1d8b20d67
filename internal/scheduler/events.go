package scheduler

import (
	"sync"
	"time"
)

// StatusEvent is emitted after every completed cycle (drained, aborted,
// offline, or nothing to do). It is the engine's only output channel.
type StatusEvent struct {
	IsOnline     bool      `json:"is_online"`
	PendingCount int       `json:"pending_count"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Message      string    `json:"message"`
	At           time.Time `json:"at"`
}

// broadcaster fans StatusEvents out to any number of subscribers. Delivery is
// non-blocking: a subscriber that stops reading drops events instead of
// stalling the drain loop.
type broadcaster struct {
	mu   sync.Mutex
	subs map[uint64]chan StatusEvent
	next uint64
	last *StatusEvent
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]chan StatusEvent)}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release the channel.
func (b *broadcaster) Subscribe() (<-chan StatusEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan StatusEvent, 8)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}

	return ch, cancel
}

func (b *broadcaster) publish(ev StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = &ev
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Last returns the most recent event, or nil before the first cycle.
func (b *broadcaster) Last() *StatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.last == nil {
		return nil
	}
	ev := *b.last

	return &ev
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
