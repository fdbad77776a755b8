package events

import (
	"log"
	"sync"
)

const defaultBuffer = 64

// Bus fans events out to any number of independent subscribers. Publishing
// never blocks the core: a subscriber whose buffer is full misses the event
// and is expected to re-sync through the read-only API if it cares.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	buffer int
	closed bool
	logger *log.Logger
}

// NewBus creates a bus. buffer <= 0 selects the default per-subscriber
// channel capacity.
func NewBus(buffer int, logger *log.Logger) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new consumer. The returned cancel function is
// idempotent and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber that has room. A nil bus is a
// valid no-op publisher, so core components can take *Bus unconditionally.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if b.logger != nil {
				b.logger.Printf("subscriber %d lagging, dropped %s event", id, ev.EventType())
			}
		}
	}
}

// Close terminates every subscription. Publish becomes a no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
