package eventbus

import "sync"

// Event is any value published on the bus. The engine publishes the types
// in core/events; subscribers type-switch on what they care about.
type Event interface{}

// EventBus decouples the optimization engine from reactions to its
// outcomes, such as forcing a token refresh after an authorization failure.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the in-process EventBus. Delivery is best effort: a subscriber
// whose buffer is full misses the event rather than blocking the publisher,
// which runs inside a per-user cycle.
type Bus struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: map[chan Event]struct{}{}}
}

// Publish delivers the event to every current subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a subscriber and returns its receive channel.
// Subscribing to a closed bus yields an already-closed channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes the subscriber and closes its channel. Unknown or
// already-removed channels are ignored.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		if ch == sub {
			delete(b.subs, ch)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes every subscriber channel. Further publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = map[chan Event]struct{}{}
}
