// Package eventbus implements the in-process publish/subscribe bus that
// carries lifecycle side effects (status changes, offers, acknowledgments)
// from the engine to external delivery adapters.
package eventbus

import "sync"

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() *Subscription
	Close()
}

// Subscription is a handle to a subscriber's delivery channel.
type Subscription struct {
	C   <-chan Event
	ch  chan Event
	bus *Bus
}

// Cancel removes the subscription and closes its channel.
func (s *Subscription) Cancel() {
	if s.bus != nil {
		s.bus.remove(s)
	}
}

// Bus is the default EventBus implementation using fan-out channels.
// Delivery is non-blocking: a slow subscriber drops events rather than
// stalling a transition.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	buffer int
	closed bool
}

// New creates a Bus whose subscriber channels hold up to 16 events.
func New() *Bus { return &Bus{buffer: 16} }

// Publish sends the event to all subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscription {
	ch := make(chan Event, b.buffer)
	s := &Subscription{C: ch, ch: ch, bus: b}
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, s)
	}
	b.mu.Unlock()
	return s
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(s.ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
