// Package eventbus publishes session events to in-process subscribers.
package eventbus

import (
	"sync"

	"github.com/cskr/pubsub/v2"
)

// DefaultCapacity is the per-subscriber buffer of the default handler.
// Events published to a full subscriber are dropped.
const DefaultCapacity = 10

// EventID identifies an event topic.
type EventID interface {
	Value() uint
	String() string
}

// Publisher represents an interface that provides an event publisher.
type Publisher interface {
	// Publish publishes an event to the event stream.
	Publish(id uint, name string, data any)
}

// Subscriber represents an interface that provides an event subscriber.
type Subscriber interface {
	// Subscribe subscribes to an event from the event stream.
	Subscribe(id uint, name string) Subscription
}

// Handler represents an interface that provides an event publisher and subscriber.
type Handler interface {
	Publisher
	Subscriber
}

// Subscription holds the receiving side of a subscription.
type Subscription struct {
	C <-chan any

	active bool
	unsub  func()
	once   *sync.Once
}

// Active reports whether the subscription can still receive events.
func (s Subscription) Active() bool {
	return s.active
}

// Unsubscribe stops delivery of events to the subscription.
func (s Subscription) Unsubscribe() {
	if !s.active || s.unsub == nil {
		return
	}

	s.once.Do(s.unsub)
}

// Bus dispatches events to the registered handler.
type Bus struct {
	h     Handler
	close func()

	mu sync.RWMutex
}

// New returns a bus backed by a pubsub handler.
func New() *Bus {
	ps := pubsub.New[uint, any](DefaultCapacity)

	return &Bus{
		h:     &pubsubHandler{ps},
		close: ps.Shutdown,
	}
}

// Disabled returns a bus that drops every event.
func Disabled() *Bus {
	return &Bus{h: nilHandler{}}
}

// Register replaces the handler of the bus. A nil handler disables events.
func (b *Bus) Register(h Handler) {
	if h == nil {
		h = nilHandler{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.close != nil {
		b.close()
		b.close = nil
	}
	b.h = h
}

// Publish calls the registered publisher.
func (b *Bus) Publish(id EventID, data any) {
	if b == nil || id == nil {
		return
	}

	b.mu.RLock()
	h := b.h
	b.mu.RUnlock()

	h.Publish(id.Value(), id.String(), data)
}

// Subscribe calls the registered subscriber.
func (b *Bus) Subscribe(id EventID) Subscription {
	if b == nil || id == nil {
		return nilHandler{}.Subscribe(0, "")
	}

	b.mu.RLock()
	h := b.h
	b.mu.RUnlock()

	return h.Subscribe(id.Value(), id.String())
}

// Close shuts down the default handler, closing all subscription channels.
func (b *Bus) Close() {
	b.Register(nil)
}

// pubsubHandler represents the default event handler.
type pubsubHandler struct {
	ps *pubsub.PubSub[uint, any]
}

// Publish publishes an event without blocking on slow subscribers.
func (p *pubsubHandler) Publish(id uint, _ string, data any) {
	p.ps.TryPub(data, id)
}

// Subscribe subscribes to an event from the event stream.
func (p *pubsubHandler) Subscribe(id uint, _ string) Subscription {
	ch := p.ps.Sub(id)

	return Subscription{
		C:      ch,
		active: true,
		once:   &sync.Once{},
		unsub: func() {
			go p.ps.Unsub(ch, id)
		},
	}
}

// nilHandler represents a disabled event handler.
type nilHandler struct{}

// Publish does not do anything.
func (nilHandler) Publish(uint, string, any) {}

// Subscribe returns a closed subscription.
func (nilHandler) Subscribe(uint, string) Subscription {
	ch := make(chan any)
	close(ch)

	return Subscription{C: ch}
}
