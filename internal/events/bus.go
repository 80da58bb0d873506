package events

import (
	"sync"
	"time"
)

// Event types pushed to the presentation layer
const (
	TypeTick      = "tick"
	TypeAlert     = "alert"
	TypeAdvisory  = "advisory"
	TypeAnalytics = "analytics"
)

// Event notification emitted by the core
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher is implemented by anything that accepts events.
type Publisher interface {
	Publish(ev Event)
}

// Subscription receives events until closed
type Subscription struct {
	C     <-chan Event
	ch    chan Event
	types map[string]struct{}
	bus   *Bus
	once  sync.Once
}

func (s *Subscription) wants(typ string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[typ]
	return ok
}

// Close detaches the subscription from the bus. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Bus fan-out of events to subscribers
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber with the given buffer size. When types
// are given only events of those types are delivered, so a busy stream of
// other events cannot fill the buffer.
func (b *Bus) Subscribe(buffer int, types ...string) *Subscription {
	ch := make(chan Event, buffer)
	s := &Subscription{C: ch, ch: ch, bus: b}
	if len(types) > 0 {
		s.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish delivers ev to every subscriber. A full subscriber drops the event.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.wants(ev.Type) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of attached subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}
