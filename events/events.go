// Package events is the realtime notification layer. Business code publishes
// through Publisher and listeners subscribe through Source with a filter; no
// broker or vendor channel semantics leak past this package.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TopicOrders = "orders"
	TopicCart   = "cart"
)

const (
	TypeOrderCreated       = "created"
	TypeOrderStatusUpdated = "status_updated"
	TypeOrderDeliveryDue   = "delivery_due"
	TypeCartChanged        = "changed"
)

const defaultBuffer = 16

type Event struct {
	ID       string      `json:"id"`
	Topic    string      `json:"topic"`
	Type     string      `json:"type"`
	Owner    string      `json:"owner"`
	Payload  interface{} `json:"payload,omitempty"`
	Occurred time.Time   `json:"occurred"`
}

// New stamps an event with an id and the current time.
func New(topic, typ, owner string, payload interface{}) Event {
	return Event{
		ID:       uuid.NewString(),
		Topic:    topic,
		Type:     typ,
		Owner:    owner,
		Payload:  payload,
		Occurred: time.Now(),
	}
}

type Filter func(Event) bool

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Source interface {
	Subscribe(filter Filter) *Subscription
}

// Subscription delivers matching events on C until Unsubscribe is called.
type Subscription struct {
	C <-chan Event

	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Hub is an in-process Source and Publisher. A subscriber whose buffer is full
// misses the event instead of blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	buffer int

	dropped func(Event)
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscriber), buffer: defaultBuffer}
}

// OnDrop registers a callback for events a slow subscriber missed.
func (h *Hub) OnDrop(fn func(Event)) {
	h.mu.Lock()
	h.dropped = fn
	h.mu.Unlock()
}

func (h *Hub) Subscribe(filter Filter) *Subscription {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = &subscriber{ch: ch, filter: filter}
	h.mu.Unlock()

	return &Subscription{
		C: ch,
		cancel: func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		},
	}
}

func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		if s.filter != nil && !s.filter(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			if h.dropped != nil {
				h.dropped(ev)
			}
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Topic matches events of one topic.
func Topic(topic string) Filter {
	return func(ev Event) bool { return ev.Topic == topic }
}

// Owner matches events owned by id.
func Owner(id string) Filter {
	return func(ev Event) bool { return ev.Owner == id }
}

// All matches when every filter matches.
func All(filters ...Filter) Filter {
	return func(ev Event) bool {
		for _, f := range filters {
			if !f(ev) {
				return false
			}
		}
		return true
	}
}

// Any matches when at least one filter matches.
func Any(filters ...Filter) Filter {
	return func(ev Event) bool {
		for _, f := range filters {
			if f(ev) {
				return true
			}
		}
		return false
	}
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
