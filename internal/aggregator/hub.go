package aggregator

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const subscriberBuffer = 16

// TrackerEvent is broadcast to every subscriber after an accepted report.
type TrackerEvent struct {
	Domain       string    `json:"domain"`
	Organization string    `json:"organization"`
	Method       string    `json:"method"`
	IsNew        bool      `json:"is_new"`
	Timestamp    time.Time `json:"timestamp"`
}

// Subscriber receives events on a buffered channel. A subscriber that stops
// draining loses events rather than back-pressuring the publisher.
type Subscriber struct {
	UserID string
	ch     chan TrackerEvent
	hub    *Hub
	once   sync.Once
}

// Events is the receive side of the subscription.
func (s *Subscriber) Events() <-chan TrackerEvent {
	return s.ch
}

// Close detaches the subscriber from the hub. Safe to call more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub fans accepted reports out to every connected instance.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscriber]struct{})}
}

func (h *Hub) Subscribe(userID string) *Subscriber {
	sub := &Subscriber{
		UserID: userID,
		ch:     make(chan TrackerEvent, subscriberBuffer),
		hub:    h,
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

func (h *Hub) remove(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Publish delivers the event to every subscriber, including the reporter.
// Sends never block; a full buffer drops the event for that subscriber.
func (h *Hub) Publish(event TrackerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			log.Warn("dropping tracker event for slow subscriber", "user_id", sub.UserID, "domain", event.Domain)
		}
	}
}

// Subscribers returns the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
