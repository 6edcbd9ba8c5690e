// Package notify fans case events out to subscribers joined to that case.
package notify

import (
	"strings"
	"sync"
	"time"

	"aijudge-backend/models"

	"go.uber.org/zap"
)

const defaultSubscriberCapacity = 64

// EventType names a case event
type EventType string

const (
	EventVerdictRendered EventType = "verdictRendered"
	EventArgumentAdded   EventType = "argumentAdded"
)

// Event is a case-scoped notification. Only the fields of its Type are set.
type Event struct {
	Type           EventType                `json:"type"`
	CaseID         string                   `json:"caseId"`
	Verdict        *models.Verdict          `json:"verdict,omitempty"`
	Side           models.Side              `json:"side,omitempty"`
	Argument       string                   `json:"argument,omitempty"`
	AIResponse     *models.ArgumentResponse `json:"aiResponse,omitempty"`
	ArgumentNumber int                      `json:"argumentNumber,omitempty"`
	Timestamp      time.Time                `json:"timestamp"`
}

// VerdictRendered builds the event sent after a judgment
func VerdictRendered(caseID string, verdict models.Verdict) Event {
	return Event{
		Type:      EventVerdictRendered,
		CaseID:    caseID,
		Verdict:   &verdict,
		Timestamp: time.Now().UTC(),
	}
}

// ArgumentAdded builds the event sent after an argument is recorded
func ArgumentAdded(caseID string, arg models.Argument) Event {
	resp := arg.AIResponse
	return Event{
		Type:           EventArgumentAdded,
		CaseID:         caseID,
		Side:           arg.Side,
		Argument:       arg.Argument,
		AIResponse:     &resp,
		ArgumentNumber: arg.ArgumentNumber,
		Timestamp:      time.Now().UTC(),
	}
}

// Publisher is the sending half of the bus
type Publisher interface {
	Publish(event Event)
}

// Option customizes Bus construction
type Option func(*Bus)

// WithLogger sets the logger used for drop messages
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithSubscriberCapacity overrides the buffered channel size per subscriber
func WithSubscriberCapacity(capacity int) Option {
	return func(b *Bus) {
		if capacity > 0 {
			b.capacity = capacity
		}
	}
}

// Bus delivers events to the subscribers of a case. Delivery is best
// effort: nothing is replayed, and an event that does not fit in a
// subscriber's buffer is dropped for that subscriber.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]map[*subscriber]struct{}
	capacity    int
	logger      *zap.Logger
}

// Subscription is one listener joined to one case
type Subscription struct {
	CaseID string
	Events <-chan Event
	cancel func()
}

// Close leaves the case and closes Events. Safe to call more than once.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

type subscriber struct {
	ch     chan Event
	closed bool
}

// NewBus creates an empty bus
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscribers: map[string]map[*subscriber]struct{}{},
		capacity:    defaultSubscriberCapacity,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Join subscribes to events of caseID published from now on
func (b *Bus) Join(caseID string) Subscription {
	key := normalizeCaseID(caseID)
	sub := &subscriber{ch: make(chan Event, b.capacity)}

	b.mu.Lock()
	if b.subscribers[key] == nil {
		b.subscribers[key] = map[*subscriber]struct{}{}
	}
	b.subscribers[key][sub] = struct{}{}
	b.mu.Unlock()

	return Subscription{
		CaseID: key,
		Events: sub.ch,
		cancel: func() { b.leave(key, sub) },
	}
}

// Publish delivers event to every subscriber of its case without blocking.
// The lock is held across the fan-out so each subscriber observes events
// in publish order.
func (b *Bus) Publish(event Event) {
	key := normalizeCaseID(event.CaseID)
	if key == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers[key] {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("Dropped case event for slow subscriber",
				zap.String("case_id", key),
				zap.String("event", string(event.Type)))
		}
	}
}

// Subscribers returns the number of live subscriptions for caseID
func (b *Bus) Subscribers(caseID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[normalizeCaseID(caseID)])
}

func (b *Bus) leave(key string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs := b.subscribers[key]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, key)
		}
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

func normalizeCaseID(caseID string) string {
	return strings.TrimSpace(caseID)
}
