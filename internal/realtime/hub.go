package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event tells subscribers that something under Topic changed. Subscribers
// re-read the resource; events carry no payload beyond the id.
type Event struct {
	Topic string    `json:"topic"`
	Kind  string    `json:"kind"`
	ID    string    `json:"id,omitempty"`
	At    time.Time `json:"at"`
}

// Handler receives events for a topic. It runs on the publisher's goroutine
// and must not block.
type Handler func(Event)

// Publisher is what domain services depend on.
type Publisher interface {
	Publish(ctx context.Context, topic, kind, id string)
}

// Broker fans events out to every instance. The hub delivers locally when no
// broker is configured.
type Broker interface {
	Publish(ctx context.Context, e Event) error
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]Handler
	nextID uint64
	broker Broker
	log    *slog.Logger
}

func NewHub(broker Broker, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{subs: make(map[string]map[uint64]Handler), broker: broker, log: log}
}

var _ Publisher = (*Hub)(nil)

// Subscription is a live registration. Cancel releases it; calling Cancel
// more than once is safe.
type Subscription struct {
	hub   *Hub
	topic string
	id    uint64
	once  sync.Once
}

func (s *Subscription) Topic() string { return s.topic }

func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.remove(s.topic, s.id)
	})
}

// Subscribe registers fn for topic until the returned handle is cancelled.
func (h *Hub) Subscribe(topic string, fn Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uint64]Handler)
	}
	h.subs[topic][id] = fn
	return &Subscription{hub: h, topic: topic, id: id}
}

func (h *Hub) remove(topic string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[topic], id)
	if len(h.subs[topic]) == 0 {
		delete(h.subs, topic)
	}
}

// Publish announces a change. Delivery failures are logged, never returned:
// the write that triggered the event has already committed.
func (h *Hub) Publish(ctx context.Context, topic, kind, id string) {
	e := Event{Topic: topic, Kind: kind, ID: id, At: time.Now().UTC()}
	if h.broker == nil {
		h.Deliver(e)
		return
	}
	if err := h.broker.Publish(ctx, e); err != nil {
		h.log.Warn("broker publish failed, delivering locally", "topic", topic, "error", err)
		h.Deliver(e)
	}
}

// Deliver hands e to the local subscribers of its topic.
func (h *Hub) Deliver(e Event) {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[e.Topic]))
	for _, fn := range h.subs[e.Topic] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

func UserTopic(uid uuid.UUID) string          { return "user:" + uid.String() }
func UnlocksTopic(uid uuid.UUID) string       { return "unlocks:" + uid.String() }
func ConversationsTopic(uid uuid.UUID) string { return "conversations:" + uid.String() }
func ConversationTopic(id string) string      { return "conversation:" + id }
func ProjectTopic(id uuid.UUID) string        { return "project:" + id.String() }
func BidsTopic(projectID uuid.UUID) string    { return "bids:" + projectID.String() }
