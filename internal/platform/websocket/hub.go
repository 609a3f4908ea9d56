// Package websocket pushes appointment changes to signed-in accounts. Each
// connection is subscribed to exactly one topic, derived from the session
// that opened it, so a client never chooses what it receives.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/auth"
)

// Event is one message written to subscribers.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	ID        string          `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Topic names the feed of one account.
func Topic(t auth.UserType, id uuid.UUID) string { return string(t) + ":" + id.String() }

// Client is a single connection. Send is closed by Unregister.
type Client struct {
	ID    string
	Topic string
	Send  chan []byte
}

func NewClient(topic string, buffer int) *Client {
	return &Client{ID: uuid.NewString(), Topic: topic, Send: make(chan []byte, buffer)}
}

// Hub tracks connected clients by topic.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Client]struct{}
	dropped int
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.topics[c.Topic]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.topics[c.Topic] = subs
	}
	subs[c] = struct{}{}
}

// Unregister removes c and closes its Send channel. Calling it twice is a
// no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[c.Topic]
	if !ok {
		return
	}
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.topics, c.Topic)
	}
	close(c.Send)
}

// Publish writes event to every client on event.Topic. Clients whose buffer
// is full miss the event rather than stall the publisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.topics[event.Topic] {
		select {
		case c.Send <- data:
		default:
			h.dropped++
			h.logger.Warn().Str("client_id", c.ID).Str("type", event.Type).Msg("feed buffer full, event dropped")
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.topics {
		n += len(subs)
	}
	return n
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Dropped reports how many events were discarded for slow clients.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
