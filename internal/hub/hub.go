// Package hub fans pipeline events out to live subscribers (SSE streams,
// websockets). The hub owns the subscriber registry; transports register
// an adapter and the hub prunes any subscriber whose send fails.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streamglass/pulse/internal/metrics"
	"github.com/streamglass/pulse/internal/model"
)

// Message types pushed to subscribers.
const (
	TypeConnected     = "connected"
	TypeMetricsUpdate = "metrics_update"
	TypeNewPost       = "new_post"
	TypeAlert         = "alert"
)

// Message is one event pushed to every live subscriber.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds a message with an encoded payload.
func NewMessage(typ string, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", typ, err)
	}
	return &Message{Type: typ, Data: raw}, nil
}

// AlertMessage wraps a triggered alert for broadcast.
func AlertMessage(a *model.Alert) (*Message, error) {
	return NewMessage(TypeAlert, a)
}

// Subscriber receives broadcast messages. Send must be safe to call from
// the hub's broadcasting goroutine; a returned error removes the
// subscriber from the registry.
type Subscriber interface {
	Send(ctx context.Context, msg *Message) error
}

// Hub is the subscriber registry.
type Hub struct {
	mu   sync.Mutex
	subs map[Subscriber]struct{}
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[Subscriber]struct{})}
}

// Subscribe registers a subscriber.
func (h *Hub) Subscribe(s Subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	slog.Debug("subscriber added", "subscribers", n)
}

// Unsubscribe removes a subscriber. Removing an absent subscriber is a no-op.
func (h *Hub) Unsubscribe(s Subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()
	slog.Debug("subscriber removed", "subscribers", n)
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast sends msg to every subscriber. A failing subscriber is
// dropped from the registry; failures never affect the other subscribers.
func (h *Hub) Broadcast(ctx context.Context, msg *Message) {
	h.mu.Lock()
	targets := make([]Subscriber, 0, len(h.subs))
	for s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return
	}
	metrics.Broadcasts.Inc()

	var dead []Subscriber
	for _, s := range targets {
		if err := s.Send(ctx, msg); err != nil {
			slog.Debug("dropping subscriber", "type", msg.Type, "error", err)
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		h.Unsubscribe(s)
	}
}
