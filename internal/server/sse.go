package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/streamglass/pulse/internal/hub"
)

// sseKeepaliveInterval is how often keepalive comments are sent to
// prevent connection timeouts.
const sseKeepaliveInterval = 15 * time.Second

// sseBufferSize bounds the per-client event backlog. A client that falls
// this far behind is dropped by the hub.
const sseBufferSize = 64

// sseSubscriber adapts a buffered channel to the hub subscriber
// interface. Send never blocks; a full buffer fails the send so the hub
// prunes the slow client.
type sseSubscriber struct {
	ch chan *hub.Message
}

func newSSESubscriber() *sseSubscriber {
	return &sseSubscriber{ch: make(chan *hub.Message, sseBufferSize)}
}

func (s *sseSubscriber) Send(_ context.Context, msg *hub.Message) error {
	select {
	case s.ch <- msg:
		return nil
	default:
		return errors.New("subscriber buffer full")
	}
}

// handleEventStream handles GET /api/stream (SSE endpoint).
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub := newSSESubscriber()
	s.hub.Subscribe(sub)
	defer s.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	greeting, err := hub.NewMessage(hub.TypeConnected, map[string]string{"status": "ok"})
	if err == nil {
		writeSSEEvent(w, greeting)
	}
	flusher.Flush()

	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.ch:
			writeSSEEvent(w, msg)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the writer.
func writeSSEEvent(w http.ResponseWriter, msg *hub.Message) {
	fmt.Fprintf(w, "event:%s\n", msg.Type)
	fmt.Fprintf(w, "data:%s\n\n", msg.Data)
}
