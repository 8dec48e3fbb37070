package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/streamglass/pulse/internal/hub"
)

// wsSubscriber adapts a websocket connection to the hub subscriber
// interface. Writes are serialized; a failed write drops the subscriber.
type wsSubscriber struct {
	mu   sync.Mutex
	conn net.Conn
}

func (s *wsSubscriber) Send(_ context.Context, msg *hub.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return wsutil.WriteServerMessage(s.conn, ws.OpText, data)
}

// handleWebsocket handles GET /ws/sentiment. The connection receives the
// same event feed as the SSE endpoint; client frames are read only to
// detect disconnects.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := &wsSubscriber{conn: conn}
	greeting, err := hub.NewMessage(hub.TypeConnected, map[string]string{"status": "ok"})
	if err == nil {
		if err := sub.Send(r.Context(), greeting); err != nil {
			return
		}
	}

	s.hub.Subscribe(sub)
	defer s.hub.Unsubscribe(sub)

	// Drain client frames until the connection drops.
	for {
		if _, _, err := wsutil.ReadClientData(conn); err != nil {
			return
		}
	}
}
