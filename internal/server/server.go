// Package server exposes the HTTP surface of the pipeline: the read API,
// Prometheus metrics, and the live SSE/websocket feeds backed by the hub.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamglass/pulse/internal/aggregate"
	"github.com/streamglass/pulse/internal/hub"
	"github.com/streamglass/pulse/internal/store"
)

// Aggregator serves the roll-up read paths.
type Aggregator interface {
	Aggregate(ctx context.Context, period string, start, end time.Time, source string) (*aggregate.Result, error)
	Distribution(ctx context.Context, hours int, source string) (*aggregate.Distribution, error)
}

// BrokerStatus reports stream connectivity for health checks.
type BrokerStatus interface {
	Connected() bool
}

// Server wires the read API to the store, the aggregation engine and the
// live hub.
type Server struct {
	store  store.Store
	engine Aggregator
	hub    *hub.Hub
	broker BrokerStatus
}

// New creates a server. Broker may be nil when the process runs without a
// stream connection.
func New(st store.Store, engine Aggregator, h *hub.Hub, broker BrokerStatus) *Server {
	return &Server{store: st, engine: engine, hub: h, broker: broker}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/posts", s.handleListPosts)
	mux.HandleFunc("GET /api/sentiment/aggregate", s.handleAggregate)
	mux.HandleFunc("GET /api/sentiment/distribution", s.handleDistribution)
	mux.HandleFunc("GET /api/alerts", s.handleListAlerts)
	mux.HandleFunc("GET /api/stream", s.handleEventStream)
	mux.HandleFunc("GET /ws/sentiment", s.handleWebsocket)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}
