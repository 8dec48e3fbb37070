// Package metrics registers the process-wide Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsPublished counts raw posts appended to the stream by the producer.
	PostsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "posts_published_total",
		Help:      "Raw posts appended to the stream",
	})

	// MessagesProcessed counts worker message outcomes by status
	// (ok, malformed, enrich_failed, persist_failed).
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "worker_messages_total",
		Help:      "Stream messages processed by the worker, by outcome",
	}, []string{"status"})

	// CacheLookups counts aggregate cache lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "cache_lookups_total",
		Help:      "Aggregation cache lookups, by result",
	}, []string{"result"})

	// AlertsTriggered counts persisted alerts.
	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "alerts_triggered_total",
		Help:      "Threshold alerts persisted by the monitor",
	})

	// Broadcasts counts hub messages fanned out to subscribers.
	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "hub_broadcasts_total",
		Help:      "Messages broadcast to live subscribers",
	})
)
