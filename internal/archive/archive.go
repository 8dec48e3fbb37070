// Package archive periodically exports the enriched post log as JSONL to
// one or more destinations. Archives are snapshots for offline analysis;
// the database remains the source of truth.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/streamglass/pulse/internal/model"
)

// alertExportLimit caps the number of alerts included in a snapshot.
const alertExportLimit = 1000

// Store is the read side the exporter drains.
type Store interface {
	ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error)
	ListAlerts(ctx context.Context, limit int) ([]*model.Alert, error)
}

// Destination is a snapshot target (S3, local file, etc.).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	PostCount  int       `json:"post_count"`
	AlertCount int       `json:"alert_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every post and recent alert from the store as JSONL
// to w, preceded by a header record with counts.
func ExportJSONL(ctx context.Context, s Store, w io.Writer) error {
	posts, _, err := s.ListPosts(ctx, model.PostFilter{})
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}
	alerts, err := s.ListAlerts(ctx, alertExportLimit)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    "1",
		Type:       "header",
		Timestamp:  time.Now().UTC(),
		PostCount:  len(posts),
		AlertCount: len(alerts),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, p := range posts {
		if err := enc.Encode(record{Type: "post", Data: p}); err != nil {
			return fmt.Errorf("encode post %s: %w", p.PostID, err)
		}
	}
	for _, a := range alerts {
		if err := enc.Encode(record{Type: "alert", Data: a}); err != nil {
			return fmt.Errorf("encode alert %d: %w", a.ID, err)
		}
	}
	return nil
}

// Scheduler runs periodic exports to one or more destinations.
type Scheduler struct {
	store        Store
	destinations []Destination
	interval     time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports at the given interval.
func NewScheduler(s Store, destinations []Destination, interval time.Duration) *Scheduler {
	return &Scheduler{store: s, destinations: destinations, interval: interval}
}

// Start begins periodic export. It runs an initial export immediately,
// then on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for any in-flight export to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.exportOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exportOnce(ctx)
		}
	}
}

func (s *Scheduler) exportOnce(ctx context.Context) {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		slog.Error("archive export failed", "error", err)
		return
	}
	data := buf.Bytes()

	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			slog.Error("archive write failed", "destination", i, "error", err)
		}
	}
	slog.Info("archive completed", "destinations", len(s.destinations), "bytes", len(data))
}
