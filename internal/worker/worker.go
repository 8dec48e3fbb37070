// Package worker runs the enrichment stage of the pipeline: it reads raw
// posts from the stream as part of a consumer group, classifies each one
// through the oracle, and commits the enriched record before acknowledging
// the delivery. A delivery is acknowledged only after the database commit,
// so a crash anywhere in between leaves the entry pending for redelivery
// and the idempotent upsert absorbs the repeat.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/streamglass/pulse/internal/idgen"
	"github.com/streamglass/pulse/internal/metrics"
	"github.com/streamglass/pulse/internal/model"
	"github.com/streamglass/pulse/internal/oracle"
	"github.com/streamglass/pulse/internal/store"
	"github.com/streamglass/pulse/internal/stream"
)

// fetchWait is how long a fetch blocks waiting for the first pending entry.
const fetchWait = 2 * time.Second

// Queue is the consumer-group side of the stream the worker reads from.
type Queue interface {
	Fetch(batch int, wait time.Duration) ([]stream.Delivery, error)
}

// Worker is one consumer-group member. Multiple workers on the same group
// split the stream between them; each entry is delivered to exactly one
// member until acknowledged.
type Worker struct {
	name     string
	queue    Queue
	analyzer oracle.Analyzer
	store    store.Store
	batch    int
}

// New creates a worker with a generated member name.
func New(queue Queue, analyzer oracle.Analyzer, st store.Store, batch int) *Worker {
	if batch <= 0 {
		batch = 10
	}
	name, err := idgen.GenerateWithPrefix("worker_")
	if err != nil {
		name = "worker_0"
	}
	return &Worker{
		name:     name,
		queue:    queue,
		analyzer: analyzer,
		store:    st,
		batch:    batch,
	}
}

// Name returns the generated member name, used only for logging.
func (w *Worker) Name() string {
	return w.name
}

// Run fetches and processes batches until ctx is cancelled. A failing
// message is logged and left unacknowledged; it never stops the loop or
// blocks the rest of its batch.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("worker started", "worker", w.name, "batch", w.batch)
	for {
		if err := ctx.Err(); err != nil {
			slog.Info("worker stopped", "worker", w.name)
			return nil
		}

		deliveries, err := w.queue.Fetch(w.batch, fetchWait)
		if err != nil {
			slog.Error("fetch failed", "worker", w.name, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, d := range deliveries {
			if err := w.Process(ctx, d); err != nil {
				slog.Error("message failed, leaving unacked",
					"worker", w.name, "entry", d.ID(), "error", err)
			}
		}
	}
}

// Process enriches and persists a single delivery. The entry is
// acknowledged only after the store commit succeeds; any earlier failure
// returns with the entry still pending.
func (w *Worker) Process(ctx context.Context, d stream.Delivery) error {
	raw, err := decode(d.Data())
	if err != nil {
		metrics.MessagesProcessed.WithLabelValues("malformed").Inc()
		return fmt.Errorf("entry %s: %w", d.ID(), err)
	}
	createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
	if err != nil {
		metrics.MessagesProcessed.WithLabelValues("malformed").Inc()
		return fmt.Errorf("entry %s: parsing created_at: %w", d.ID(), err)
	}

	sentiment, err := w.analyzer.Sentiment(ctx, raw.Content)
	if err != nil {
		metrics.MessagesProcessed.WithLabelValues("enrich_failed").Inc()
		return fmt.Errorf("classifying sentiment for %s: %w", raw.PostID, err)
	}
	emotion, err := w.analyzer.Emotion(ctx, raw.Content)
	if err != nil {
		metrics.MessagesProcessed.WithLabelValues("enrich_failed").Inc()
		return fmt.Errorf("classifying emotion for %s: %w", raw.PostID, err)
	}

	post := &model.Post{
		PostID:              raw.PostID,
		Source:              raw.Source,
		Content:             raw.Content,
		Author:              raw.Author,
		CreatedAt:           createdAt,
		IngestedAt:          time.Now().UTC(),
		SentimentLabel:      sentiment.Label,
		SentimentConfidence: sentiment.Confidence,
		Emotion:             &emotion.Label,
		EmotionConfidence:   &emotion.Confidence,
		ModelName:           sentiment.ModelName,
	}
	if err := w.store.UpsertPost(ctx, post); err != nil {
		metrics.MessagesProcessed.WithLabelValues("persist_failed").Inc()
		return fmt.Errorf("persisting %s: %w", raw.PostID, err)
	}

	if err := d.Ack(); err != nil {
		// The row is committed; redelivery re-runs the upsert harmlessly.
		return fmt.Errorf("acking entry %s: %w", d.ID(), err)
	}
	metrics.MessagesProcessed.WithLabelValues("ok").Inc()
	slog.Debug("post enriched",
		"worker", w.name, "post_id", raw.PostID, "sentiment", sentiment.Label)
	return nil
}

// decode parses and validates a raw stream payload. Missing required
// fields make the payload malformed.
func decode(data []byte) (*model.RawPost, error) {
	var raw model.RawPost
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	switch {
	case raw.PostID == "":
		return nil, fmt.Errorf("payload missing post_id")
	case raw.Source == "":
		return nil, fmt.Errorf("payload missing source")
	case raw.Content == "":
		return nil, fmt.Errorf("payload missing content")
	case raw.Author == "":
		return nil, fmt.Errorf("payload missing author")
	case raw.CreatedAt == "":
		return nil, fmt.Errorf("payload missing created_at")
	}
	return &raw, nil
}
