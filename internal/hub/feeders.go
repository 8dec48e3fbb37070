package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/streamglass/pulse/internal/model"
)

const (
	// metricsInterval is the cadence of metrics_update broadcasts.
	metricsInterval = 30 * time.Second

	// watchInterval is the polling cadence for new_post broadcasts.
	watchInterval = 2 * time.Second

	// previewLen caps the post content included in new_post events.
	previewLen = 100
)

// MetricsStore provides the window counts for metrics_update events.
type MetricsStore interface {
	SentimentCounts(ctx context.Context, start, end time.Time, source string) ([]model.LabelCount, error)
}

// MetricsUpdate is the payload of a metrics_update broadcast.
type MetricsUpdate struct {
	LastMinute  int       `json:"last_minute"`
	LastHour    int       `json:"last_hour"`
	Last24Hours int       `json:"last_24_hours"`
	Timestamp   time.Time `json:"timestamp"`
}

// MetricsFeeder periodically broadcasts post-volume counts. With no
// subscribers it skips the store entirely.
type MetricsFeeder struct {
	hub      *Hub
	store    MetricsStore
	interval time.Duration
}

// NewMetricsFeeder creates a feeder on the default cadence.
func NewMetricsFeeder(h *Hub, store MetricsStore) *MetricsFeeder {
	return &MetricsFeeder{hub: h, store: store, interval: metricsInterval}
}

// Run broadcasts until ctx is cancelled.
func (f *MetricsFeeder) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f.hub.Count() == 0 {
				continue
			}
			if err := f.tick(ctx); err != nil {
				slog.Error("metrics broadcast failed", "error", err)
			}
		}
	}
}

func (f *MetricsFeeder) tick(ctx context.Context) error {
	now := time.Now().UTC()
	update := MetricsUpdate{Timestamp: now}

	windows := []struct {
		span time.Duration
		dest *int
	}{
		{time.Minute, &update.LastMinute},
		{time.Hour, &update.LastHour},
		{24 * time.Hour, &update.Last24Hours},
	}
	for _, w := range windows {
		counts, err := f.store.SentimentCounts(ctx, now.Add(-w.span), now, "")
		if err != nil {
			return err
		}
		for _, lc := range counts {
			*w.dest += lc.Count
		}
	}

	msg, err := NewMessage(TypeMetricsUpdate, update)
	if err != nil {
		return err
	}
	f.hub.Broadcast(ctx, msg)
	return nil
}

// WatchStore provides the incremental post reads for new_post events.
type WatchStore interface {
	PostsSince(ctx context.Context, since time.Time) ([]*model.Post, error)
}

// NewPost is the payload of a new_post broadcast. Content is truncated to
// a short preview.
type NewPost struct {
	PostID              string    `json:"post_id"`
	Source              string    `json:"source"`
	Author              string    `json:"author"`
	ContentPreview      string    `json:"content_preview"`
	SentimentLabel      string    `json:"sentiment_label"`
	SentimentConfidence float64   `json:"sentiment_confidence"`
	Emotion             *string   `json:"emotion,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// PostWatcher polls for newly ingested posts and broadcasts each one.
// With no subscribers it skips the store and resets its cursor, so a
// returning subscriber sees only posts from that point on.
type PostWatcher struct {
	hub      *Hub
	store    WatchStore
	interval time.Duration
}

// NewPostWatcher creates a watcher on the default cadence.
func NewPostWatcher(h *Hub, store WatchStore) *PostWatcher {
	return &PostWatcher{hub: h, store: store, interval: watchInterval}
}

// Run polls until ctx is cancelled.
func (w *PostWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	lastCheck := time.Now().UTC()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.hub.Count() == 0 {
				lastCheck = time.Now().UTC()
				continue
			}
			next := time.Now().UTC()
			if err := w.tick(ctx, lastCheck); err != nil {
				slog.Error("post broadcast failed", "error", err)
				continue
			}
			lastCheck = next
		}
	}
}

func (w *PostWatcher) tick(ctx context.Context, since time.Time) error {
	posts, err := w.store.PostsSince(ctx, since)
	if err != nil {
		return err
	}
	for _, p := range posts {
		msg, err := NewMessage(TypeNewPost, NewPost{
			PostID:              p.PostID,
			Source:              p.Source,
			Author:              p.Author,
			ContentPreview:      preview(p.Content),
			SentimentLabel:      p.SentimentLabel,
			SentimentConfidence: p.SentimentConfidence,
			Emotion:             p.Emotion,
			CreatedAt:           p.CreatedAt,
		})
		if err != nil {
			return err
		}
		w.hub.Broadcast(ctx, msg)
	}
	return nil
}

func preview(content string) string {
	if len(content) > previewLen {
		return content[:previewLen]
	}
	return content
}
