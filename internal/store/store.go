package store

import (
	"context"
	"time"

	"github.com/streamglass/pulse/internal/model"
)

// Store defines the persistence interface for enriched posts and alerts.
// The stream worker is the only writer of posts and the alert monitor the
// only writer of alerts; everything else reads.
type Store interface {
	// UpsertPost inserts or replaces the enriched post keyed by post_id
	// inside a single transaction. Safe to repeat under stream redelivery.
	UpsertPost(ctx context.Context, post *model.Post) error

	// ListPosts returns posts matching the filter plus the unpaginated total.
	ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error)

	// PostsSince returns posts ingested strictly after since, oldest first.
	PostsSince(ctx context.Context, since time.Time) ([]*model.Post, error)

	// SentimentBuckets groups posts created in [start, end) by the timestamp
	// truncated to period (minute/hour/day) and sentiment label.
	SentimentBuckets(ctx context.Context, period string, start, end time.Time, source string) ([]model.BucketRow, error)

	// SentimentCounts returns per-label post counts created in [start, end).
	SentimentCounts(ctx context.Context, start, end time.Time, source string) ([]model.LabelCount, error)

	// TopEmotions returns the most frequent emotion labels in [start, end).
	TopEmotions(ctx context.Context, start, end time.Time, source string, limit int) ([]model.LabelCount, error)

	// InsertAlert appends a triggered alert.
	InsertAlert(ctx context.Context, alert *model.Alert) error

	// ListAlerts returns the most recent alerts, newest first.
	ListAlerts(ctx context.Context, limit int) ([]*model.Alert, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
