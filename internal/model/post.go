// Package model defines the domain types shared across the pipeline.
package model

import (
	"time"
)

// Sentiment labels produced by the enrichment oracle.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// SentimentLabels lists every valid sentiment label.
var SentimentLabels = []string{SentimentPositive, SentimentNegative, SentimentNeutral}

// RawPost is the flat payload appended to the stream by the producer.
// It is immutable once published; the worker reads it exactly once per
// successful commit (redelivery may repeat it on failure).
type RawPost struct {
	PostID    string `json:"post_id"`
	Source    string `json:"source"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"` // RFC 3339
}

// Post is an enriched record persisted by the stream worker. At most one
// Post exists per PostID; the store upsert is idempotent so stream
// redelivery never duplicates rows. Posts are never mutated or deleted.
type Post struct {
	PostID              string    `json:"post_id"`
	Source              string    `json:"source"`
	Content             string    `json:"content"`
	Author              string    `json:"author"`
	CreatedAt           time.Time `json:"created_at"`
	IngestedAt          time.Time `json:"ingested_at"`
	SentimentLabel      string    `json:"sentiment_label"`
	SentimentConfidence float64   `json:"sentiment_confidence"`
	Emotion             *string   `json:"emotion,omitempty"`
	EmotionConfidence   *float64  `json:"emotion_confidence,omitempty"`
	ModelName           string    `json:"model_name"`
}

// PostFilter selects posts for list queries.
type PostFilter struct {
	Source    string
	Sentiment string
	Start     *time.Time
	End       *time.Time
	Limit     int
	Offset    int
}

// LabelCount is one row of a grouped count query (sentiment or emotion).
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// BucketRow is one row of the time-bucketed sentiment query: a
// (truncated timestamp, sentiment label) pair with its count and mean
// confidence.
type BucketRow struct {
	Bucket        time.Time
	Label         string
	Count         int
	AvgConfidence float64
}

// ValidSentiment reports whether label is one of the known sentiment labels.
func ValidSentiment(label string) bool {
	for _, l := range SentimentLabels {
		if l == label {
			return true
		}
	}
	return false
}
