// Package ingest generates synthetic social posts and appends them to the
// stream at a fixed rate. Content is drawn from weighted sentiment
// template pools so the downstream pipeline sees a realistic mix.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/streamglass/pulse/internal/idgen"
	"github.com/streamglass/pulse/internal/metrics"
	"github.com/streamglass/pulse/internal/model"
)

// Templates holds the content pools posts are drawn from, one per
// sentiment leaning. Draw weights are 40% positive, 30% negative,
// 30% neutral.
type Templates struct {
	Positive []string `toml:"positive"`
	Negative []string `toml:"negative"`
	Neutral  []string `toml:"neutral"`
}

// defaultTemplates is the built-in content pool used when no template
// file is configured.
var defaultTemplates = Templates{
	Positive: []string{
		"This is absolutely amazing, best purchase I've made all year!",
		"Huge fan of the latest update. Everything feels faster now.",
		"Customer support resolved my issue in minutes. Impressed!",
		"Finally a product that does what it promises. Love it.",
		"The new release exceeded every expectation I had.",
	},
	Negative: []string{
		"Completely broken after the update. Would not recommend.",
		"Worst experience I've had in years. Total waste of money.",
		"Support has ignored my ticket for a week now. Unacceptable.",
		"The app crashes constantly. How did this pass testing?",
		"Terrible quality for the price. Very disappointed.",
	},
	Neutral: []string{
		"The update rolled out this morning.",
		"Version 2.4 is now available for download.",
		"They announced a new pricing tier today.",
		"The service was down for about an hour.",
		"Release notes are up on the website.",
	},
}

var sources = []string{"reddit", "twitter"}

var authors = []string{
	"tech_guru", "daily_reviewer", "casual_user_42", "product_hunter",
	"skeptic_sam", "early_adopter", "gadget_fan", "honest_opinions",
}

// LoadTemplates reads a TOML template file. All three pools must be
// non-empty.
func LoadTemplates(path string) (Templates, error) {
	var t Templates
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return Templates{}, fmt.Errorf("decoding template file %s: %w", path, err)
	}
	if len(t.Positive) == 0 || len(t.Negative) == 0 || len(t.Neutral) == 0 {
		return Templates{}, fmt.Errorf("template file %s: all three pools must be non-empty", path)
	}
	return t, nil
}

// Publisher is the stream side the producer appends to.
type Publisher interface {
	Publish(ctx context.Context, post *model.RawPost) error
}

// Producer appends synthetic posts to the stream at a configured rate.
type Producer struct {
	pub       Publisher
	rate      int // posts per minute
	templates Templates
	rng       *rand.Rand
}

// New creates a producer. Rate is posts per minute; non-positive rates
// default to 60. Zero-value templates fall back to the built-in pools.
func New(pub Publisher, rate int, templates Templates) *Producer {
	if rate <= 0 {
		rate = 60
	}
	if len(templates.Positive) == 0 {
		templates = defaultTemplates
	}
	return &Producer{
		pub:       pub,
		rate:      rate,
		templates: templates,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GeneratePost builds one synthetic raw post.
func (p *Producer) GeneratePost() *model.RawPost {
	id, err := idgen.Generate()
	if err != nil {
		id = fmt.Sprintf("post_%d", time.Now().UnixNano())
	}

	var pool []string
	switch roll := p.rng.Float64(); {
	case roll < 0.4:
		pool = p.templates.Positive
	case roll < 0.7:
		pool = p.templates.Negative
	default:
		pool = p.templates.Neutral
	}

	return &model.RawPost{
		PostID:    id,
		Source:    sources[p.rng.Intn(len(sources))],
		Content:   pool[p.rng.Intn(len(pool))],
		Author:    authors[p.rng.Intn(len(authors))],
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// PublishOne generates and appends a single post, reporting success.
// Failures are logged and swallowed; the producer keeps its cadence.
func (p *Producer) PublishOne(ctx context.Context) bool {
	post := p.GeneratePost()
	if err := p.pub.Publish(ctx, post); err != nil {
		slog.Error("publish failed", "post_id", post.PostID, "error", err)
		return false
	}
	metrics.PostsPublished.Inc()
	slog.Debug("post published", "post_id", post.PostID, "source", post.Source)
	return true
}

// Run publishes at the configured rate until ctx is cancelled or, when
// duration is positive, until it elapses. It returns the number of posts
// successfully published.
func (p *Producer) Run(ctx context.Context, duration time.Duration) int {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	interval := time.Minute / time.Duration(p.rate)
	slog.Info("producer started", "rate_per_minute", p.rate, "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var published int
	for {
		select {
		case <-ctx.Done():
			slog.Info("producer stopped", "published", published)
			return published
		case <-ticker.C:
			if p.PublishOne(ctx) {
				published++
			}
		}
	}
}
