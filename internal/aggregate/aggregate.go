// Package aggregate computes sentiment roll-ups over the persisted posts.
// Results are served read-through from a short-TTL cache; the cache is
// never a source of truth and every cache failure is treated as a miss.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/streamglass/pulse/internal/cache"
	"github.com/streamglass/pulse/internal/metrics"
	"github.com/streamglass/pulse/internal/model"
)

const (
	// aggregateTTL bounds how stale a cached time-bucket roll-up may be.
	aggregateTTL = 60 * time.Second

	// distributionTTL bounds how stale a cached distribution may be.
	distributionTTL = 30 * time.Second

	// defaultRange is the query window when the caller gives no bounds.
	defaultRange = 24 * time.Hour

	// topEmotionLimit caps the emotion list in distributions.
	topEmotionLimit = 5
)

// validPeriods lists the accepted bucket granularities.
var validPeriods = map[string]bool{"minute": true, "hour": true, "day": true}

// Store is the read-side persistence the engine queries.
type Store interface {
	SentimentBuckets(ctx context.Context, period string, start, end time.Time, source string) ([]model.BucketRow, error)
	SentimentCounts(ctx context.Context, start, end time.Time, source string) ([]model.LabelCount, error)
	TopEmotions(ctx context.Context, start, end time.Time, source string, limit int) ([]model.LabelCount, error)
}

// LabelStat is one sentiment label's share of a bucket or window.
type LabelStat struct {
	Count         int     `json:"count"`
	Percentage    float64 `json:"percentage"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Bucket is one time bucket of the roll-up. Labels absent from the bucket
// report zero count and zero percentage.
type Bucket struct {
	Time     time.Time `json:"time_bucket"`
	Total    int       `json:"total"`
	Positive LabelStat `json:"positive"`
	Negative LabelStat `json:"negative"`
	Neutral  LabelStat `json:"neutral"`
}

// Summary is the whole-window roll-up across all buckets.
type Summary struct {
	TotalPosts int       `json:"total_posts"`
	Positive   LabelStat `json:"positive"`
	Negative   LabelStat `json:"negative"`
	Neutral    LabelStat `json:"neutral"`
}

// Result is a time-bucketed sentiment roll-up over [Start, End).
type Result struct {
	Period  string    `json:"period"`
	Start   time.Time `json:"start_time"`
	End     time.Time `json:"end_time"`
	Source  string    `json:"source,omitempty"`
	Buckets []Bucket  `json:"buckets"`
	Summary Summary   `json:"summary"`
}

// Distribution is the overall sentiment split for a trailing window.
// Percentages are fixed two-decimal strings; both maps are empty when the
// window holds no posts.
type Distribution struct {
	WindowHours int                `json:"window_hours"`
	Source      string             `json:"source,omitempty"`
	TotalPosts  int                `json:"total_posts"`
	Counts      map[string]int     `json:"counts"`
	Percentages map[string]string  `json:"percentages"`
	TopEmotions []model.LabelCount `json:"top_emotions"`
}

// Engine serves roll-ups with a read-through cache in front of the store.
type Engine struct {
	store Store
	cache cache.Cache
}

// New creates an engine. A nil cache disables caching.
func New(store Store, c cache.Cache) *Engine {
	return &Engine{store: store, cache: c}
}

// Aggregate returns the bucketed roll-up for [start, end) at the given
// granularity. Zero bounds default to the trailing 24 hours. Period must
// be minute, hour or day.
func (e *Engine) Aggregate(ctx context.Context, period string, start, end time.Time, source string) (*Result, error) {
	if !validPeriods[period] {
		return nil, fmt.Errorf("invalid period %q: must be minute, hour or day", period)
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-defaultRange)
	}

	key := fmt.Sprintf("agg:%s:%d:%d:%s", period, start.Unix(), end.Unix(), source)
	var cached Result
	if e.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	rows, err := e.store.SentimentBuckets(ctx, period, start, end, source)
	if err != nil {
		return nil, fmt.Errorf("querying sentiment buckets: %w", err)
	}

	result := &Result{
		Period:  period,
		Start:   start,
		End:     end,
		Source:  source,
		Buckets: buildBuckets(rows),
		Summary: buildSummary(rows),
	}

	e.put(ctx, key, result, aggregateTTL)
	return result, nil
}

// Distribution returns the overall sentiment split for the trailing
// window of the given length in hours. Non-positive hours default to 24.
func (e *Engine) Distribution(ctx context.Context, hours int, source string) (*Distribution, error) {
	if hours <= 0 {
		hours = 24
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	key := fmt.Sprintf("dist:%d:%s", hours, source)
	var cached Distribution
	if e.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	counts, err := e.store.SentimentCounts(ctx, start, end, source)
	if err != nil {
		return nil, fmt.Errorf("querying sentiment counts: %w", err)
	}
	emotions, err := e.store.TopEmotions(ctx, start, end, source, topEmotionLimit)
	if err != nil {
		return nil, fmt.Errorf("querying top emotions: %w", err)
	}

	dist := &Distribution{
		WindowHours: hours,
		Source:      source,
		Counts:      make(map[string]int),
		Percentages: make(map[string]string),
		TopEmotions: emotions,
	}
	for _, lc := range counts {
		dist.Counts[lc.Label] = lc.Count
		dist.TotalPosts += lc.Count
	}
	if dist.TotalPosts > 0 {
		for label, n := range dist.Counts {
			dist.Percentages[label] = fmt.Sprintf("%.2f", 100*float64(n)/float64(dist.TotalPosts))
		}
	}

	e.put(ctx, key, dist, distributionTTL)
	return dist, nil
}

// lookup fills dest from the cache and reports whether it hit. Errors
// other than a miss are logged and counted but otherwise ignored.
func (e *Engine) lookup(ctx context.Context, key string, dest any) bool {
	if e.cache == nil {
		return false
	}
	data, err := e.cache.Get(ctx, key)
	switch {
	case err == nil:
	case err == cache.ErrMiss:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		slog.Warn("cache get failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		slog.Warn("cache entry corrupt", "key", key, "error", err)
		return false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return true
}

// put writes a computed result to the cache, ignoring failures.
func (e *Engine) put(ctx context.Context, key string, v any, ttl time.Duration) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, data, ttl); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}

// buildBuckets folds grouped rows into per-bucket stats, preserving the
// store's chronological bucket order.
func buildBuckets(rows []model.BucketRow) []Bucket {
	var buckets []Bucket
	index := make(map[time.Time]int)
	for _, row := range rows {
		i, ok := index[row.Bucket]
		if !ok {
			i = len(buckets)
			index[row.Bucket] = i
			buckets = append(buckets, Bucket{Time: row.Bucket})
		}
		stat := LabelStat{Count: row.Count, AvgConfidence: round2(row.AvgConfidence)}
		switch row.Label {
		case model.SentimentPositive:
			buckets[i].Positive = stat
		case model.SentimentNegative:
			buckets[i].Negative = stat
		case model.SentimentNeutral:
			buckets[i].Neutral = stat
		}
		buckets[i].Total += row.Count
	}
	for i := range buckets {
		total := buckets[i].Total
		buckets[i].Positive.Percentage = percentage(buckets[i].Positive.Count, total)
		buckets[i].Negative.Percentage = percentage(buckets[i].Negative.Count, total)
		buckets[i].Neutral.Percentage = percentage(buckets[i].Neutral.Count, total)
	}
	return buckets
}

// buildSummary folds grouped rows into whole-window label stats with
// confidence weighted by count.
func buildSummary(rows []model.BucketRow) Summary {
	var s Summary
	confSums := make(map[string]float64)
	for _, row := range rows {
		s.TotalPosts += row.Count
		confSums[row.Label] += row.AvgConfidence * float64(row.Count)
		switch row.Label {
		case model.SentimentPositive:
			s.Positive.Count += row.Count
		case model.SentimentNegative:
			s.Negative.Count += row.Count
		case model.SentimentNeutral:
			s.Neutral.Count += row.Count
		}
	}
	fill := func(stat *LabelStat, label string) {
		stat.Percentage = percentage(stat.Count, s.TotalPosts)
		if stat.Count > 0 {
			stat.AvgConfidence = round2(confSums[label] / float64(stat.Count))
		}
	}
	fill(&s.Positive, model.SentimentPositive)
	fill(&s.Negative, model.SentimentNegative)
	fill(&s.Neutral, model.SentimentNeutral)
	return s
}

// percentage returns count's share of total rounded to two decimals, or 0
// when total is 0.
func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(100 * float64(count) / float64(total))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
