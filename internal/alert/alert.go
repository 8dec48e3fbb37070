// Package alert watches the trailing sentiment window and persists an
// alert whenever the negative-to-positive ratio exceeds the configured
// threshold. Evaluation is periodic and read-only except for the alert
// row itself.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/streamglass/pulse/internal/metrics"
	"github.com/streamglass/pulse/internal/model"
)

// ratioSentinel stands in for an infinite ratio: negatives present with
// zero positives.
const ratioSentinel = 999.99

// Store is the persistence the monitor needs: window counts in, alert out.
type Store interface {
	SentimentCounts(ctx context.Context, start, end time.Time, source string) ([]model.LabelCount, error)
	InsertAlert(ctx context.Context, alert *model.Alert) error
}

// Config controls evaluation cadence and trigger conditions.
type Config struct {
	// Threshold is the negative/positive ratio above which an alert fires.
	// The comparison is strict.
	Threshold float64

	// Window is the trailing evaluation window.
	Window time.Duration

	// MinPosts is the minimum post count in the window before the ratio
	// is evaluated at all.
	MinPosts int

	// Interval is the time between evaluations.
	Interval time.Duration
}

// Monitor periodically evaluates the alert condition against the store.
type Monitor struct {
	store Store
	cfg   Config

	// OnAlert, when set, is invoked with every persisted alert.
	OnAlert func(*model.Alert)
}

// NewMonitor creates a monitor with the given configuration.
func NewMonitor(store Store, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Monitor{store: store, cfg: cfg}
}

// Run evaluates on every interval tick until ctx is cancelled. Evaluation
// errors are logged and do not stop the loop.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("alert monitor started",
		"threshold", m.cfg.Threshold, "window", m.cfg.Window, "interval", m.cfg.Interval)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("alert monitor stopped")
			return
		case <-ticker.C:
			alert, err := m.Evaluate(ctx)
			if err != nil {
				slog.Error("alert evaluation failed", "error", err)
				continue
			}
			if alert != nil && m.OnAlert != nil {
				m.OnAlert(alert)
			}
		}
	}
}

// Evaluate checks the trailing window once. It returns the persisted
// alert when the condition fires, or nil when it does not.
func (m *Monitor) Evaluate(ctx context.Context) (*model.Alert, error) {
	end := time.Now().UTC()
	start := end.Add(-m.cfg.Window)

	counts, err := m.store.SentimentCounts(ctx, start, end, "")
	if err != nil {
		return nil, fmt.Errorf("querying window counts: %w", err)
	}

	var positive, negative, neutral, total int
	for _, lc := range counts {
		total += lc.Count
		switch lc.Label {
		case model.SentimentPositive:
			positive = lc.Count
		case model.SentimentNegative:
			negative = lc.Count
		case model.SentimentNeutral:
			neutral = lc.Count
		}
	}
	if total < m.cfg.MinPosts {
		slog.Debug("alert window below minimum", "posts", total, "min", m.cfg.MinPosts)
		return nil, nil
	}

	ratio := negativeRatio(positive, negative)
	if ratio <= m.cfg.Threshold {
		return nil, nil
	}

	details, err := json.Marshal(map[string]int{
		"positive_count": positive,
		"negative_count": negative,
		"neutral_count":  neutral,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding alert details: %w", err)
	}

	alert := &model.Alert{
		AlertType:      model.AlertTypeHighNegativeRatio,
		ThresholdValue: m.cfg.Threshold,
		ActualValue:    ratio,
		WindowStart:    start,
		WindowEnd:      end,
		PostCount:      total,
		TriggeredAt:    end,
		Details:        details,
	}
	if err := m.store.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("persisting alert: %w", err)
	}
	metrics.AlertsTriggered.Inc()
	slog.Warn("negative sentiment alert triggered",
		"ratio", ratio, "threshold", m.cfg.Threshold, "posts", total)
	return alert, nil
}

// negativeRatio is negative/positive rounded to two decimals, with the
// sentinel when positives are absent but negatives are not.
func negativeRatio(positive, negative int) float64 {
	if positive == 0 {
		if negative > 0 {
			return ratioSentinel
		}
		return 0
	}
	return math.Round(float64(negative)/float64(positive)*100) / 100
}
