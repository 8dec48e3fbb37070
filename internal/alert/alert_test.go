package alert

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streamglass/pulse/internal/model"
)

type fakeStore struct {
	counts     []model.LabelCount
	countErr   error
	insertErr  error
	inserted   []*model.Alert
	countCalls int
}

func (s *fakeStore) SentimentCounts(_ context.Context, _, _ time.Time, _ string) ([]model.LabelCount, error) {
	s.countCalls++
	return s.counts, s.countErr
}

func (s *fakeStore) InsertAlert(_ context.Context, a *model.Alert) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, a)
	return nil
}

func labelCounts(positive, negative, neutral int) []model.LabelCount {
	return []model.LabelCount{
		{Label: "positive", Count: positive},
		{Label: "negative", Count: negative},
		{Label: "neutral", Count: neutral},
	}
}

func testConfig() Config {
	return Config{Threshold: 2.0, Window: 5 * time.Minute, MinPosts: 10, Interval: time.Minute}
}

func TestEvaluateTriggers(t *testing.T) {
	st := &fakeStore{counts: labelCounts(30, 150, 20)}
	m := NewMonitor(st, testConfig())

	got, err := m.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got == nil {
		t.Fatal("expected alert")
	}
	if got.ActualValue != 5.0 {
		t.Errorf("ActualValue = %v, want 5.0", got.ActualValue)
	}
	if got.AlertType != model.AlertTypeHighNegativeRatio {
		t.Errorf("AlertType = %q", got.AlertType)
	}
	if got.PostCount != 200 {
		t.Errorf("PostCount = %d, want 200", got.PostCount)
	}
	if len(st.inserted) != 1 {
		t.Fatalf("inserted %d alerts, want 1", len(st.inserted))
	}

	var details map[string]int
	if err := json.Unmarshal(got.Details, &details); err != nil {
		t.Fatalf("details: %v", err)
	}
	if details["negative_count"] != 150 || details["positive_count"] != 30 || details["neutral_count"] != 20 {
		t.Errorf("details = %v", details)
	}
}

func TestEvaluateThresholdIsStrict(t *testing.T) {
	// 40/20 is exactly the threshold; no alert.
	st := &fakeStore{counts: labelCounts(20, 40, 10)}
	m := NewMonitor(st, testConfig())

	got, err := m.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != nil {
		t.Errorf("ratio equal to threshold must not trigger, got %+v", got)
	}
	if len(st.inserted) != 0 {
		t.Error("alert persisted at exact threshold")
	}
}

func TestEvaluateNoPositivesSentinel(t *testing.T) {
	st := &fakeStore{counts: labelCounts(0, 15, 0)}
	m := NewMonitor(st, testConfig())

	got, err := m.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got == nil {
		t.Fatal("expected alert")
	}
	if got.ActualValue != 999.99 {
		t.Errorf("ActualValue = %v, want 999.99", got.ActualValue)
	}
}

func TestEvaluateInsufficientPosts(t *testing.T) {
	// Heavily negative but below the minimum window size.
	st := &fakeStore{counts: labelCounts(1, 8, 0)}
	m := NewMonitor(st, testConfig())

	got, err := m.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != nil {
		t.Errorf("window below MinPosts must not trigger, got %+v", got)
	}
}

func TestEvaluateEmptyWindow(t *testing.T) {
	st := &fakeStore{}
	m := NewMonitor(st, testConfig())

	got, err := m.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != nil {
		t.Errorf("empty window must not trigger, got %+v", got)
	}
}

func TestEvaluateStoreErrors(t *testing.T) {
	st := &fakeStore{countErr: errors.New("connection reset")}
	m := NewMonitor(st, testConfig())
	if _, err := m.Evaluate(context.Background()); err == nil {
		t.Fatal("expected query error")
	}

	st = &fakeStore{counts: labelCounts(10, 100, 0), insertErr: errors.New("connection reset")}
	m = NewMonitor(st, testConfig())
	if _, err := m.Evaluate(context.Background()); err == nil {
		t.Fatal("expected insert error")
	}
}

func TestNegativeRatio(t *testing.T) {
	tests := []struct {
		positive, negative int
		want               float64
	}{
		{30, 150, 5.0},
		{20, 40, 2.0},
		{3, 10, 3.33},
		{0, 15, 999.99},
		{0, 0, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := negativeRatio(tt.positive, tt.negative); got != tt.want {
			t.Errorf("negativeRatio(%d, %d) = %v, want %v", tt.positive, tt.negative, got, tt.want)
		}
	}
}

func TestRunInvokesCallback(t *testing.T) {
	st := &fakeStore{counts: labelCounts(10, 100, 0)}
	cfg := testConfig()
	cfg.Interval = 10 * time.Millisecond
	m := NewMonitor(st, cfg)

	fired := make(chan *model.Alert, 1)
	m.OnAlert = func(a *model.Alert) {
		select {
		case fired <- a:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	select {
	case a := <-fired:
		if a.ActualValue != 10.0 {
			t.Errorf("ActualValue = %v, want 10.0", a.ActualValue)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
	cancel()
	<-done
}
