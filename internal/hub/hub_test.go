package hub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/streamglass/pulse/internal/model"
)

type fakeSubscriber struct {
	mu   sync.Mutex
	msgs []*Message
	err  error
}

func (s *fakeSubscriber) Send(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *fakeSubscriber) received() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.msgs...)
}

func TestBroadcast(t *testing.T) {
	h := New()
	a, b := &fakeSubscriber{}, &fakeSubscriber{}
	h.Subscribe(a)
	h.Subscribe(b)

	msg, err := NewMessage(TypeConnected, map[string]string{"status": "ok"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	h.Broadcast(context.Background(), msg)

	for _, s := range []*fakeSubscriber{a, b} {
		got := s.received()
		if len(got) != 1 || got[0].Type != TypeConnected {
			t.Errorf("subscriber got %+v", got)
		}
	}
}

func TestBroadcastPrunesFailedSubscriber(t *testing.T) {
	h := New()
	healthy := &fakeSubscriber{}
	broken := &fakeSubscriber{err: errors.New("connection closed")}
	h.Subscribe(healthy)
	h.Subscribe(broken)

	msg, _ := NewMessage(TypeNewPost, map[string]string{})
	h.Broadcast(context.Background(), msg)

	if len(healthy.received()) != 1 {
		t.Error("healthy subscriber missed the broadcast")
	}
	if h.Count() != 1 {
		t.Errorf("Count = %d, want 1 after pruning", h.Count())
	}

	// The pruned subscriber sees no further messages.
	h.Broadcast(context.Background(), msg)
	if len(healthy.received()) != 2 {
		t.Error("healthy subscriber missed the second broadcast")
	}
}

func TestUnsubscribe(t *testing.T) {
	h := New()
	s := &fakeSubscriber{}
	h.Subscribe(s)
	if h.Count() != 1 {
		t.Fatalf("Count = %d, want 1", h.Count())
	}
	h.Unsubscribe(s)
	h.Unsubscribe(s) // absent is a no-op
	if h.Count() != 0 {
		t.Errorf("Count = %d, want 0", h.Count())
	}
}

type fakeMetricsStore struct {
	mu    sync.Mutex
	calls int
}

func (s *fakeMetricsStore) SentimentCounts(_ context.Context, _, _ time.Time, _ string) ([]model.LabelCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return []model.LabelCount{{Label: "positive", Count: 10}, {Label: "negative", Count: 5}}, nil
}

func (s *fakeMetricsStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestMetricsFeederSkipsWithoutSubscribers(t *testing.T) {
	h := New()
	st := &fakeMetricsStore{}
	f := NewMetricsFeeder(h, st)
	f.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	f.Run(ctx)

	if st.callCount() != 0 {
		t.Errorf("store queried %d times with zero subscribers", st.callCount())
	}
}

func TestMetricsFeederBroadcasts(t *testing.T) {
	h := New()
	sub := &fakeSubscriber{}
	h.Subscribe(sub)
	st := &fakeMetricsStore{}
	f := NewMetricsFeeder(h, st)
	f.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	f.Run(ctx)

	msgs := sub.received()
	if len(msgs) == 0 {
		t.Fatal("no metrics broadcasts")
	}
	if msgs[0].Type != TypeMetricsUpdate {
		t.Errorf("Type = %q", msgs[0].Type)
	}
	if !strings.Contains(string(msgs[0].Data), `"last_minute":15`) {
		t.Errorf("Data = %s", msgs[0].Data)
	}
}

type fakeWatchStore struct {
	mu    sync.Mutex
	posts []*model.Post
	calls int
}

func (s *fakeWatchStore) PostsSince(_ context.Context, _ time.Time) ([]*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.posts, nil
}

func (s *fakeWatchStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestPostWatcherSkipsWithoutSubscribers(t *testing.T) {
	h := New()
	st := &fakeWatchStore{}
	w := NewPostWatcher(h, st)
	w.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	if st.callCount() != 0 {
		t.Errorf("store queried %d times with zero subscribers", st.callCount())
	}
}

func TestPostWatcherBroadcastsPreview(t *testing.T) {
	h := New()
	sub := &fakeSubscriber{}
	h.Subscribe(sub)

	long := strings.Repeat("x", 300)
	st := &fakeWatchStore{posts: []*model.Post{{
		PostID:         "post_1",
		Source:         "reddit",
		Author:         "tech_guru",
		Content:        long,
		SentimentLabel: "positive",
		CreatedAt:      time.Now().UTC(),
	}}}
	w := NewPostWatcher(h, st)
	w.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	msgs := sub.received()
	if len(msgs) == 0 {
		t.Fatal("no post broadcasts")
	}
	if msgs[0].Type != TypeNewPost {
		t.Errorf("Type = %q", msgs[0].Type)
	}
	if strings.Contains(string(msgs[0].Data), long) {
		t.Error("content not truncated to preview")
	}
	if !strings.Contains(string(msgs[0].Data), strings.Repeat("x", 100)) {
		t.Errorf("preview missing: %s", msgs[0].Data)
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short"); got != "short" {
		t.Errorf("preview = %q", got)
	}
	if got := preview(strings.Repeat("a", 150)); len(got) != 100 {
		t.Errorf("len(preview) = %d, want 100", len(got))
	}
}

func TestAlertMessage(t *testing.T) {
	msg, err := AlertMessage(&model.Alert{
		AlertType:   model.AlertTypeHighNegativeRatio,
		ActualValue: 5.0,
	})
	if err != nil {
		t.Fatalf("AlertMessage: %v", err)
	}
	if msg.Type != TypeAlert {
		t.Errorf("Type = %q", msg.Type)
	}
	if !strings.Contains(string(msg.Data), "high_negative_ratio") {
		t.Errorf("Data = %s", msg.Data)
	}
}
