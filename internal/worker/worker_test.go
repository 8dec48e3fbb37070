package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streamglass/pulse/internal/model"
	"github.com/streamglass/pulse/internal/oracle"
	"github.com/streamglass/pulse/internal/stream"
)

type fakeDelivery struct {
	id    string
	data  []byte
	acked bool
}

func (d *fakeDelivery) ID() string   { return d.id }
func (d *fakeDelivery) Data() []byte { return d.data }
func (d *fakeDelivery) Ack() error   { d.acked = true; return nil }

type fakeAnalyzer struct {
	sentimentErr error
	emotionErr   error
	calls        int
}

func (a *fakeAnalyzer) Sentiment(_ context.Context, _ string) (oracle.Classification, error) {
	a.calls++
	if a.sentimentErr != nil {
		return oracle.Classification{}, a.sentimentErr
	}
	return oracle.Classification{Label: "positive", Confidence: 0.95, ModelName: "test-model"}, nil
}

func (a *fakeAnalyzer) Emotion(_ context.Context, _ string) (oracle.Classification, error) {
	if a.emotionErr != nil {
		return oracle.Classification{}, a.emotionErr
	}
	return oracle.Classification{Label: "joy", Confidence: 0.8, ModelName: "test-model"}, nil
}

// fakeStore records upserts keyed by post_id, like the real table.
type fakeStore struct {
	posts     map[string]*model.Post
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{posts: make(map[string]*model.Post)}
}

func (s *fakeStore) UpsertPost(_ context.Context, p *model.Post) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.posts[p.PostID] = p
	return nil
}

func (s *fakeStore) ListPosts(context.Context, model.PostFilter) ([]*model.Post, int, error) {
	return nil, 0, nil
}

func (s *fakeStore) PostsSince(context.Context, time.Time) ([]*model.Post, error) {
	return nil, nil
}

func (s *fakeStore) SentimentBuckets(context.Context, string, time.Time, time.Time, string) ([]model.BucketRow, error) {
	return nil, nil
}

func (s *fakeStore) SentimentCounts(context.Context, time.Time, time.Time, string) ([]model.LabelCount, error) {
	return nil, nil
}

func (s *fakeStore) TopEmotions(context.Context, time.Time, time.Time, string, int) ([]model.LabelCount, error) {
	return nil, nil
}

func (s *fakeStore) InsertAlert(context.Context, *model.Alert) error { return nil }

func (s *fakeStore) ListAlerts(context.Context, int) ([]*model.Alert, error) { return nil, nil }

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) Close() error { return nil }

func rawPayload(t *testing.T, id string) []byte {
	t.Helper()
	data, err := json.Marshal(&model.RawPost{
		PostID:    id,
		Source:    "reddit",
		Content:   "This is amazing, absolutely love it",
		Author:    "tech_guru",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestProcessSuccess(t *testing.T) {
	st := newFakeStore()
	w := New(nil, &fakeAnalyzer{}, st, 10)
	d := &fakeDelivery{id: "1", data: rawPayload(t, "post_1")}

	if err := w.Process(context.Background(), d); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !d.acked {
		t.Error("successful delivery not acked")
	}

	p, ok := st.posts["post_1"]
	if !ok {
		t.Fatal("post not persisted")
	}
	if p.SentimentLabel != "positive" || p.SentimentConfidence != 0.95 {
		t.Errorf("sentiment = %s/%v", p.SentimentLabel, p.SentimentConfidence)
	}
	if p.Emotion == nil || *p.Emotion != "joy" {
		t.Errorf("emotion = %v", p.Emotion)
	}
	if p.ModelName != "test-model" {
		t.Errorf("model = %q", p.ModelName)
	}
	if p.IngestedAt.IsZero() {
		t.Error("IngestedAt not set")
	}
}

func TestProcessMalformedNotAcked(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"invalid json", []byte(`{not json`)},
		{"missing post_id", []byte(`{"source":"reddit","content":"x","author":"a","created_at":"2026-08-29T10:00:00Z"}`)},
		{"missing content", []byte(`{"post_id":"p1","source":"reddit","author":"a","created_at":"2026-08-29T10:00:00Z"}`)},
		{"missing author", []byte(`{"post_id":"p1","source":"reddit","content":"x","created_at":"2026-08-29T10:00:00Z"}`)},
		{"bad created_at", []byte(`{"post_id":"p1","source":"reddit","content":"x","author":"a","created_at":"yesterday"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeStore()
			analyzer := &fakeAnalyzer{}
			w := New(nil, analyzer, st, 10)
			d := &fakeDelivery{id: "1", data: tt.data}

			if err := w.Process(context.Background(), d); err == nil {
				t.Fatal("expected error")
			}
			if d.acked {
				t.Error("malformed delivery must not be acked")
			}
			if analyzer.calls != 0 {
				t.Error("malformed delivery must not reach the oracle")
			}
			if len(st.posts) != 0 {
				t.Error("malformed delivery must not be persisted")
			}
		})
	}
}

func TestProcessAnalyzerFailureNotAcked(t *testing.T) {
	st := newFakeStore()
	w := New(nil, &fakeAnalyzer{sentimentErr: errors.New("oracle down")}, st, 10)
	d := &fakeDelivery{id: "1", data: rawPayload(t, "post_1")}

	if err := w.Process(context.Background(), d); err == nil {
		t.Fatal("expected error")
	}
	if d.acked {
		t.Error("failed delivery must not be acked")
	}
	if len(st.posts) != 0 {
		t.Error("no partial write on enrichment failure")
	}
}

func TestProcessEmotionFailureNotAcked(t *testing.T) {
	st := newFakeStore()
	w := New(nil, &fakeAnalyzer{emotionErr: errors.New("oracle down")}, st, 10)
	d := &fakeDelivery{id: "1", data: rawPayload(t, "post_1")}

	if err := w.Process(context.Background(), d); err == nil {
		t.Fatal("expected error")
	}
	if d.acked || len(st.posts) != 0 {
		t.Error("emotion failure must leave the delivery pending and unwritten")
	}
}

func TestProcessStoreFailureNotAcked(t *testing.T) {
	st := newFakeStore()
	st.upsertErr = errors.New("connection reset")
	w := New(nil, &fakeAnalyzer{}, st, 10)
	d := &fakeDelivery{id: "1", data: rawPayload(t, "post_1")}

	if err := w.Process(context.Background(), d); err == nil {
		t.Fatal("expected error")
	}
	if d.acked {
		t.Error("delivery must not be acked when the commit fails")
	}
}

func TestProcessDuplicateDelivery(t *testing.T) {
	// Redelivery of an already-committed entry overwrites the same row.
	st := newFakeStore()
	w := New(nil, &fakeAnalyzer{}, st, 10)

	for _, id := range []string{"1", "1"} {
		d := &fakeDelivery{id: id, data: rawPayload(t, "post_1")}
		if err := w.Process(context.Background(), d); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if len(st.posts) != 1 {
		t.Errorf("got %d rows, want 1", len(st.posts))
	}
}

// fakeQueue serves one prepared batch, then blocks until ctx cancellation
// via zero-length batches.
type fakeQueue struct {
	batches [][]stream.Delivery
}

func (q *fakeQueue) Fetch(_ int, _ time.Duration) ([]stream.Delivery, error) {
	if len(q.batches) == 0 {
		return nil, nil
	}
	b := q.batches[0]
	q.batches = q.batches[1:]
	return b, nil
}

func TestRunBatchFailureIsolation(t *testing.T) {
	st := newFakeStore()
	bad := &fakeDelivery{id: "1", data: []byte(`{broken`)}
	good := &fakeDelivery{id: "2", data: rawPayload(t, "post_2")}
	q := &fakeQueue{batches: [][]stream.Delivery{{bad, good}}}

	w := New(q, &fakeAnalyzer{}, st, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if bad.acked {
		t.Error("malformed delivery acked")
	}
	if !good.acked {
		t.Error("good delivery in the same batch not processed")
	}
	if _, ok := st.posts["post_2"]; !ok {
		t.Error("good delivery not persisted")
	}
}

func TestWorkerName(t *testing.T) {
	w := New(nil, &fakeAnalyzer{}, newFakeStore(), 0)
	if w.Name() == "" || w.Name()[:7] != "worker_" {
		t.Errorf("Name = %q", w.Name())
	}
	if w.batch != 10 {
		t.Errorf("batch = %d, want default 10", w.batch)
	}
}
