package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// chatReply wraps content in a chat-completions response body.
func chatReply(content string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"content":%q}}]}`, content)
}

func newTestRemote(t *testing.T, handler http.HandlerFunc) *Remote {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r := NewRemote(srv.URL, "test-key", "test-model")
	r.backoff = time.Millisecond
	return r
}

func TestRemoteSentiment(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		if got := req.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, chatReply(`{"label": "positive", "confidence": 0.95}`))
	})

	got, err := r.Sentiment(context.Background(), "I absolutely love this")
	if err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
	if got.Label != "positive" || got.Confidence != 0.95 || got.ModelName != "test-model" {
		t.Errorf("Sentiment = %+v", got)
	}
}

func TestRemoteSentimentEmptyText(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("request made for empty text")
	})

	got, err := r.Sentiment(context.Background(), "")
	if err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
	if got.Label != "neutral" || got.Confidence != 0 {
		t.Errorf("Sentiment = %+v", got)
	}
}

func TestRemoteSentimentInvalidLabelDefaultsNeutral(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, chatReply(`{"label": "ecstatic", "confidence": 0.9}`))
	})

	got, err := r.Sentiment(context.Background(), "some text here")
	if err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
	if got.Label != "neutral" {
		t.Errorf("Label = %q, want neutral", got.Label)
	}
}

func TestRemoteSentimentMarkdownFences(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, chatReply("```json\n{\"label\": \"negative\", \"confidence\": 0.8}\n```"))
	})

	got, err := r.Sentiment(context.Background(), "terrible experience")
	if err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
	if got.Label != "negative" || got.Confidence != 0.8 {
		t.Errorf("Sentiment = %+v", got)
	}
}

func TestRemoteSentimentDefaultConfidence(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, chatReply(`{"label": "neutral"}`))
	})

	got, err := r.Sentiment(context.Background(), "just tried it today")
	if err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
	if got.Confidence != defaultConfidence {
		t.Errorf("Confidence = %v, want %v", got.Confidence, defaultConfidence)
	}
}

func TestRemoteRetriesOnServerError(t *testing.T) {
	var calls int
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, chatReply(`{"label": "positive", "confidence": 0.9}`))
	})

	got, err := r.Sentiment(context.Background(), "love it so much")
	if err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if got.Label != "positive" {
		t.Errorf("Label = %q", got.Label)
	}
}

func TestRemoteNoRetryOnMalformedJSON(t *testing.T) {
	var calls int
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		fmt.Fprint(w, chatReply("this is not json at all"))
	})

	if _, err := r.Sentiment(context.Background(), "some text here"); err == nil {
		t.Fatal("expected parse error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (validation failures must not be retried)", calls)
	}
}

func TestRemoteGivesUpAfterAttempts(t *testing.T) {
	var calls int
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := r.Sentiment(context.Background(), "some text here"); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != remoteAttempts {
		t.Errorf("calls = %d, want %d", calls, remoteAttempts)
	}
}

func TestRemoteEmotionShortText(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("request made for short text")
	})

	got, err := r.Emotion(context.Background(), "ok")
	if err != nil {
		t.Fatalf("Emotion: %v", err)
	}
	if got.Label != "neutral" || got.Confidence != 1.0 || got.ModelName != "rule-based" {
		t.Errorf("Emotion = %+v", got)
	}
}

func TestRemoteEmotion(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, chatReply(`{"emotion": "joy", "confidence": 0.88}`))
	})

	got, err := r.Emotion(context.Background(), "this makes me so happy")
	if err != nil {
		t.Fatalf("Emotion: %v", err)
	}
	if got.Label != "joy" || got.Confidence != 0.88 {
		t.Errorf("Emotion = %+v", got)
	}
}

func TestRemoteTruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", maxTextLen+500)
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, chatReply(`{"label": "neutral", "confidence": 0.7}`))
	})

	if _, err := r.Sentiment(context.Background(), long); err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
}

func TestStripFences(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{`{"label":"positive"}`, `{"label":"positive"}`},
		{"```json\n{\"label\":\"positive\"}\n```", `{"label":"positive"}`},
		{"```\n{\"label\":\"positive\"}\n```", `{"label":"positive"}`},
		{`Sure! Here it is: {"label":"positive"} Hope that helps.`, `{"label":"positive"}`},
	} {
		if got := stripFences(tc.in); got != tc.want {
			t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
