package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/streamglass/pulse/internal/model"
)

const (
	defaultPostLimit  = 50
	maxPostLimit      = 200
	defaultAlertLimit = 20
)

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	code := http.StatusOK

	if err := s.store.Ping(r.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	} else {
		status["database"] = "ok"
		now := time.Now().UTC()
		if counts, err := s.store.SentimentCounts(r.Context(), now.Add(-time.Hour), now, ""); err == nil {
			total := 0
			for _, lc := range counts {
				total += lc.Count
			}
			status["posts_last_hour"] = total
		}
	}
	if s.broker != nil {
		if s.broker.Connected() {
			status["stream"] = "ok"
		} else {
			status["status"] = "degraded"
			status["stream"] = "disconnected"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

// handleListPosts handles GET /api/posts.
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.PostFilter{
		Source: q.Get("source"),
		Limit:  defaultPostLimit,
	}

	if v := q.Get("sentiment"); v != "" {
		if !model.ValidSentiment(v) {
			writeError(w, http.StatusBadRequest, "sentiment must be positive, negative or neutral")
			return
		}
		filter.Sentiment = v
	}
	if v := q.Get("start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC 3339")
			return
		}
		filter.Start = &ts
	}
	if v := q.Get("end"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC 3339")
			return
		}
		filter.End = &ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxPostLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	posts, total, err := s.store.ListPosts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts": posts,
		"total": total,
	})
}

// handleAggregate handles GET /api/sentiment/aggregate.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := q.Get("period")
	if period == "" {
		period = "hour"
	}

	var start, end time.Time
	if v := q.Get("start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC 3339")
			return
		}
		start = ts
	}
	if v := q.Get("end"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC 3339")
			return
		}
		end = ts
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		writeError(w, http.StatusBadRequest, "start must be before end")
		return
	}

	result, err := s.engine.Aggregate(r.Context(), period, start, end, q.Get("source"))
	if err != nil {
		if strings.Contains(err.Error(), "invalid period") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to aggregate sentiment")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDistribution handles GET /api/sentiment/distribution.
func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hours := 24
	if v := q.Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}

	dist, err := s.engine.Distribution(r.Context(), hours, q.Get("source"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute distribution")
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

// handleListAlerts handles GET /api/alerts.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	alerts, err := s.store.ListAlerts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*model.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
