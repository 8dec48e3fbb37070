package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	remoteTimeout  = 30 * time.Second
	remoteAttempts = 3

	defaultConfidence = 0.85
)

// Remote classifies text through an OpenAI-compatible chat-completions
// endpoint. Transport and HTTP-status failures are retried with exponential
// backoff; malformed or invalid model output is not retried — invalid labels
// are coerced to neutral instead of propagated.
type Remote struct {
	url     string
	apiKey  string
	model   string
	client  *http.Client
	backoff time.Duration // initial retry backoff, doubled per attempt
}

var _ Analyzer = (*Remote)(nil)

// NewRemote creates a remote analyzer for the given endpoint and model.
func NewRemote(url, apiKey, model string) *Remote {
	return &Remote{
		url:     url,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: remoteTimeout},
		backoff: 2 * time.Second,
	}
}

func (r *Remote) Sentiment(ctx context.Context, text string) (Classification, error) {
	if text == "" {
		return Classification{Label: "neutral", Confidence: 0, ModelName: "none"}, nil
	}

	parsed, err := r.classify(ctx, sentimentPrompt(truncate(text)))
	if err != nil {
		return Classification{}, err
	}

	label := strings.ToLower(parsed.Label)
	if !validSentiment(label) {
		slog.Warn("invalid sentiment label from oracle, defaulting to neutral", "label", label)
		label = "neutral"
	}
	return Classification{Label: label, Confidence: parsed.confidence(), ModelName: r.model}, nil
}

func (r *Remote) Emotion(ctx context.Context, text string) (Classification, error) {
	if len(text) < minEmotionLen {
		return shortTextEmotion(), nil
	}

	parsed, err := r.classify(ctx, emotionPrompt(truncate(text)))
	if err != nil {
		return Classification{}, err
	}

	label := strings.ToLower(parsed.Emotion)
	if !validEmotion(label) {
		slog.Warn("invalid emotion label from oracle, defaulting to neutral", "label", label)
		label = "neutral"
	}
	return Classification{Label: label, Confidence: parsed.confidence(), ModelName: r.model}, nil
}

// classifyResult is the JSON object the prompts instruct the model to emit.
type classifyResult struct {
	Label      string   `json:"label"`
	Emotion    string   `json:"emotion"`
	Confidence *float64 `json:"confidence"`
}

func (c classifyResult) confidence() float64 {
	if c.Confidence == nil {
		return defaultConfidence
	}
	return *c.Confidence
}

// classify sends the prompt and parses the model's JSON reply. Transient
// transport and status errors are retried; parse failures are returned
// immediately.
func (r *Remote) classify(ctx context.Context, prompt string) (classifyResult, error) {
	var lastErr error
	backoff := r.backoff

	for attempt := 1; attempt <= remoteAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return classifyResult{}, ctx.Err()
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
		}

		content, err := r.complete(ctx, prompt)
		if err != nil {
			lastErr = err
			slog.Warn("oracle request failed", "attempt", attempt, "err", err)
			continue
		}

		var result classifyResult
		if err := json.Unmarshal([]byte(stripFences(content)), &result); err != nil {
			// Malformed model output is a validation failure, not a
			// transient one: do not retry.
			return classifyResult{}, fmt.Errorf("parse oracle response %q: %w", content, err)
		}
		return result, nil
	}
	return classifyResult{}, fmt.Errorf("oracle unavailable after %d attempts: %w", remoteAttempts, lastErr)
}

// complete performs one chat-completions round trip and returns the reply text.
func (r *Remote) complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": r.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a precise text analysis assistant. Respond with only valid JSON objects as requested."},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
		"max_tokens":  100,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var reply struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decode oracle reply: %w", err)
	}
	if len(reply.Choices) == 0 {
		return "", fmt.Errorf("oracle reply has no choices")
	}
	return strings.TrimSpace(reply.Choices[0].Message.Content), nil
}

// stripFences removes markdown code fences around a JSON object and trims
// any prose surrounding the outermost braces.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			return content[start : end+1]
		}
	}
	return content
}

func sentimentPrompt(text string) string {
	return `Analyze the sentiment of the following text and respond with ONLY a valid JSON object in this exact format:
{"label": "positive|negative|neutral", "confidence": 0.85}

Do not include any explanations, markdown formatting, or additional text. Only return the JSON object.

Text to analyze:
` + text
}

func emotionPrompt(text string) string {
	return `Identify the primary emotion in the following text and respond with ONLY a valid JSON object in this exact format:
{"emotion": "joy|sadness|anger|fear|surprise|disgust|neutral", "confidence": 0.85}

Do not include any explanations, markdown formatting, or additional text. Only return the JSON object.

Text to analyze:
` + text
}
