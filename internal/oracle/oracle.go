// Package oracle provides the text-enrichment interface consumed by the
// stream worker: text in, label plus confidence out. Implementations may be
// a remote API call or a local scorer; the worker does not care which.
package oracle

import (
	"context"

	"github.com/streamglass/pulse/internal/model"
)

// maxTextLen is the longest text submitted for classification. Longer
// inputs are truncated before submission.
const maxTextLen = 2000

// minEmotionLen is the shortest text worth running emotion classification
// on. Shorter inputs get a rule-based neutral result.
const minEmotionLen = 10

// validEmotions lists the emotion labels an implementation may return.
var validEmotions = []string{"joy", "sadness", "anger", "fear", "surprise", "disgust", "neutral"}

// Classification is the outcome of a single sentiment or emotion call.
type Classification struct {
	Label      string
	Confidence float64
	ModelName  string
}

// Analyzer classifies text. Both methods block on I/O for remote
// implementations and must honor ctx cancellation.
type Analyzer interface {
	// Sentiment returns one of positive/negative/neutral with confidence in [0,1].
	Sentiment(ctx context.Context, text string) (Classification, error)

	// Emotion returns the dominant emotion label with confidence in [0,1].
	Emotion(ctx context.Context, text string) (Classification, error)
}

// truncate caps text at maxTextLen.
func truncate(text string) string {
	if len(text) > maxTextLen {
		return text[:maxTextLen]
	}
	return text
}

// shortTextEmotion is the rule-based result for text below minEmotionLen.
func shortTextEmotion() Classification {
	return Classification{Label: "neutral", Confidence: 1.0, ModelName: "rule-based"}
}

func validEmotion(label string) bool {
	for _, e := range validEmotions {
		if e == label {
			return true
		}
	}
	return false
}

func validSentiment(label string) bool {
	return model.ValidSentiment(label)
}
