package oracle

import (
	"context"
	"strings"
)

// Lexicon is a word-list analyzer for environments without a remote oracle.
// It scores tokens against small positive/negative vocabularies and picks
// the label with the most hits, neutral when tied or unmatched.
type Lexicon struct{}

var _ Analyzer = (*Lexicon)(nil)

// NewLexicon creates a lexicon analyzer.
func NewLexicon() *Lexicon {
	return &Lexicon{}
}

var positiveWords = map[string]bool{
	"love": true, "amazing": true, "great": true, "excellent": true,
	"exceeded": true, "fantastic": true, "wonderful": true, "best": true,
	"happy": true, "perfect": true, "recommend": true, "impressed": true,
}

var negativeWords = map[string]bool{
	"disappointed": true, "terrible": true, "awful": true, "worst": true,
	"hate": true, "broken": true, "useless": true, "horrible": true,
	"bad": true, "angry": true, "refund": true, "waste": true,
}

var emotionWords = map[string]string{
	"love": "joy", "amazing": "joy", "happy": "joy", "excited": "joy",
	"angry": "anger", "furious": "anger", "hate": "anger",
	"disappointed": "sadness", "sad": "sadness", "terrible": "sadness",
	"scared": "fear", "worried": "fear",
	"shocked": "surprise", "unexpected": "surprise",
}

func (l *Lexicon) Sentiment(_ context.Context, text string) (Classification, error) {
	if text == "" {
		return Classification{Label: "neutral", Confidence: 0, ModelName: "none"}, nil
	}

	var pos, neg int
	for _, tok := range tokenize(truncate(text)) {
		if positiveWords[tok] {
			pos++
		}
		if negativeWords[tok] {
			neg++
		}
	}

	// "Would not recommend" style negation flips the only positive hit.
	if pos == 1 && strings.Contains(strings.ToLower(text), "not recommend") {
		pos, neg = 0, neg+1
	}

	switch {
	case pos > neg:
		return Classification{Label: "positive", Confidence: hitConfidence(pos), ModelName: "lexicon"}, nil
	case neg > pos:
		return Classification{Label: "negative", Confidence: hitConfidence(neg), ModelName: "lexicon"}, nil
	default:
		return Classification{Label: "neutral", Confidence: 0.7, ModelName: "lexicon"}, nil
	}
}

func (l *Lexicon) Emotion(_ context.Context, text string) (Classification, error) {
	if len(text) < minEmotionLen {
		return shortTextEmotion(), nil
	}

	counts := make(map[string]int)
	for _, tok := range tokenize(truncate(text)) {
		if emo, ok := emotionWords[tok]; ok {
			counts[emo]++
		}
	}

	best, bestCount := "neutral", 0
	for emo, n := range counts {
		if n > bestCount {
			best, bestCount = emo, n
		}
	}
	if bestCount == 0 {
		return Classification{Label: "neutral", Confidence: 0.7, ModelName: "lexicon"}, nil
	}
	return Classification{Label: best, Confidence: hitConfidence(bestCount), ModelName: "lexicon"}, nil
}

// hitConfidence maps a hit count onto [0.6, 0.95].
func hitConfidence(hits int) float64 {
	c := 0.6 + 0.1*float64(hits)
	if c > 0.95 {
		c = 0.95
	}
	return c
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}
