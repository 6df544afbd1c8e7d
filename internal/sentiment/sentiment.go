// Package sentiment labels the context around an entity mention as
// positive, negative, or neutral.
package sentiment

import (
	"context"
	"strings"

	"github.com/regwatch/regcrawl/internal/domain"
	"github.com/regwatch/regcrawl/internal/logger"
	"github.com/regwatch/regcrawl/internal/oracle"
)

// DefaultWindow is the generic context window, in characters, on each side
// of an entity span. Callers pairing sentiment with identifier linking use a
// wider window.
const DefaultWindow = 300

// Asymmetric confidence thresholds: the system exists to surface adverse
// findings, so the classifier is biased toward flagging negative sentiment.
const (
	negativeThreshold = 0.6
	positiveThreshold = 0.7
)

const negativeLabel = "NEGATIVE"
const positiveLabel = "POSITIVE"

// negativeKeywords are regulatory terms that generic sentiment models
// under-detect. Any of them appearing in the context short-circuits to
// Negative without consulting the model.
var negativeKeywords = []string{
	"fraud", "penalty", "violation", "illegal", "misleading",
	"contravention", "breach", "improper", "manipulation",
	"non-compliance", "fine", "cease and desist", "restrain",
	"suspend", "debar", "disgorgement", "ban", "prohibited",
	"unprofessional", "unfair", "warning", "reprimand", "sanction",
}

// Analyzer scores a text snippet. Implemented by oracle.SentimentClient.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (oracle.Sentiment, error)
}

// Tagger classifies the context around entity mentions.
type Tagger struct {
	analyzer Analyzer
	log      logger.Interface
}

// NewTagger creates a tagger backed by the given analyzer.
func NewTagger(analyzer Analyzer, log logger.Interface) *Tagger {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Tagger{analyzer: analyzer, log: log}
}

// ContextWindow returns the text around a span, clamped to the buffer
// bounds.
func ContextWindow(text string, span domain.TextSpan, window int) string {
	start := span.Start - window
	if start < 0 {
		start = 0
	}
	end := span.End + window
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		return ""
	}
	return text[start:end]
}

// Tag classifies the context around an entity. A non-positive window selects
// the default.
func (t *Tagger) Tag(ctx context.Context, text string, entity domain.Entity, window int) domain.Sentiment {
	if window <= 0 {
		window = DefaultWindow
	}
	return t.TagContext(ctx, ContextWindow(text, entity.Span, window))
}

// TagContext classifies an already-extracted context snippet. The keyword
// override runs first; otherwise the model's label and confidence are mapped
// to the three-way output. A model failure degrades to Neutral rather than
// surfacing an error.
func (t *Tagger) TagContext(ctx context.Context, snippet string) domain.Sentiment {
	lower := strings.ToLower(snippet)
	for _, keyword := range negativeKeywords {
		if strings.Contains(lower, keyword) {
			return domain.SentimentNegative
		}
	}

	result, err := t.analyzer.Analyze(ctx, snippet)
	if err != nil {
		t.log.Warn("sentiment model failed, defaulting to neutral", "error", err)
		return domain.SentimentNeutral
	}

	switch {
	case result.Label == negativeLabel && result.Score > negativeThreshold:
		return domain.SentimentNegative
	case result.Label == positiveLabel && result.Score > positiveThreshold:
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}
