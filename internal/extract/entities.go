package extract

import (
	"context"
	"fmt"

	"github.com/regwatch/regcrawl/internal/domain"
	"github.com/regwatch/regcrawl/internal/logger"
	"github.com/regwatch/regcrawl/internal/oracle"
)

// MaxNERInput bounds the text submitted to the NER model. Longer documents
// are truncated before recognition, which is lossy: entities beyond the
// cutoff are never seen. The bound keeps model latency and memory in check.
const MaxNERInput = 100000

// NERClient supplies named-entity spans for a text buffer.
type NERClient interface {
	Recognize(ctx context.Context, text string) ([]oracle.Span, error)
}

// nerLabelKinds maps model labels to the entity kinds we keep. Everything
// else the model recognises (dates, amounts, locations) is dropped.
var nerLabelKinds = map[string]domain.EntityKind{
	"PERSON": domain.EntityPerson,
	"ORG":    domain.EntityOrganization,
}

// EntityExtractor wraps the NER model and normalises its output into typed
// entity records with character-offset spans. It is a pure function of the
// input text and the model, so extraction is restartable.
type EntityExtractor struct {
	ner NERClient
	log logger.Interface
}

// NewEntityExtractor creates an entity extractor backed by the given model.
func NewEntityExtractor(ner NERClient, log logger.Interface) *EntityExtractor {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &EntityExtractor{ner: ner, log: log}
}

// Extract runs recognition over text and returns the person and organisation
// entities found. Spans are measured against the (possibly truncated) input.
// A model failure propagates as an error: there is no safe way to tell "no
// entities" apart from "model broken".
func (e *EntityExtractor) Extract(ctx context.Context, text string) ([]domain.Entity, error) {
	if len(text) > MaxNERInput {
		e.log.Warn("truncating text before recognition",
			"length", len(text), "max", MaxNERInput)
		text = text[:MaxNERInput]
	}

	spans, err := e.ner.Recognize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("recognize entities: %w", err)
	}

	var entities []domain.Entity
	for _, span := range spans {
		kind, keep := nerLabelKinds[span.Label]
		if !keep {
			continue
		}
		entities = append(entities, domain.Entity{
			Text: span.Text,
			Kind: kind,
			Span: domain.TextSpan{Start: span.StartChar, End: span.EndChar},
		})
	}

	return entities, nil
}
