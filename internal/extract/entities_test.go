package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/regwatch/regcrawl/internal/domain"
	"github.com/regwatch/regcrawl/internal/extract"
	"github.com/regwatch/regcrawl/internal/logger"
	"github.com/regwatch/regcrawl/internal/oracle"
)

// fakeNER implements extract.NERClient for testing.
type fakeNER struct {
	spans    []oracle.Span
	err      error
	lastText string
}

func (f *fakeNER) Recognize(_ context.Context, text string) ([]oracle.Span, error) {
	f.lastText = text
	return f.spans, f.err
}

func TestEntityExtractor_KeepsOnlyPersonAndOrg(t *testing.T) {
	t.Parallel()

	ner := &fakeNER{spans: []oracle.Span{
		{Text: "John Doe", Label: "PERSON", StartChar: 0, EndChar: 8},
		{Text: "Acme Ltd", Label: "ORG", StartChar: 20, EndChar: 28},
		{Text: "Mumbai", Label: "GPE", StartChar: 40, EndChar: 46},
		{Text: "2021", Label: "DATE", StartChar: 50, EndChar: 54},
	}}

	extractor := extract.NewEntityExtractor(ner, logger.NewNoOp())
	entities, err := extractor.Extract(context.Background(), "John Doe works at Acme Ltd in Mumbai since 2021")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d: %+v", len(entities), entities)
	}
	if entities[0].Kind != domain.EntityPerson || entities[0].Text != "John Doe" {
		t.Fatalf("unexpected first entity %+v", entities[0])
	}
	if entities[1].Kind != domain.EntityOrganization || entities[1].Text != "Acme Ltd" {
		t.Fatalf("unexpected second entity %+v", entities[1])
	}
	if entities[0].Span != (domain.TextSpan{Start: 0, End: 8}) {
		t.Fatalf("span not preserved: %+v", entities[0].Span)
	}
}

func TestEntityExtractor_TruncatesLongInput(t *testing.T) {
	t.Parallel()

	ner := &fakeNER{}
	extractor := extract.NewEntityExtractor(ner, logger.NewNoOp())

	long := strings.Repeat("x", extract.MaxNERInput+500)
	if _, err := extractor.Extract(context.Background(), long); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ner.lastText) != extract.MaxNERInput {
		t.Fatalf("expected input truncated to %d, got %d", extract.MaxNERInput, len(ner.lastText))
	}
}

func TestEntityExtractor_ShortInputUnchanged(t *testing.T) {
	t.Parallel()

	ner := &fakeNER{}
	extractor := extract.NewEntityExtractor(ner, logger.NewNoOp())

	if _, err := extractor.Extract(context.Background(), "short text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ner.lastText != "short text" {
		t.Fatalf("short input should pass through unchanged, got %q", ner.lastText)
	}
}

func TestEntityExtractor_ModelFailurePropagates(t *testing.T) {
	t.Parallel()

	modelErr := errors.New("model unavailable")
	extractor := extract.NewEntityExtractor(&fakeNER{err: modelErr}, logger.NewNoOp())

	_, err := extractor.Extract(context.Background(), "some text")
	if !errors.Is(err, modelErr) {
		t.Fatalf("expected model error to propagate, got %v", err)
	}
}
