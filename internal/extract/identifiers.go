// Package extract pulls entities and structured identifiers out of raw
// document text.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/regwatch/regcrawl/internal/domain"
)

// Identifier patterns come in two families per kind: the bare format of the
// identifier itself, and labelled-prefix forms ("PAN: <value>") where the
// value is the first capture group. Enforcement orders use both freely.
var taxIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b[A-Z]{5}[0-9]{4}[A-Z]\b`),
	regexp.MustCompile(`(?i)PAN[:\s]+([A-Z]{5}[0-9]{4}[A-Z])`),
	regexp.MustCompile(`(?i)PAN[:\s]*No[.\s]*[:\s]*([A-Z]{5}[0-9]{4}[A-Z])`),
	regexp.MustCompile(`(?i)Permanent[:\s]+Account[:\s]+Number[:\s]+([A-Z]{5}[0-9]{4}[A-Z])`),
}

var registrationIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b[UL][0-9]{5}[A-Z]{2}[0-9]{4}[A-Z]{3}[0-9]{6}\b`),
	regexp.MustCompile(`(?i)CIN[:\s]+([UL][0-9]{5}[A-Z]{2}[0-9]{4}[A-Z]{3}[0-9]{6})`),
	regexp.MustCompile(`(?i)CIN[:\s]*No[.\s]*[:\s]*([UL][0-9]{5}[A-Z]{2}[0-9]{4}[A-Z]{3}[0-9]{6})`),
	regexp.MustCompile(`(?i)Corporate[:\s]+Identification[:\s]+Number[:\s]+([UL][0-9]{5}[A-Z]{2}[0-9]{4}[A-Z]{3}[0-9]{6})`),
}

func patternsFor(kind domain.IdentifierKind) []*regexp.Regexp {
	switch kind {
	case domain.IdentifierTaxID:
		return taxIDPatterns
	case domain.IdentifierRegistrationID:
		return registrationIDPatterns
	default:
		return nil
	}
}

// NormalizeValue uppercases an identifier value and strips all whitespace.
// Values whose normalised length differs from the kind's canonical length
// are rejected as partial or OCR-garbled matches.
func NormalizeValue(value string) string {
	return strings.ToUpper(strings.Join(strings.Fields(value), ""))
}

// Identifiers extracts all identifiers of the given kind from text. Results
// are deduplicated by normalised value within the document (set semantics)
// and returned in document order, keeping the earliest occurrence of each
// value so downstream tie-breaking is deterministic.
func Identifiers(text string, kind domain.IdentifierKind) []domain.IdentifierMatch {
	var candidates []domain.IdentifierMatch

	for _, pattern := range patternsFor(kind) {
		for _, idx := range pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := idx[0], idx[1]
			// Labelled patterns capture the value in group 1.
			if len(idx) > 3 && idx[2] >= 0 {
				start, end = idx[2], idx[3]
			}

			value := NormalizeValue(text[start:end])
			if len(value) != kind.CanonicalLength() {
				continue
			}

			candidates = append(candidates, domain.IdentifierMatch{
				Value: value,
				Kind:  kind,
				Span:  domain.TextSpan{Start: start, End: end},
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Span.Start < candidates[j].Span.Start
	})

	seen := make(map[string]struct{}, len(candidates))
	matches := candidates[:0]
	for _, c := range candidates {
		if _, dup := seen[c.Value]; dup {
			continue
		}
		seen[c.Value] = struct{}{}
		matches = append(matches, c)
	}

	return matches
}
