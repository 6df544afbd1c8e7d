// Package domain provides the domain models shared across the application.
package domain

// EntityKind classifies a recognised entity.
type EntityKind string

const (
	// EntityPerson is an individual named in a document.
	EntityPerson EntityKind = "Person"
	// EntityOrganization is a company or other organisation named in a document.
	EntityOrganization EntityKind = "Organization"
)

// IdentifierKind classifies a structured identifier extracted from text.
type IdentifierKind string

const (
	// IdentifierTaxID is a 10-character tax identifier (PAN format).
	IdentifierTaxID IdentifierKind = "tax_id"
	// IdentifierRegistrationID is a 21-character corporate registration
	// number (CIN format).
	IdentifierRegistrationID IdentifierKind = "registration_id"
)

const (
	taxIDLength          = 10
	registrationIDLength = 21
)

// CanonicalLength returns the exact length a normalised identifier value of
// this kind must have. Matches with any other normalised length are rejected
// as partial or garbled.
func (k IdentifierKind) CanonicalLength() int {
	switch k {
	case IdentifierTaxID:
		return taxIDLength
	case IdentifierRegistrationID:
		return registrationIDLength
	default:
		return 0
	}
}

// Sentiment is the three-way sentiment label attached to an entity's context.
type Sentiment string

const (
	// SentimentPositive indicates favourable surrounding context.
	SentimentPositive Sentiment = "Positive"
	// SentimentNegative indicates adverse surrounding context.
	SentimentNegative Sentiment = "Negative"
	// SentimentNeutral is the fail-soft default.
	SentimentNeutral Sentiment = "Neutral"
)

// TextSpan is a half-open character-offset range into a specific text buffer.
// A valid span satisfies 0 <= Start <= End <= len(text).
type TextSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Center returns the midpoint of the span, used for proximity distances.
func (s TextSpan) Center() float64 {
	return float64(s.Start+s.End) / 2
}

// Valid reports whether the span lies within a buffer of the given length.
func (s TextSpan) Valid(textLen int) bool {
	return s.Start >= 0 && s.Start <= s.End && s.End <= textLen
}

// Entity is a person or organisation recognised in document text. It is
// immutable once produced and always refers to the buffer it was extracted
// from via Span.
type Entity struct {
	Text string     `json:"text"`
	Kind EntityKind `json:"kind"`
	Span TextSpan   `json:"span"`
}

// IdentifierMatch is a structured identifier located in the same text buffer
// as the entities it will be linked against. Values are deduplicated by
// normalised form within one document.
type IdentifierMatch struct {
	Value string         `json:"value"`
	Kind  IdentifierKind `json:"kind"`
	Span  TextSpan       `json:"span"`
}

// EntityIdentifierPair associates an entity with its nearest qualifying
// identifier. At most one pair exists per (entity, identifier kind); an
// identifier may be reused across entities. Distance is exposed so consumers
// can apply stricter cutoffs than the linker's own.
type EntityIdentifierPair struct {
	Entity     Entity          `json:"entity"`
	Identifier IdentifierMatch `json:"identifier"`
	Distance   float64         `json:"distance"`
}

// DocumentLink is a document discovered on a listing page.
type DocumentLink struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Date  string `json:"date"`
}
