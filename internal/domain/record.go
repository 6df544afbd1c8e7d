package domain

import "time"

// EntityRecord is the persisted result of processing one entity in one
// document. Records are created once at ingestion time and never mutated;
// they are removed only by an explicit operator reset. Duplicate records for
// the same (document, entity) are tolerated if a document is reprocessed:
// idempotence comes from document-level status gating, not record dedup.
type EntityRecord struct {
	EntityName        string     `bson:"entity_name"         json:"entity_name"`
	EntityType        EntityKind `bson:"entity_type"         json:"entity_type"`
	Sentiment         Sentiment  `bson:"sentiment"           json:"sentiment"`
	SourceDocumentURL string     `bson:"source_document_url" json:"source_document_url"`
	DocumentTitle     string     `bson:"document_title"      json:"document_title"`
	DocumentDate      string     `bson:"document_date"       json:"document_date"`
	TaxID             string     `bson:"tax_id,omitempty"          json:"tax_id,omitempty"`
	RegistrationID    string     `bson:"registration_id,omitempty" json:"registration_id,omitempty"`
	Address           string     `bson:"address,omitempty"         json:"address,omitempty"`
	RunID             string     `bson:"run_id,omitempty"          json:"run_id,omitempty"`
	CreatedAt         time.Time  `bson:"created_at"          json:"created_at"`
}
