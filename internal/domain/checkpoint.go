package domain

import "time"

// Checkpoint is the page cursor for a crawl. It is a singleton document keyed
// by a fixed type tag, created on the first run, advanced monotonically as
// pages are scanned, and reset only by an explicit operator action.
type Checkpoint struct {
	LastPage        int    `bson:"last_page"                   json:"last_page"`
	LastDocumentURL string `bson:"last_document_url,omitempty" json:"last_document_url,omitempty"`
}

// DocumentState is the processing state of a single document. A status
// record is first written at dispatch, so a discovered-but-undispatched
// document has no record at all rather than a "pending" state.
type DocumentState string

const (
	// DocumentProcessing means a run is (or was, before a crash) working on it.
	DocumentProcessing DocumentState = "processing"
	// DocumentCompleted means the document was fully processed. Only this
	// state is treated as "already done" by the skip check.
	DocumentCompleted DocumentState = "completed"
	// DocumentFailed means processing failed; the error text is recorded.
	DocumentFailed DocumentState = "failed"
)

// DocumentStatus tracks per-document progress, keyed by document URL.
// Transitions are processing -> {completed | failed}. A stale
// "processing" record left by a crashed run is simply overwritten when the
// document is re-dispatched.
type DocumentStatus struct {
	URL         string        `bson:"document_url"           json:"document_url"`
	State       DocumentState `bson:"status"                 json:"status"`
	EntityCount int           `bson:"entity_count,omitempty" json:"entity_count,omitempty"`
	Error       string        `bson:"error,omitempty"        json:"error,omitempty"`
	StartedAt   time.Time     `bson:"started_at,omitempty"   json:"started_at,omitempty"`
	CompletedAt time.Time     `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	FailedAt    time.Time     `bson:"failed_at,omitempty"    json:"failed_at,omitempty"`
}
