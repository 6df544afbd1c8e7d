// Package checkpoint tracks crawl progress across two independent axes: a
// coarse page cursor and a per-document status record. Together they give
// at-least-once processing per document across restarts while skipping
// documents that already completed.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/regwatch/regcrawl/internal/domain"
	"github.com/regwatch/regcrawl/internal/logger"
	"github.com/regwatch/regcrawl/internal/storage"
)

// Store persists crawl progress. Implemented by storage.Store; each write
// must be atomic per document (a single-document upsert).
type Store interface {
	Checkpoint(ctx context.Context) (domain.Checkpoint, bool, error)
	SaveCheckpoint(ctx context.Context, page int, lastDocumentURL string) error
	DocumentStatus(ctx context.Context, url string) (domain.DocumentStatus, error)
	MarkProcessing(ctx context.Context, url string) error
	MarkCompleted(ctx context.Context, url string, entityCount int) error
	MarkFailed(ctx context.Context, url, message string) error
}

// Ensure the mongo-backed store satisfies Store.
var _ Store = (*storage.Store)(nil)

// Controller is the checkpoint/resume state machine for a single run.
type Controller struct {
	store Store
	log   logger.Interface

	// highestPage guards monotonicity within the run: the cursor never
	// moves backwards even if a caller reports pages out of order.
	highestPage int
}

// NewController creates a controller over the given store.
func NewController(store Store, log logger.Interface) *Controller {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Controller{store: store, log: log.WithComponent("checkpoint")}
}

// Resume computes where a run should start: the effective start page is the
// greater of the configured start page and the stored cursor, and the
// returned URL (possibly empty) is the last document recorded on that page,
// which the driver uses to skip already-seen links.
func (c *Controller) Resume(ctx context.Context, configuredStart int) (int, string, error) {
	cp, found, err := c.store.Checkpoint(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("resume: %w", err)
	}
	if !found {
		c.log.Info("no checkpoint found, starting fresh", "page", configuredStart)
		return configuredStart, "", nil
	}

	start := configuredStart
	if cp.LastPage > start {
		start = cp.LastPage
	}
	c.highestPage = start

	c.log.Info("resuming from checkpoint",
		"page", start, "last_document_url", cp.LastDocumentURL)
	return start, cp.LastDocumentURL, nil
}

// AdvancePage durably records that a page has been fully scanned for
// document links, regardless of per-document outcomes. Pages below the
// highest already recorded in this run are ignored, keeping the cursor
// monotonic.
func (c *Controller) AdvancePage(ctx context.Context, page int, lastDocumentURL string) error {
	if page < c.highestPage {
		c.log.Warn("ignoring backward page advance",
			"page", page, "highest", c.highestPage)
		return nil
	}
	c.highestPage = page

	if err := c.store.SaveCheckpoint(ctx, page, lastDocumentURL); err != nil {
		return fmt.Errorf("advance page cursor: %w", err)
	}
	return nil
}

// IsProcessed reports whether a document should be skipped. Only a stored
// status of exactly "completed" counts: absent, failed, or a stale
// "processing" left by a crash all mean the document is re-dispatched.
func (c *Controller) IsProcessed(ctx context.Context, url string) (bool, error) {
	status, err := c.store.DocumentStatus(ctx, url)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check document status: %w", err)
	}
	return status.State == domain.DocumentCompleted, nil
}

// Begin marks a document as processing before any work on it starts.
func (c *Controller) Begin(ctx context.Context, url string) error {
	if err := c.store.MarkProcessing(ctx, url); err != nil {
		return fmt.Errorf("begin document: %w", err)
	}
	return nil
}

// Complete marks a document as fully processed. There is no transition out
// of completed within a run.
func (c *Controller) Complete(ctx context.Context, url string, entityCount int) error {
	if err := c.store.MarkCompleted(ctx, url, entityCount); err != nil {
		return fmt.Errorf("complete document: %w", err)
	}
	return nil
}

// Fail marks a document as failed for this attempt, recording the error
// text. Failed documents are retried on the next run: the skip check only
// honours completed.
func (c *Controller) Fail(ctx context.Context, url string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	if err := c.store.MarkFailed(ctx, url, message); err != nil {
		return fmt.Errorf("fail document: %w", err)
	}
	return nil
}
