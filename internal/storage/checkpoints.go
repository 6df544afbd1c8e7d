package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/regwatch/regcrawl/internal/domain"
)

// Checkpoint returns the stored page cursor. The boolean is false when no
// checkpoint has been written yet.
func (s *Store) Checkpoint(ctx context.Context) (domain.Checkpoint, bool, error) {
	var cp domain.Checkpoint
	err := s.checkpoints.FindOne(ctx, bson.M{"type": checkpointType}).Decode(&cp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Checkpoint{}, false, nil
	}
	if err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, true, nil
}

// SaveCheckpoint advances the page cursor. The last document URL is only
// updated when non-empty, so a page with no discovered documents keeps the
// previous resume marker.
func (s *Store) SaveCheckpoint(ctx context.Context, page int, lastDocumentURL string) error {
	update := bson.M{"last_page": page}
	if lastDocumentURL != "" {
		update["last_document_url"] = lastDocumentURL
	}

	_, err := s.checkpoints.UpdateOne(ctx,
		bson.M{"type": checkpointType},
		bson.M{"$set": update},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	s.log.Debug("checkpoint advanced", "page", page, "last_document_url", lastDocumentURL)
	return nil
}

// ResetCheckpoint rewinds the page cursor to the given page and clears the
// resume marker. This is an explicit operator action.
func (s *Store) ResetCheckpoint(ctx context.Context, page int) error {
	_, err := s.checkpoints.UpdateOne(ctx,
		bson.M{"type": checkpointType},
		bson.M{"$set": bson.M{"last_page": page, "last_document_url": nil}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	return nil
}

// DocumentStatus returns the stored status for a document URL.
func (s *Store) DocumentStatus(ctx context.Context, url string) (domain.DocumentStatus, error) {
	var status domain.DocumentStatus
	err := s.checkpoints.FindOne(ctx, bson.M{"document_url": url}).Decode(&status)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.DocumentStatus{}, ErrNotFound
	}
	if err != nil {
		return domain.DocumentStatus{}, fmt.Errorf("load document status: %w", err)
	}
	return status, nil
}

// MarkProcessing records that a run has started on a document. A stale
// record from a crashed run is overwritten. The write is a single-document
// atomic upsert.
func (s *Store) MarkProcessing(ctx context.Context, url string) error {
	return s.setStatus(ctx, url, bson.M{
		"status":     domain.DocumentProcessing,
		"started_at": time.Now(),
	})
}

// MarkCompleted records successful processing and the number of entities
// persisted. Zero entities is still completed: the document was processed
// and found nothing.
func (s *Store) MarkCompleted(ctx context.Context, url string, entityCount int) error {
	return s.setStatus(ctx, url, bson.M{
		"status":       domain.DocumentCompleted,
		"entity_count": entityCount,
		"completed_at": time.Now(),
	})
}

// MarkFailed records failed processing with the error text attached.
func (s *Store) MarkFailed(ctx context.Context, url, message string) error {
	return s.setStatus(ctx, url, bson.M{
		"status":    domain.DocumentFailed,
		"error":     message,
		"failed_at": time.Now(),
	})
}

func (s *Store) setStatus(ctx context.Context, url string, fields bson.M) error {
	_, err := s.checkpoints.UpdateOne(ctx,
		bson.M{"document_url": url},
		bson.M{"$set": fields},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// PurgeStatuses removes all per-document status records. Operator action.
func (s *Store) PurgeStatuses(ctx context.Context) (int64, error) {
	result, err := s.checkpoints.DeleteMany(ctx, bson.M{"document_url": bson.M{"$exists": true}})
	if err != nil {
		return 0, fmt.Errorf("purge statuses: %w", err)
	}
	return result.DeletedCount, nil
}
