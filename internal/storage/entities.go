package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/regwatch/regcrawl/internal/domain"
)

// Summary aggregates statistics over persisted entity records.
type Summary struct {
	TotalEntities      int64
	Persons            int64
	Organizations      int64
	WithTaxID          int64
	WithRegistrationID int64
	WithAddress        int64
	NegativeSentiment  int64
	TaxIDCoveragePct   float64
}

// InsertEntities persists a batch of entity records and returns the number
// inserted.
func (s *Store) InsertEntities(ctx context.Context, records []domain.EntityRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = r
	}

	result, err := s.entities.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert entities: %w", err)
	}
	return len(result.InsertedIDs), nil
}

func existsFilter(field string) bson.M {
	return bson.M{field: bson.M{"$exists": true, "$ne": nil}}
}

// Summary computes aggregate statistics over all persisted records.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var (
		summary Summary
		err     error
	)

	counts := []struct {
		dest   *int64
		filter bson.M
	}{
		{&summary.TotalEntities, bson.M{}},
		{&summary.Persons, bson.M{"entity_type": domain.EntityPerson}},
		{&summary.Organizations, bson.M{"entity_type": domain.EntityOrganization}},
		{&summary.WithTaxID, existsFilter("tax_id")},
		{&summary.WithRegistrationID, existsFilter("registration_id")},
		{&summary.WithAddress, existsFilter("address")},
		{&summary.NegativeSentiment, bson.M{"sentiment": domain.SentimentNegative}},
	}
	for _, c := range counts {
		if *c.dest, err = s.entities.CountDocuments(ctx, c.filter); err != nil {
			return Summary{}, fmt.Errorf("count entities: %w", err)
		}
	}

	if summary.TotalEntities > 0 {
		summary.TaxIDCoveragePct = float64(summary.WithTaxID) / float64(summary.TotalEntities) * 100
	}
	return summary, nil
}

// FindEntities returns records matching the filter, newest first, up to
// limit.
func (s *Store) FindEntities(ctx context.Context, filter bson.M, limit int64) ([]domain.EntityRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.entities.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find entities: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.EntityRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	return records, nil
}

// NegativeEntities returns records with negative sentiment.
func (s *Store) NegativeEntities(ctx context.Context, limit int64) ([]domain.EntityRecord, error) {
	return s.FindEntities(ctx, bson.M{"sentiment": domain.SentimentNegative}, limit)
}

// EntitiesWithTaxID returns records that carry a tax identifier.
func (s *Store) EntitiesWithTaxID(ctx context.Context, limit int64) ([]domain.EntityRecord, error) {
	return s.FindEntities(ctx, existsFilter("tax_id"), limit)
}

// PurgeEntities removes all persisted entity records. Operator action,
// irreversible.
func (s *Store) PurgeEntities(ctx context.Context) (int64, error) {
	result, err := s.entities.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("purge entities: %w", err)
	}
	return result.DeletedCount, nil
}
