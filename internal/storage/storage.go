// Package storage provides the MongoDB-backed persistence gateway for
// entity records, the crawl checkpoint, and per-document statuses.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/regwatch/regcrawl/internal/logger"
	"github.com/regwatch/regcrawl/internal/retry"
)

// ErrNotFound is returned when a queried document does not exist.
var ErrNotFound = errors.New("document not found")

const (
	entitiesCollection = "entities"
	// checkpointsCollection holds both the singleton page cursor and the
	// per-document status records.
	checkpointsCollection = "checkpoints"

	// checkpointType is the fixed type tag keying the singleton page cursor.
	checkpointType = "crawl_progress"

	defaultConnectTimeout = 10 * time.Second
	connectRetryDelay     = 5 * time.Second
	connectAttempts       = 3
)

// Config holds store connection settings.
type Config struct {
	URI            string        `mapstructure:"uri" yaml:"uri"`
	Database       string        `mapstructure:"database" yaml:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// WithDefaults returns a copy of the config with defaults applied for
// zero-value fields.
func (c Config) WithDefaults() Config {
	if c.Database == "" {
		c.Database = "enforcement"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return c
}

// Store is the MongoDB-backed document store.
type Store struct {
	client      *mongo.Client
	entities    *mongo.Collection
	checkpoints *mongo.Collection
	log         logger.Interface
}

// Connect establishes a client with bounded retries, verifies the
// connection, and ensures the query indexes exist.
func Connect(ctx context.Context, cfg Config, log logger.Interface) (*Store, error) {
	cfg = cfg.WithDefaults()
	if cfg.URI == "" {
		return nil, errors.New("storage: URI is required")
	}
	if log == nil {
		log = logger.NewNoOp()
	}

	var client *mongo.Client
	policy := retry.Config{
		MaxAttempts: connectAttempts,
		Delay:       connectRetryDelay,
		IsRetryable: func(error) bool { return true },
	}
	err := retry.Do(ctx, policy, func() error {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()

		c, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
		if err != nil {
			return err
		}
		if err := c.Ping(connectCtx, readpref.Primary()); err != nil {
			_ = c.Disconnect(connectCtx)
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}

	db := client.Database(cfg.Database)
	store := &Store{
		client:      client,
		entities:    db.Collection(entitiesCollection),
		checkpoints: db.Collection(checkpointsCollection),
		log:         log.WithComponent("storage"),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	store.log.Info("connected to document store", "database", cfg.Database)
	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "entity_name", Value: 1}}},
		{Keys: bson.D{{Key: "entity_type", Value: 1}}},
		{Keys: bson.D{{Key: "sentiment", Value: 1}}},
		{Keys: bson.D{{Key: "source_document_url", Value: 1}}},
		{Keys: bson.D{{Key: "tax_id", Value: 1}}},
		{Keys: bson.D{{Key: "registration_id", Value: 1}}},
		{Keys: bson.D{{Key: "entity_name", Value: 1}, {Key: "tax_id", Value: 1}}},
	}
	if _, err := s.entities.Indexes().CreateMany(ctx, indexes); err != nil {
		return err
	}

	statusIndex := mongo.IndexModel{Keys: bson.D{{Key: "document_url", Value: 1}}}
	_, err := s.checkpoints.Indexes().CreateOne(ctx, statusIndex)
	return err
}

// Close disconnects from the store.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
