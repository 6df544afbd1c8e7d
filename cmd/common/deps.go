// Package common provides shared initialization for command implementations.
package common

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/regwatch/regcrawl/internal/config"
	"github.com/regwatch/regcrawl/internal/logger"
	"github.com/regwatch/regcrawl/internal/storage"
)

// CommandDeps holds the dependencies every command starts from.
type CommandDeps struct {
	Config config.Config
	Logger logger.Interface
}

// NewCommandDeps loads configuration and builds the logger. cfgFile may be
// empty, in which case the default search paths apply.
func NewCommandDeps(cfgFile string, debug bool) (CommandDeps, error) {
	// .env first so its variables are visible to config loading.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	return CommandDeps{Config: cfg, Logger: log}, nil
}

// ConnectStore opens the document store using the loaded configuration.
// Callers own the returned store and must Close it.
func (d CommandDeps) ConnectStore(ctx context.Context) (*storage.Store, error) {
	store, err := storage.Connect(ctx, d.Config.Mongo, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	return store, nil
}
