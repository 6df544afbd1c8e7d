package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regwatch/regcrawl/internal/config"
)

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "regcrawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mongo:
  uri: mongodb://db.internal:27017
  database: regwatch
crawl:
  base_url: https://regulator.example/orders
  start_page: 2
  end_page: 5
  context_window: 400
fetch:
  request_delay: 300ms
oracles:
  ner_url: http://models.internal/ner
log:
  level: debug
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db.internal:27017", cfg.Mongo.URI)
	assert.Equal(t, "regwatch", cfg.Mongo.Database)
	assert.Equal(t, "https://regulator.example/orders", cfg.Crawl.BaseURL)
	assert.Equal(t, 2, cfg.Crawl.StartPage)
	assert.Equal(t, 5, cfg.Crawl.EndPage)
	assert.Equal(t, 400, cfg.Crawl.ContextWindow)
	assert.Equal(t, 300*time.Millisecond, cfg.Fetch.RequestDelay)
	assert.Equal(t, "http://models.internal/ner", cfg.Oracles.NERURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "regcrawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
crawl:
  base_url: https://regulator.example/orders
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "enforcement", cfg.Mongo.Database)
	assert.Equal(t, 1, cfg.Crawl.StartPage)
	assert.NotZero(t, cfg.Fetch.RequestDelay)
	assert.NotZero(t, cfg.Oracles.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingFileErrors(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*config.Config) {},
		},
		{
			name:    "missing mongo uri",
			mutate:  func(c *config.Config) { c.Mongo.URI = "" },
			wantErr: "mongo.uri",
		},
		{
			name:    "missing base url",
			mutate:  func(c *config.Config) { c.Crawl.BaseURL = "" },
			wantErr: "crawl.base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Config{}
			cfg.Mongo.URI = "mongodb://localhost:27017"
			cfg.Crawl.BaseURL = "https://regulator.example/orders"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
