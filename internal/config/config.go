// Package config loads application configuration from a YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/regwatch/regcrawl/internal/crawler"
	"github.com/regwatch/regcrawl/internal/fetch"
	"github.com/regwatch/regcrawl/internal/logger"
	"github.com/regwatch/regcrawl/internal/storage"
)

// Oracles holds the endpoints of the model services.
type Oracles struct {
	// NERURL is the named-entity recognition endpoint.
	NERURL string `mapstructure:"ner_url" yaml:"ner_url"`
	// SentimentURL is the sentiment scoring endpoint.
	SentimentURL string `mapstructure:"sentiment_url" yaml:"sentiment_url"`
	// Timeout bounds each model call.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Config is the application configuration.
type Config struct {
	Mongo   storage.Config `mapstructure:"mongo"   yaml:"mongo"`
	Crawl   crawler.Config `mapstructure:"crawl"   yaml:"crawl"`
	Fetch   fetch.Config   `mapstructure:"fetch"   yaml:"fetch"`
	Oracles Oracles        `mapstructure:"oracles" yaml:"oracles"`
	Log     logger.Config  `mapstructure:"log"     yaml:"log"`
}

const defaultOracleTimeout = 60 * time.Second

// WithDefaults returns a copy of the config with default values applied for
// zero-value fields.
func (c Config) WithDefaults() Config {
	c.Mongo = c.Mongo.WithDefaults()
	c.Crawl = c.Crawl.WithDefaults()
	c.Fetch = c.Fetch.WithDefaults()
	if c.Oracles.Timeout <= 0 {
		c.Oracles.Timeout = defaultOracleTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return c
}

// Validate checks the fields without which no command can run.
func (c Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri is required")
	}
	if c.Crawl.BaseURL == "" {
		return errors.New("crawl.base_url is required")
	}
	return nil
}

// Load reads configuration from the given file (optional) and the
// environment. Environment variables use the REGCRAWL_ prefix with
// underscores for nesting, e.g. REGCRAWL_MONGO_URI.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REGCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("regcrawl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.regcrawl")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg.WithDefaults(), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "enforcement")
	v.SetDefault("crawl.start_page", 1)
	v.SetDefault("crawl.end_page", 1)
	v.SetDefault("oracles.ner_url", "http://localhost:8081/ner")
	v.SetDefault("oracles.sentiment_url", "http://localhost:8082/sentiment")
	v.SetDefault("log.level", "info")
}
