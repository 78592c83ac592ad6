/*
Package config holds server configuration for the settlement service.

PURPOSE:
  One place for every tunable of the HTTP server and store wiring. Values
  are layered: compiled defaults, then an optional YAML file, then
  environment variables. None of this reaches the engine itself - the
  engine is configured with a record.Store and a settlement.Schema.

LAYERING (low -> high precedence):
  1. defaults (New)
  2. YAML file pointed at by SETTLE_CONFIG
  3. environment variables with the SETTLE_ prefix
     (SETTLE_ADDR, SETTLE_DB, SETTLE_SCHEMA_FILE, ...)
*/
package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full server configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DB is the SQLite database path. ":memory:" runs fully in memory.
	DB string `koanf:"db"`

	// SchemaFile optionally points at a JSON schema override
	// (see factory.ParseSchema). Empty means the default schema.
	SchemaFile string `koanf:"schema_file"`

	// CORSOrigins are the allowed browser origins for the API.
	CORSOrigins []string `koanf:"cors_origins"`
}

// New returns the compiled-in defaults.
func New() *Config {
	return &Config{
		Addr:        ":8080",
		DB:          "settlement.db",
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// Load builds a Config by layering defaults, optional file, and env vars.
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("SETTLE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// SETTLE_SCHEMA_FILE -> schema_file; underscores preserved to match
	// the koanf tags on the struct.
	envProvider := env.Provider("SETTLE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "settle_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.DB == "" {
		return nil, errors.New("db must not be empty")
	}
	return &cfg, nil
}
