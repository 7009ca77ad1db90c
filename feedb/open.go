package feedb

import (
	"context"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

const (
	// BackendBolt stores policies in a bbolt file in the data directory.
	BackendBolt = "bolt"

	// BackendPostgres stores policies in a Postgres database.
	BackendPostgres = "postgres"
)

// Config selects and configures a store backend.
type Config struct {
	// Backend is one of BackendBolt or BackendPostgres.
	Backend string

	// DataDir is the directory that holds the bolt database.
	DataDir string

	// PostgresDSN is the connection string of the Postgres database.
	PostgresDSN string

	// OpenTimeout bounds the wait for the bolt file lock.
	OpenTimeout time.Duration
}

// Open opens the store that the config describes.
func Open(ctx context.Context, cfg *Config, clock clock.Clock) (Store, error) {
	switch cfg.Backend {
	case BackendBolt, "":
		timeout := cfg.OpenTimeout
		if timeout == 0 {
			timeout = DefaultOpenTimeout
		}

		return NewBoltStore(cfg.DataDir, clock, timeout)

	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires a dsn")
		}

		return NewPostgresStore(ctx, cfg.PostgresDSN, clock)

	default:
		return nil, fmt.Errorf("unknown store backend: %v", cfg.Backend)
	}
}
