// Package store persists streets and their segments.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/den-kezlia/torrent/internal/types"
	"github.com/paulmach/orb"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultSQLitePath is used when the sqlite driver is selected without a DSN
	DefaultSQLitePath = "streets.db"
)

// Store is the persistence collaborator of the importer. Upserts are atomic
// per row and report whether the row was inserted or refreshed.
type Store interface {
	UpsertStreet(ctx context.Context, osmID, name string) (types.Street, types.UpsertOutcome, error)
	UpsertStreetSegment(ctx context.Context, osmID, streetID string, geometry orb.LineString) (types.StreetSegment, types.UpsertOutcome, error)
	// DeleteStreetsByPrefix removes every street whose osmID starts with
	// prefix, together with its segments, and returns the streets removed.
	DeleteStreetsByPrefix(ctx context.Context, prefix string) (int64, error)
	Close() error
}

// SegmentLister reads stored segments back for export
type SegmentLister interface {
	ListSegments(ctx context.Context) ([]types.SegmentFeature, error)
}

// Backend is a store that can also list its segments
type Backend interface {
	Store
	SegmentLister
}

// Config selects and configures a backend
type Config struct {
	Logger   *slog.Logger
	Driver   string // "sqlite" (default) or "postgres"
	DSN      string // file path for sqlite, connection string for postgres
	MaxConns int32  // postgres pool size; 0 keeps the pgx default
}

// Open connects to the configured backend and creates its schema if needed.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cfg.Logger.Debug("opening store", "driver", cfg.Driver)

	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		path := cfg.DSN
		if path == "" {
			path = DefaultSQLitePath
		}
		return OpenSQLite(ctx, path)
	case DriverPostgres, "postgresql", "pgx":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		return OpenPostgres(ctx, cfg.DSN, cfg.MaxConns)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// likePrefix builds a LIKE pattern matching values that start with prefix.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
