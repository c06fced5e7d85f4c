package store

import (
	"context"
	"fmt"

	"github.com/den-kezlia/torrent/internal/streets"
	"github.com/den-kezlia/torrent/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
)

// PostgresStore keeps streets in PostgreSQL. Geometry is stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to dsn and initializes the schema.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := createPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func createPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS streets (
			id UUID PRIMARY KEY,
			osm_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS street_segments (
			id UUID PRIMARY KEY,
			osm_id TEXT NOT NULL UNIQUE,
			street_id UUID NOT NULL REFERENCES streets (id) ON DELETE CASCADE,
			geometry JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS street_segments_street_id ON street_segments (street_id)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}
	return nil
}

// UpsertStreet inserts the street or refreshes its name. xmax is zero only
// for a row version created by an insert.
func (s *PostgresStore) UpsertStreet(ctx context.Context, osmID, name string) (types.Street, types.UpsertOutcome, error) {
	var street types.Street
	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO streets (id, osm_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (osm_id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
		RETURNING id::text, osm_id, name, created_at, updated_at, (xmax = 0)`,
		uuid.NewString(), osmID, name,
	).Scan(&street.ID, &street.OsmID, &street.Name, &street.CreatedAt, &street.UpdatedAt, &inserted)
	if err != nil {
		return types.Street{}, 0, fmt.Errorf("failed to upsert street %q: %w", osmID, err)
	}
	return street, insertedOutcome(inserted), nil
}

// UpsertStreetSegment inserts the segment or replaces its geometry and owning street.
func (s *PostgresStore) UpsertStreetSegment(ctx context.Context, osmID, streetID string, geometry orb.LineString) (types.StreetSegment, types.UpsertOutcome, error) {
	geom, err := streets.GeometryJSON(geometry)
	if err != nil {
		return types.StreetSegment{}, 0, fmt.Errorf("failed to encode geometry of %q: %w", osmID, err)
	}

	seg := types.StreetSegment{Geometry: geometry}
	var inserted bool
	err = s.pool.QueryRow(ctx, `
		INSERT INTO street_segments (id, osm_id, street_id, geometry, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, now())
		ON CONFLICT (osm_id) DO UPDATE SET
			street_id = EXCLUDED.street_id,
			geometry = EXCLUDED.geometry,
			updated_at = now()
		RETURNING id::text, osm_id, street_id::text, updated_at, (xmax = 0)`,
		uuid.NewString(), osmID, streetID, string(geom),
	).Scan(&seg.ID, &seg.OsmID, &seg.StreetID, &seg.UpdatedAt, &inserted)
	if err != nil {
		return types.StreetSegment{}, 0, fmt.Errorf("failed to upsert segment %q: %w", osmID, err)
	}
	return seg, insertedOutcome(inserted), nil
}

// DeleteStreetsByPrefix removes matching streets and their segments in one transaction.
func (s *PostgresStore) DeleteStreetsByPrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		pattern := likePrefix(prefix)
		if _, err := tx.Exec(ctx, `
			DELETE FROM street_segments
			WHERE street_id IN (SELECT id FROM streets WHERE osm_id LIKE $1 ESCAPE '\')`, pattern); err != nil {
			return fmt.Errorf("failed to delete segments: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM streets WHERE osm_id LIKE $1 ESCAPE '\'`, pattern)
		if err != nil {
			return fmt.Errorf("failed to delete streets: %w", err)
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListSegments returns every stored segment with its street name, ordered by street then segment.
func (s *PostgresStore) ListSegments(ctx context.Context) ([]types.SegmentFeature, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seg.id::text, seg.osm_id, seg.street_id::text, seg.geometry::text, seg.updated_at, st.name
		FROM street_segments seg
		JOIN streets st ON st.id = seg.street_id
		ORDER BY st.name, seg.osm_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var features []types.SegmentFeature
	for rows.Next() {
		var f types.SegmentFeature
		var geom string
		if err := rows.Scan(&f.Segment.ID, &f.Segment.OsmID, &f.Segment.StreetID, &geom, &f.Segment.UpdatedAt, &f.StreetName); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		f.Segment.Geometry, err = streets.ParseGeometryJSON([]byte(geom))
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", f.Segment.OsmID, err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate segments: %w", err)
	}
	return features, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func insertedOutcome(inserted bool) types.UpsertOutcome {
	if inserted {
		return types.UpsertCreated
	}
	return types.UpsertUpdated
}
