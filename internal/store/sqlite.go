package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/den-kezlia/torrent/internal/streets"
	"github.com/den-kezlia/torrent/internal/types"
	"github.com/google/uuid"
	"github.com/paulmach/orb"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore keeps streets in a local SQLite database
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and initializes the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas are per connection, so pin the pool to a single one
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSQLiteSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func createSQLiteSchema(ctx context.Context, db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS streets (
			id TEXT PRIMARY KEY,
			osm_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS street_segments (
			id TEXT PRIMARY KEY,
			osm_id TEXT NOT NULL UNIQUE,
			street_id TEXT NOT NULL REFERENCES streets (id) ON DELETE CASCADE,
			geometry TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS street_segments_street_id ON street_segments (street_id);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// UpsertStreet inserts the street or refreshes its name. A row keeps its ID
// across upserts, so a returned ID equal to the freshly generated one means
// the row was inserted.
func (s *SQLiteStore) UpsertStreet(ctx context.Context, osmID, name string) (types.Street, types.UpsertOutcome, error) {
	now := s.now().UTC()
	newID := uuid.NewString()

	var street types.Street
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO streets (id, osm_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (osm_id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
		RETURNING id, osm_id, name, created_at, updated_at`,
		newID, osmID, name, now.UnixNano(), now.UnixNano(),
	).Scan(&street.ID, &street.OsmID, &street.Name, &createdAt, &updatedAt)
	if err != nil {
		return types.Street{}, 0, fmt.Errorf("failed to upsert street %q: %w", osmID, err)
	}

	street.CreatedAt = time.Unix(0, createdAt).UTC()
	street.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return street, outcomeFor(street.ID, newID), nil
}

// UpsertStreetSegment inserts the segment or replaces its geometry and owning street.
func (s *SQLiteStore) UpsertStreetSegment(ctx context.Context, osmID, streetID string, geometry orb.LineString) (types.StreetSegment, types.UpsertOutcome, error) {
	geom, err := streets.GeometryJSON(geometry)
	if err != nil {
		return types.StreetSegment{}, 0, fmt.Errorf("failed to encode geometry of %q: %w", osmID, err)
	}

	now := s.now().UTC()
	newID := uuid.NewString()

	seg := types.StreetSegment{Geometry: geometry}
	var updatedAt int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO street_segments (id, osm_id, street_id, geometry, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (osm_id) DO UPDATE SET
			street_id = excluded.street_id,
			geometry = excluded.geometry,
			updated_at = excluded.updated_at
		RETURNING id, osm_id, street_id, updated_at`,
		newID, osmID, streetID, string(geom), now.UnixNano(),
	).Scan(&seg.ID, &seg.OsmID, &seg.StreetID, &updatedAt)
	if err != nil {
		return types.StreetSegment{}, 0, fmt.Errorf("failed to upsert segment %q: %w", osmID, err)
	}

	seg.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return seg, outcomeFor(seg.ID, newID), nil
}

// DeleteStreetsByPrefix removes matching streets and their segments in one transaction.
func (s *SQLiteStore) DeleteStreetsByPrefix(ctx context.Context, prefix string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	pattern := likePrefix(prefix)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM street_segments
		WHERE street_id IN (SELECT id FROM streets WHERE osm_id LIKE ? ESCAPE '\')`, pattern); err != nil {
		return 0, fmt.Errorf("failed to delete segments: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM streets WHERE osm_id LIKE ? ESCAPE '\'`, pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to delete streets: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted streets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deleted, nil
}

// ListSegments returns every stored segment with its street name, ordered by street then segment.
func (s *SQLiteStore) ListSegments(ctx context.Context) ([]types.SegmentFeature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seg.id, seg.osm_id, seg.street_id, seg.geometry, seg.updated_at, st.name
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
		var updatedAt int64
		if err := rows.Scan(&f.Segment.ID, &f.Segment.OsmID, &f.Segment.StreetID, &geom, &updatedAt, &f.StreetName); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		f.Segment.Geometry, err = streets.ParseGeometryJSON([]byte(geom))
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", f.Segment.OsmID, err)
		}
		f.Segment.UpdatedAt = time.Unix(0, updatedAt).UTC()
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate segments: %w", err)
	}
	return features, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func outcomeFor(returnedID, insertedID string) types.UpsertOutcome {
	if returnedID == insertedID {
		return types.UpsertCreated
	}
	return types.UpsertUpdated
}
