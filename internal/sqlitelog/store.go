// Package sqlitelog is tagfd-logd's durable observation log: one row per
// observed tag value (subject to the same missed-update collapse as any
// other reader), queryable in commit order, backed by modernc.org/sqlite.
package sqlitelog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hmsnyder/tagfd/internal/tagtype"
)

// Observation is one logged tag value, as it comes back out of Query.
type Observation struct {
	RunID      string
	TagName    string
	DType      tagtype.DType
	Quality    tagtype.Quality
	ObservedAt uint64
	TextValue  string
	IngestedAt time.Time
}

// Store is a handle to tagfd-logd's SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates the database directory if needed, opens (or creates) the
// SQLite file at path in WAL mode, and applies any pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("chmod log db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append persists one observed value for tagName under runID. textValue is
// the relay's machine-readable rendering of v, kept alongside the typed
// fields so the log is human-greppable without decoding the dtype.
func (s *Store) Append(ctx context.Context, runID, tagName string, v tagtype.Value, textValue string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO observations(run_id, tag_name, dtype, quality, observed_at, text_value, ingested_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, runID, tagName, v.DType.String(), uint16(v.Quality), v.Timestamp, textValue, nowUTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	return nil
}

// nowUTC is overridable in tests.
var nowUTC = func() time.Time { return time.Now().UTC() }

// Query returns every observation for tagName in commit order,
// (tag_name, observed_at), so a durability check can replay exactly what
// was observed.
func (s *Store) Query(ctx context.Context, tagName string) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, tag_name, dtype, quality, observed_at, text_value, ingested_at
FROM observations
WHERE tag_name = ?
ORDER BY observed_at ASC, observation_id ASC
`, tagName)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Observation
	for rows.Next() {
		var (
			o         Observation
			dtypeName string
			quality   uint16
			ingested  string
		)
		if err := rows.Scan(&o.RunID, &o.TagName, &dtypeName, &quality, &o.ObservedAt, &o.TextValue, &ingested); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		dtype, ok := tagtype.ParseDType(dtypeName)
		if !ok {
			return nil, fmt.Errorf("unknown dtype %q in log", dtypeName)
		}
		o.DType = dtype
		o.Quality = tagtype.Quality(quality)
		ts, err := time.Parse(time.RFC3339Nano, ingested)
		if err != nil {
			return nil, fmt.Errorf("parse ingested_at: %w", err)
		}
		o.IngestedAt = ts
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return out, nil
}
