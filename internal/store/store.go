// Package store persists the engine's per-installation state in a local
// sqlite file: learned user patterns across restarts and archived audit
// exports. Store failures are reported to the caller but are never fatal to
// an assessment.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_patterns (
	event_type TEXT PRIMARY KEY,
	frequency  REAL NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS audit_archive (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	exported_at TIMESTAMP NOT NULL,
	payload     BLOB NOT NULL
);
`

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// Open creates or opens the sqlite file at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writes; one connection avoids lock errors
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SavePatterns upserts all learned frequencies in one transaction.
func (s *Store) SavePatterns(ctx context.Context, freqs map[string]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save patterns: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_patterns (event_type, frequency, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(event_type) DO UPDATE SET
			frequency = excluded.frequency,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("save patterns: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for eventType, freq := range freqs {
		if _, err := stmt.ExecContext(ctx, eventType, freq, now); err != nil {
			return fmt.Errorf("save pattern %s: %w", eventType, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save patterns: %w", err)
	}
	return nil
}

// LoadPatterns returns all persisted frequencies. An empty database yields
// an empty map, not an error.
func (s *Store) LoadPatterns(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_type, frequency FROM user_patterns`)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	defer rows.Close()

	freqs := make(map[string]float64)
	for rows.Next() {
		var eventType string
		var freq float64
		if err := rows.Scan(&eventType, &freq); err != nil {
			return nil, fmt.Errorf("load patterns: %w", err)
		}
		freqs[eventType] = freq
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	return freqs, nil
}

// ArchiveAudit stores one serialized audit export.
func (s *Store) ArchiveAudit(ctx context.Context, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_archive (exported_at, payload) VALUES (?, ?)`,
		time.Now().UTC(), payload)
	if err != nil {
		return fmt.Errorf("archive audit: %w", err)
	}
	return nil
}

// LatestArchive returns the most recent archived export, or ok=false when
// none exists.
func (s *Store) LatestArchive(ctx context.Context) (payload []byte, exportedAt time.Time, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, exported_at FROM audit_archive ORDER BY id DESC LIMIT 1`)
	switch err = row.Scan(&payload, &exportedAt); err {
	case nil:
		return payload, exportedAt, true, nil
	case sql.ErrNoRows:
		return nil, time.Time{}, false, nil
	default:
		return nil, time.Time{}, false, fmt.Errorf("latest archive: %w", err)
	}
}
