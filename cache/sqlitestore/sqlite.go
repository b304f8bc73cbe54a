// Package sqlitestore keeps the translation cache in a local SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache"
)

// Store implements cache.Store on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ cache.Store = (*Store)(nil)

// Open opens (or creates) the database at path with WAL mode enabled.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS translation_cache (
	article_id TEXT NOT NULL,
	signature TEXT NOT NULL,
	segments_json TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY(article_id, signature)
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key cache.Key) ([]cache.Segment, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT segments_json FROM translation_cache WHERE article_id = ? AND signature = ?`,
		key.ArticleID, key.Signature,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}

	var segs []cache.Segment
	if err := json.Unmarshal([]byte(raw), &segs); err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return cache.Normalize(segs), true, nil
}

func (s *Store) Put(ctx context.Context, key cache.Key, segs []cache.Segment) error {
	data, err := json.Marshal(segs)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO translation_cache (article_id, signature, segments_json, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(article_id, signature) DO UPDATE SET
	segments_json=excluded.segments_json,
	updated_at=excluded.updated_at;
`, key.ArticleID, key.Signature, string(data), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, articleID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM translation_cache WHERE article_id = ?`, articleID); err != nil {
		return fmt.Errorf("deleting %s: %w", articleID, err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translation_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
