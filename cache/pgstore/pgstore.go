// Package pgstore keeps the translation cache in PostgreSQL so several
// readers can share it.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache"
)

const table = "translation_cache"

//go:embed migrations/*.sql
var migrations embed.FS

// Querier is the part of a pgx pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements cache.Store on PostgreSQL.
type Store struct {
	q       Querier
	closeFn func()
	now     func() time.Time
}

var _ cache.Store = (*Store)(nil)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// New wraps an existing querier. Close is a no-op; the caller owns q.
func New(q Querier) *Store {
	return &Store{q: q, closeFn: func() {}, now: time.Now}
}

// Connect opens a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool)
	s.closeFn = pool.Close
	return s, nil
}

// Migrate applies the embedded schema migrations to dsn.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key cache.Key) ([]cache.Segment, bool, error) {
	query, args, err := psql.
		Select("segments").
		From(table).
		Where(squirrel.Eq{"article_id": key.ArticleID, "signature": key.Signature}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build query: %w", err)
	}

	var raw []byte
	if err := s.q.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}

	var segs []cache.Segment
	if err := json.Unmarshal(raw, &segs); err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return cache.Normalize(segs), true, nil
}

func (s *Store) Put(ctx context.Context, key cache.Key, segs []cache.Segment) error {
	data, err := json.Marshal(segs)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	query, args, err := psql.
		Insert(table).
		Columns("article_id", "signature", "segments", "updated_at").
		Values(key.ArticleID, key.Signature, string(data), s.now().UTC()).
		Suffix("ON CONFLICT (article_id, signature) DO UPDATE SET segments = EXCLUDED.segments, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, articleID string) error {
	query, args, err := psql.
		Delete(table).
		Where(squirrel.Eq{"article_id": articleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting %s: %w", articleID, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.closeFn()
	return nil
}
