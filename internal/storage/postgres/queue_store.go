// Package postgres provides the Postgres-backed queue and article store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tndd/datadoggo-v3-rss/internal/model"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// QueueStoreConfig controls the Postgres connection pool.
type QueueStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DB is the slice of pgxpool.Pool the store depends on; pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// QueueStore persists queue entries and their fetched article content.
//
// Expected schema (managed outside this service):
//
//	CREATE TABLE queue (
//	    id          UUID PRIMARY KEY,
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    link        TEXT NOT NULL UNIQUE,
//	    title       TEXT NOT NULL,
//	    pub_date    TIMESTAMPTZ,
//	    description TEXT NOT NULL,
//	    status_code INTEGER,
//	    "group"     TEXT
//	);
//
//	CREATE TABLE article_content (
//	    queue_id    UUID PRIMARY KEY REFERENCES queue(id),
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    data        BYTEA NOT NULL
//	);
type QueueStore struct {
	db DB
}

// NewQueueStore opens a pgx pool against cfg and wraps it in a QueueStore.
func NewQueueStore(ctx context.Context, cfg QueueStoreConfig) (*QueueStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &QueueStore{db: pool}, nil
}

// NewQueueStoreWithDB constructs a store from an existing pool (primarily for
// testing).
func NewQueueStoreWithDB(db DB) (*QueueStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &QueueStore{db: db}, nil
}

// Close releases the underlying pool resources.
func (s *QueueStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

// UpsertEntries inserts each entry, or refreshes the existing row when the
// link is already queued. The unique link constraint guarantees no duplicate
// rows; a refresh bumps updated_at and overwrites title, pub_date,
// description and group. Returns the number of entries written.
func (s *QueueStore) UpsertEntries(ctx context.Context, entries []model.NewQueueEntry, group string) (int, error) {
	const query = `
INSERT INTO queue (id, link, title, pub_date, description, "group")
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (link)
DO UPDATE SET
	title = EXCLUDED.title,
	pub_date = EXCLUDED.pub_date,
	description = EXCLUDED.description,
	"group" = EXCLUDED."group",
	updated_at = NOW()`

	count := 0
	for _, entry := range entries {
		var groupVal *string
		if group != "" {
			groupVal = &group
		}
		if _, err := s.db.Exec(ctx, query,
			uuid.New(),
			entry.Link,
			entry.Title,
			entry.PubDate,
			entry.Description,
			groupVal,
		); err != nil {
			return count, fmt.Errorf("upsert queue entry %s: %w", entry.Link, err)
		}
		count++
	}
	return count, nil
}

// SelectFetchable returns up to limit queue entries still needing a
// (re)fetch: rows never attempted come first, then previously failed rows,
// oldest update first within each class.
func (s *QueueStore) SelectFetchable(ctx context.Context, limit int) ([]model.QueueEntry, error) {
	const query = `
SELECT id, created_at, updated_at, link, title, pub_date, description, status_code, "group"
FROM queue
WHERE status_code IS NULL OR status_code <> 200
ORDER BY (status_code IS NOT NULL), updated_at ASC
LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select fetchable entries: %w", err)
	}
	defer rows.Close()

	var entries []model.QueueEntry
	for rows.Next() {
		var e model.QueueEntry
		if err := rows.Scan(
			&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.Link, &e.Title,
			&e.PubDate, &e.Description, &e.StatusCode, &e.Group,
		); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue entries: %w", err)
	}
	return entries, nil
}

// PersistSuccess stores the compressed article body and the success status in
// a single transaction. Both writes commit together or neither does; the
// content-iff-success invariant depends on it.
func (s *QueueStore) PersistSuccess(ctx context.Context, id uuid.UUID, data []byte, status int) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin persist tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsertContent = `
INSERT INTO article_content (queue_id, data)
VALUES ($1, $2)
ON CONFLICT (queue_id)
DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`

	if _, err := tx.Exec(ctx, upsertContent, id, data); err != nil {
		return fmt.Errorf("upsert article content: %w", err)
	}

	const updateStatus = `
UPDATE queue SET status_code = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, updateStatus, status, id)
	if err != nil {
		return fmt.Errorf("update queue status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update queue status %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit persist tx: %w", err)
	}
	return nil
}

// PersistStatusOnly records a fetch outcome without touching article content.
// A body stored by an earlier successful fetch deliberately survives a later
// failure.
func (s *QueueStore) PersistStatusOnly(ctx context.Context, id uuid.UUID, status int) error {
	const query = `
UPDATE queue SET status_code = $1, updated_at = NOW() WHERE id = $2`

	tag, err := s.db.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update queue status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update queue status %s: %w", id, ErrNotFound)
	}
	return nil
}

// FindCursor resolves a previously returned article id to its keyset
// position. Returns ErrNotFound for unknown ids.
func (s *QueueStore) FindCursor(ctx context.Context, id uuid.UUID) (model.ArticleCursor, error) {
	const query = `SELECT created_at FROM queue WHERE id = $1`

	var createdAt time.Time
	if err := s.db.QueryRow(ctx, query, id).Scan(&createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ArticleCursor{}, ErrNotFound
		}
		return model.ArticleCursor{}, fmt.Errorf("find article cursor: %w", err)
	}
	return model.ArticleCursor{ID: id, CreatedAt: createdAt}, nil
}

// SearchArticlesWindow returns up to limit articles (queue rows joined with
// their content; rows without content are invisible) ordered newest-first by
// (created_at DESC, id DESC). When cursor is non-nil only rows strictly after
// the cursor in that order are returned. Callers fetch limit+1 to detect a
// further page.
func (s *QueueStore) SearchArticlesWindow(ctx context.Context, limit int, cursor *model.ArticleCursor) ([]model.Article, error) {
	const query = `
SELECT
	q.id,
	q.created_at,
	q.updated_at,
	q.link,
	q.title,
	q.pub_date,
	q.description,
	ac.data,
	q."group"
FROM queue AS q
INNER JOIN article_content AS ac ON ac.queue_id = q.id
WHERE (
	$2::timestamptz IS NULL
	OR q.created_at < $2
	OR (q.created_at = $2 AND q.id < $3)
)
ORDER BY q.created_at DESC, q.id DESC
LIMIT $1`

	var cursorAt any
	var cursorID any
	if cursor != nil {
		cursorAt = cursor.CreatedAt
		cursorID = cursor.ID
	}

	rows, err := s.db.Query(ctx, query, limit, cursorAt, cursorID)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		var a model.Article
		if err := rows.Scan(
			&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.Link, &a.Title,
			&a.PubDate, &a.Description, &a.Data, &a.Group,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}
