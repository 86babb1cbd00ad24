package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"newswire/domain"
)

type Repository struct{ db *sql.DB }

func New(db *sql.DB) *Repository { return &Repository{db: db} }

// Ensure creates the schema. The unique constraints on content_hash and url
// back the insert-time duplicate handling: the pre-insert existence checks
// are only an optimization, the constraints are the source of truth.
func (r *Repository) Ensure(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE EXTENSION IF NOT EXISTS pgcrypto;
CREATE TABLE IF NOT EXISTS sources (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    name TEXT UNIQUE NOT NULL,
    rss_url TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    last_fetched_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS articles (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL UNIQUE,
    published_at TIMESTAMPTZ NOT NULL,
    source_id UUID NOT NULL REFERENCES sources(id),
    content TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL UNIQUE,
    author TEXT NOT NULL DEFAULT ''
);
`)
	return err
}

func (r *Repository) AddSource(ctx context.Context, name, rssURL string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (name, rss_url) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, rssURL)
	return err
}

func (r *Repository) DeleteSource(ctx context.Context, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE name = $1`, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) ListSources(ctx context.Context, limit int) ([]domain.Source, error) {
	q := `SELECT id, created_at, name, rss_url, is_active, last_fetched_at FROM sources ORDER BY created_at DESC`
	if limit > 0 {
		q += ` LIMIT $1`
		return scanSources(r.db.QueryContext(ctx, q, limit))
	}
	return scanSources(r.db.QueryContext(ctx, q))
}

func (r *Repository) GetSourceByName(ctx context.Context, name string) (domain.Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, name, rss_url, is_active, last_fetched_at FROM sources WHERE name = $1`, name)
	return scanSource(row)
}

// ActiveSources returns active sources in stable creation order so batch
// offsets slice a consistent list across invocations.
func (r *Repository) ActiveSources(ctx context.Context, limit, offset int) ([]domain.Source, error) {
	q := `SELECT id, created_at, name, rss_url, is_active, last_fetched_at
FROM sources WHERE is_active ORDER BY created_at ASC, id ASC`
	switch {
	case limit > 0:
		q += ` LIMIT $1 OFFSET $2`
		return scanSources(r.db.QueryContext(ctx, q, limit, offset))
	case offset > 0:
		q += ` OFFSET $1`
		return scanSources(r.db.QueryContext(ctx, q, offset))
	default:
		return scanSources(r.db.QueryContext(ctx, q))
	}
}

func (r *Repository) CountActiveSources(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM sources WHERE is_active`).Scan(&n)
	return n, err
}

func (r *Repository) TouchLastFetched(ctx context.Context, sourceID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sources SET last_fetched_at = $2 WHERE id = $1`, sourceID, at)
	return err
}

func (r *Repository) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE content_hash = $1)`, contentHash).Scan(&exists)
	return exists, err
}

func (r *Repository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE url = $1)`, url).Scan(&exists)
	return exists, err
}

func (r *Repository) InsertArticle(ctx context.Context, a domain.Article) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (title, description, url, published_at, source_id, content, content_hash, author)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.Title, a.Description, a.URL, a.PublishedAt, a.SourceID, a.Content, a.ContentHash, a.Author)
	return translateError(err)
}

func (r *Repository) ListArticlesBySource(ctx context.Context, sourceID string, limit int) ([]domain.Article, error) {
	q := `SELECT id, created_at, title, description, url, published_at, source_id, content, content_hash, author
FROM articles WHERE source_id = $1 ORDER BY published_at DESC, created_at DESC`
	if limit > 0 {
		q += ` LIMIT $2`
		return scanArticles(r.db.QueryContext(ctx, q, sourceID, limit))
	}
	return scanArticles(r.db.QueryContext(ctx, q, sourceID))
}

// Postgres connection-class failures (plus admin shutdown) are worth one more
// attempt; a unique violation means a concurrent run won the insert race.
var transientCodes = map[pq.ErrorCode]bool{
	"08000": true, // connection_exception
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
	"57P01": true, // admin_shutdown
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%w (%s)", domain.ErrDuplicate, pqErr.Constraint)
		case transientCodes[pqErr.Code]:
			return fmt.Errorf("%w: %s", domain.ErrTransient, pqErr.Message)
		}
	}
	return err
}

func scanSource(row *sql.Row) (domain.Source, error) {
	var s domain.Source
	var lastFetched sql.NullTime
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.Name, &s.RSSURL, &s.IsActive, &lastFetched); err != nil {
		return domain.Source{}, err
	}
	if lastFetched.Valid {
		s.LastFetchedAt = &lastFetched.Time
	}
	return s, nil
}

func scanSources(rows *sql.Rows, err error) ([]domain.Source, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Source
	for rows.Next() {
		var s domain.Source
		var lastFetched sql.NullTime
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.Name, &s.RSSURL, &s.IsActive, &lastFetched); err != nil {
			return nil, err
		}
		if lastFetched.Valid {
			s.LastFetchedAt = &lastFetched.Time
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanArticles(rows *sql.Rows, err error) ([]domain.Article, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.CreatedAt, &a.Title, &a.Description, &a.URL,
			&a.PublishedAt, &a.SourceID, &a.Content, &a.ContentHash, &a.Author); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
