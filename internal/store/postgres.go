package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const postColumns = `id, slug, title, excerpt, content, authors, published_at, updated_at, status, deprecated, formatting_options`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (Post, error) {
	var (
		item        Post
		authorsRaw  []byte
		optionsRaw  []byte
		publishedAt sql.NullTime
	)
	if err := row.Scan(
		&item.ID,
		&item.Slug,
		&item.Title,
		&item.Excerpt,
		&item.Content,
		&authorsRaw,
		&publishedAt,
		&item.UpdatedAt,
		&item.Status,
		&item.Deprecated,
		&optionsRaw,
	); err != nil {
		return Post{}, err
	}
	if publishedAt.Valid {
		item.PublishedAt = publishedAt.Time
	}
	if len(authorsRaw) > 0 {
		if err := json.Unmarshal(authorsRaw, &item.Authors); err != nil {
			return Post{}, fmt.Errorf("decode authors for %s: %w", item.Slug, err)
		}
	}
	opts, err := ParseFormattingOptions(optionsRaw)
	if err != nil {
		return Post{}, fmt.Errorf("decode formatting options for %s: %w", item.Slug, err)
	}
	item.FormattingOptions = opts
	return item, nil
}

// GetFullPostBySlug returns nil without error when no post has that slug.
func (s *PostgresStore) GetFullPostBySlug(ctx context.Context, slug string) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug=$1`, slug)
	item, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", slug, err)
	}
	return &item, nil
}

func (s *PostgresStore) ListPublishedPosts(ctx context.Context) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE status = $1
		ORDER BY published_at DESC NULLS LAST, slug
	`, StatusPublish)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]Post, 0)
	for rows.Next() {
		item, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpsertPost(ctx context.Context, item Post) error {
	if item.Slug == "" {
		item.Slug = NormalizeSlug(item.Title)
	}
	if err := ValidSlug(item.Slug); err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}
	if item.Status == "" {
		item.Status = StatusDraft
	}
	authors := item.Authors
	if authors == nil {
		authors = []string{}
	}
	authorsJSON, err := json.Marshal(authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}
	optionsJSON, err := json.Marshal(item.FormattingOptions)
	if err != nil {
		return fmt.Errorf("marshal formatting options: %w", err)
	}
	var publishedAt sql.NullTime
	if !item.PublishedAt.IsZero() {
		publishedAt = sql.NullTime{Time: item.PublishedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (slug, title, excerpt, content, authors, published_at, status, deprecated, formatting_options)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9::jsonb)
		ON CONFLICT (slug) DO UPDATE SET
			title=EXCLUDED.title,
			excerpt=EXCLUDED.excerpt,
			content=EXCLUDED.content,
			authors=EXCLUDED.authors,
			published_at=EXCLUDED.published_at,
			status=EXCLUDED.status,
			deprecated=EXCLUDED.deprecated,
			formatting_options=EXCLUDED.formatting_options,
			updated_at=NOW()
	`, item.Slug, item.Title, item.Excerpt, item.Content, string(authorsJSON), publishedAt, item.Status, item.Deprecated, string(optionsJSON))
	if err != nil {
		return fmt.Errorf("upsert post %s: %w", item.Slug, err)
	}
	return nil
}

func (s *PostgresStore) IsPostCitable(post Post) bool {
	return IsPostCitable(post)
}
