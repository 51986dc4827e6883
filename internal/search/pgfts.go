package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"chartpress/internal/store"
)

// PgFTS searches published posts with PostgreSQL full-text search.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Search ranks published posts with plainto_tsquery and ts_rank and builds
// snippets with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	where := "p.fts @@ plainto_tsquery('english', $1) AND p.status = $2"
	args := []any{q.Text, store.StatusPublish}
	if q.SubnavID != "" {
		where += " AND p.formatting_options->>'subnavId' = $3"
		args = append(args, q.SubnavID)
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM posts p WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT p.slug, p.title,
			ts_headline('english', coalesce(p.excerpt, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			p.authors
		FROM posts p
		WHERE %s
		ORDER BY ts_rank(p.fts, plainto_tsquery('english', $1)) DESC, p.slug
		LIMIT %d OFFSET %d`, where, q.limit(), q.offset())

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var (
			r          Result
			authorsRaw []byte
		)
		if err := rows.Scan(&r.Slug, &r.Title, &r.Snippet, &authorsRaw); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		if len(authorsRaw) > 0 {
			if err := json.Unmarshal(authorsRaw, &r.Authors); err != nil {
				return nil, 0, fmt.Errorf("pgfts decode authors: %w", err)
			}
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}
