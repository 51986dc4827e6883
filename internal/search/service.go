package search

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrIndexUnavailable = errors.New("search index unavailable")

const (
	BackendMeili = "meilisearch"
	BackendPgFTS = "pgfts"
	BackendNone  = "none"
)

// pageIndex is implemented by *Meili.
type pageIndex interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexPages(pages []PageRecord) error
}

// fallbackSearcher is implemented by *PgFTS.
type fallbackSearcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
// Either backend may be nil.
type Service struct {
	index    pageIndex
	fallback fallbackSearcher
	logger   *zap.Logger
}

func NewService(meili *Meili, pgfts *PgFTS, logger *zap.Logger) *Service {
	s := &Service{logger: logger}
	if meili != nil {
		s.index = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.index != nil && s.index.Healthy() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: BackendMeili}
		}
		s.logger.Warn("search: meilisearch error, falling back to pgfts", zap.Error(err))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text, Backend: BackendNone}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("search: pgfts error", zap.Error(err))
		return Response{Results: []Result{}, Query: q.Text, Backend: BackendPgFTS}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: BackendPgFTS}
}

// IndexPages pushes pages to Meilisearch. ErrIndexUnavailable is returned when
// Meilisearch is not configured or unhealthy so callers can decide whether
// that matters.
func (s *Service) IndexPages(pages []PageRecord) error {
	if s.index == nil || !s.index.Healthy() {
		return ErrIndexUnavailable
	}
	return s.index.IndexPages(pages)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
