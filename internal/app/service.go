package app

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"chartpress/internal/axis"
	"chartpress/internal/overrides"
	"chartpress/internal/search"
	"chartpress/internal/store"
)

// ContentStore is the post source behind the API. *store.PostgresStore and
// *snapshot.Store both satisfy the lookup half; Ping backs /api/ready.
type ContentStore interface {
	overrides.ContentStore
	Ping(ctx context.Context) error
}

type Searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
}

// Checker is an optional readiness probe for a secondary dependency.
type Checker func(ctx context.Context) error

type Service struct {
	content  ContentStore
	resolver *overrides.Resolver
	search   Searcher
	checks   map[string]Checker
	logger   *zap.Logger
}

func New(content ContentStore, resolver *overrides.Resolver, searcher Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		content:  content,
		resolver: resolver,
		search:   searcher,
		checks:   make(map[string]Checker),
		logger:   logger,
	}
}

// AddReadinessCheck registers a probe reported under name by Ready. Failing
// probes other than the database degrade the status without failing it.
func (s *Service) AddReadinessCheck(name string, check Checker) {
	if check == nil || strings.TrimSpace(name) == "" {
		return
	}
	s.checks[name] = check
}

func (s *Service) Ping(ctx context.Context) error {
	return s.content.Ping(ctx)
}

type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ReadyReport struct {
	OK     bool                   `json:"ok"`
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

func (s *Service) Ready(ctx context.Context) ReadyReport {
	report := ReadyReport{
		OK:     true,
		Status: "ready",
		Checks: map[string]CheckResult{"database": {Status: "ok"}},
	}
	if err := s.Ping(ctx); err != nil {
		report.OK = false
		report.Status = "not_ready"
		report.Checks["database"] = CheckResult{Status: "error", Error: err.Error()}
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			report.Checks[name] = CheckResult{Status: "error", Error: err.Error()}
			if report.OK {
				report.Status = "degraded"
			}
			continue
		}
		report.Checks[name] = CheckResult{Status: "ok"}
	}
	return report
}

type PageOverridesView struct {
	Slug      string                   `json:"slug"`
	Overrides *overrides.PageOverrides `json:"overrides"`
	Citable   bool                     `json:"citable"`
}

func (s *Service) PageOverrides(ctx context.Context, slug string) (PageOverridesView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return PageOverridesView{}, validationError("slug is required", nil)
	}
	post, err := s.content.GetFullPostBySlug(ctx, slug)
	if err != nil {
		return PageOverridesView{}, err
	}
	if post == nil {
		return PageOverridesView{}, pageNotFound(slug)
	}

	o := s.resolver.GetPageOverrides(ctx, *post, post.FormattingOptions)
	return PageOverridesView{
		Slug:      post.Slug,
		Overrides: o,
		Citable:   overrides.IsPageOverridesCitable(o),
	}, nil
}

type TicksRequest struct {
	ScaleType string
	Min       float64
	Max       float64
	Range     *[2]float64
}

type TicksView struct {
	ScaleType axis.ScaleType `json:"scaleType"`
	Domain    [2]float64     `json:"domain"`
	Range     *[2]float64    `json:"range,omitempty"`
	Ticks     []float64      `json:"ticks"`
	Labels    []string       `json:"labels"`
	Placed    []float64      `json:"placed,omitempty"`
}

func (s *Service) AxisTicks(req TicksRequest) (TicksView, error) {
	scaleType := axis.ScaleType(strings.ToLower(strings.TrimSpace(req.ScaleType)))
	if scaleType == "" {
		scaleType = axis.Linear
	}
	if scaleType != axis.Linear && scaleType != axis.Log {
		return TicksView{}, validationError("scale must be linear or log", map[string]any{"scale": req.ScaleType})
	}
	if !finite(req.Min) || !finite(req.Max) {
		return TicksView{}, validationError("min and max must be finite numbers", nil)
	}
	if scaleType == axis.Log && (req.Min <= 0 || req.Max <= 0) {
		return TicksView{}, validationError("log scale domain must be positive", nil)
	}
	if req.Range != nil && (!finite(req.Range[0]) || !finite(req.Range[1])) {
		return TicksView{}, validationError("range must be finite numbers", nil)
	}

	scale := axis.New(axis.Config{
		ScaleType: scaleType,
		Domain:    [2]float64{req.Min, req.Max},
		Range:     req.Range,
	}, s.logger)

	ticks := scale.TickValues()
	view := TicksView{
		ScaleType: scale.ScaleType(),
		Domain:    scale.Domain(),
		Range:     req.Range,
		Ticks:     ticks,
		Labels:    scale.FormattedTicks(),
	}
	if view.Ticks == nil {
		view.Ticks = []float64{}
	}
	if req.Range != nil {
		view.Placed = make([]float64, 0, len(ticks))
		for _, tick := range ticks {
			view.Placed = append(view.Placed, scale.Place(tick))
		}
	}
	return view, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text, Backend: search.BackendNone}
	}
	return s.search.Search(ctx, q)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

var _ ContentStore = (*store.PostgresStore)(nil)
