// Package overrides decides whether a page borrows the citation of the
// landing page of its navigation section.
package overrides

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"chartpress/internal/errreport"
	"chartpress/internal/store"
)

// PageOverrides replaces a page's own citation metadata.
type PageOverrides struct {
	CitationTitle           string    `json:"citationTitle,omitempty"`
	CitationSlug            string    `json:"citationSlug,omitempty"`
	CitationCanonicalURL    string    `json:"citationCanonicalUrl,omitempty"`
	CitationAuthors         []string  `json:"citationAuthors,omitempty"`
	CitationPublicationDate time.Time `json:"citationPublicationDate,omitzero"`
}

// IsPageOverridesCitable reports whether all five citation fields are set.
func IsPageOverridesCitable(o *PageOverrides) bool {
	if o == nil {
		return false
	}
	return strings.TrimSpace(o.CitationTitle) != "" &&
		strings.TrimSpace(o.CitationSlug) != "" &&
		strings.TrimSpace(o.CitationCanonicalURL) != "" &&
		hasAuthor(o.CitationAuthors) &&
		!o.CitationPublicationDate.IsZero()
}

func hasAuthor(authors []string) bool {
	for _, a := range authors {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return false
}

type ContentStore interface {
	GetFullPostBySlug(ctx context.Context, slug string) (*store.Post, error)
	IsPostCitable(post store.Post) bool
}

type Navigation interface {
	LandingSlug(subnavID string) (string, bool)
}

type Resolver struct {
	content  ContentStore
	nav      Navigation
	reporter errreport.Reporter
	logger   *zap.Logger
	baseURL  string
}

func NewResolver(content ContentStore, nav Navigation, reporter errreport.Reporter, logger *zap.Logger, baseURL string) *Resolver {
	if reporter == nil {
		reporter = errreport.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		content:  content,
		nav:      nav,
		reporter: reporter,
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// CanonicalURL is the public address of slug.
func (r *Resolver) CanonicalURL(slug string) string {
	return r.baseURL + "/" + slug
}

// GetPageOverrides returns the landing page citation for post, or nil when
// the post has no citable landing page. Lookup failures are reported and
// degrade to nil.
func (r *Resolver) GetPageOverrides(ctx context.Context, post store.Post, opts store.FormattingOptions) *PageOverrides {
	landing := r.GetLandingOnlyIfParent(ctx, post, opts)
	if landing == nil {
		return nil
	}
	if !r.content.IsPostCitable(*landing) {
		r.logger.Debug("landing page is not citable",
			zap.String("slug", post.Slug),
			zap.String("landing", landing.Slug),
		)
		return nil
	}

	authors := make([]string, len(landing.Authors))
	copy(authors, landing.Authors)
	return &PageOverrides{
		CitationTitle:           landing.Title,
		CitationSlug:            landing.Slug,
		CitationCanonicalURL:    r.CanonicalURL(landing.Slug),
		CitationAuthors:         authors,
		CitationPublicationDate: landing.PublishedAt,
	}
}

// GetLandingOnlyIfParent returns the landing page of the post's section when
// it is a different page from post.
func (r *Resolver) GetLandingOnlyIfParent(ctx context.Context, post store.Post, opts store.FormattingOptions) *store.Post {
	subnavID := strings.TrimSpace(opts.SubnavID)
	if subnavID == "" {
		return nil
	}
	landingSlug, ok := r.nav.LandingSlug(subnavID)
	if !ok || landingSlug == "" {
		return nil
	}
	if landingSlug == post.Slug {
		return nil
	}
	return r.fetchNoFail(ctx, landingSlug, post.Slug)
}

func (r *Resolver) fetchNoFail(ctx context.Context, landingSlug, forSlug string) *store.Post {
	landing, err := r.content.GetFullPostBySlug(ctx, landingSlug)
	if err != nil {
		r.logger.Warn("landing page lookup failed",
			zap.String("slug", forSlug),
			zap.String("landing", landingSlug),
			zap.Error(err),
		)
		r.reporter.Report(ctx, err, map[string]string{
			"operation": "get_landing_page",
			"slug":      forSlug,
			"landing":   landingSlug,
		})
		return nil
	}
	if landing == nil {
		r.logger.Warn("landing page not found",
			zap.String("slug", forSlug),
			zap.String("landing", landingSlug),
		)
		return nil
	}
	return landing
}
