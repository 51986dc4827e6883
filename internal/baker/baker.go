// Package baker generates the static site: one HTML page per published post,
// optional document downloads, a manifest, and optional publication to object
// storage and the search index.
package baker

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"chartpress/internal/errreport"
	"chartpress/internal/export"
	"chartpress/internal/nav"
	"chartpress/internal/overrides"
	"chartpress/internal/search"
	"chartpress/internal/store"
	"chartpress/internal/util"
)

var ErrPostNotFound = errors.New("post not found")

// ContentSource lists the posts to bake and answers landing page lookups.
type ContentSource interface {
	overrides.ContentStore
	ListPublishedPosts(ctx context.Context) ([]store.Post, error)
}

// Navigation provides the subnav entries rendered on each page.
type Navigation interface {
	Items(subnavID, currentSlug string) []nav.RenderedItem
}

type Exporter interface {
	Export(ctx context.Context, format export.Format, html, title string) (*export.Download, error)
}

type Uploader interface {
	Upload(ctx context.Context, rel string, data []byte, contentType string) (string, error)
}

type Indexer interface {
	IndexPages(pages []search.PageRecord) error
}

type Options struct {
	OutDir   string
	Workers  int
	SiteName string
	Formats  []export.Format
}

// Baker is safe for one BakeAll at a time.
type Baker struct {
	source   ContentSource
	resolver *overrides.Resolver
	nav      Navigation
	charts   *ChartLoader
	exporter Exporter
	uploader Uploader
	indexer  Indexer
	reporter errreport.Reporter
	logger   *zap.Logger
	opts     Options
	warned   sync.Map
}

type Dependencies struct {
	Source   ContentSource
	Resolver *overrides.Resolver
	Nav      Navigation
	Charts   *ChartLoader
	Exporter Exporter
	Uploader Uploader
	Indexer  Indexer
	Reporter errreport.Reporter
	Logger   *zap.Logger
}

func New(deps Dependencies, opts Options) *Baker {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	b := &Baker{
		source:   deps.Source,
		resolver: deps.Resolver,
		nav:      deps.Nav,
		charts:   deps.Charts,
		exporter: deps.Exporter,
		uploader: deps.Uploader,
		indexer:  deps.Indexer,
		reporter: deps.Reporter,
		logger:   deps.Logger,
		opts:     opts,
	}
	if b.reporter == nil {
		b.reporter = errreport.Nop{}
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.nav == nil {
		b.nav = nav.Tree{}
	}
	return b
}

// PageResult describes one baked page. Err is set when the page failed.
type PageResult struct {
	Slug         string    `json:"slug"`
	Path         string    `json:"path"`
	Fingerprint  string    `json:"fingerprint"`
	Citable      bool      `json:"citable"`
	CitationSlug string    `json:"citationSlug,omitempty"`
	Downloads    []string  `json:"downloads,omitempty"`
	BakedAt      time.Time `json:"bakedAt"`
	Err          error     `json:"-"`
}

type Report struct {
	RunID   string       `json:"runId"`
	Started time.Time    `json:"started"`
	Pages   []PageResult `json:"pages"`
	Failed  int          `json:"failed"`
}

// BakeAll bakes every published post. A failing page never stops the batch;
// all page failures are combined into the returned error.
func (b *Baker) BakeAll(ctx context.Context) (Report, error) {
	report := Report{RunID: util.NewID("bake"), Started: time.Now().UTC()}
	logger := b.logger.With(zap.String("run_id", report.RunID))

	posts, err := b.source.ListPublishedPosts(ctx)
	if err != nil {
		return report, fmt.Errorf("list published posts: %w", err)
	}
	if err := os.MkdirAll(b.opts.OutDir, 0o755); err != nil {
		return report, fmt.Errorf("create bake dir: %w", err)
	}
	logger.Info("bake started", zap.Int("pages", len(posts)), zap.Int("workers", b.opts.Workers))

	results := make([]PageResult, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, post := range posts {
		g.Go(func() error {
			results[i] = b.bakePage(gctx, post)
			return nil
		})
	}
	_ = g.Wait() // errors captured in PageResult.Err

	var bakeErr error
	records := make([]search.PageRecord, 0, len(results))
	for i, result := range results {
		if result.Err != nil {
			report.Failed++
			bakeErr = multierr.Append(bakeErr, result.Err)
			logger.Error("page bake failed", zap.String("slug", result.Slug), zap.Error(result.Err))
			continue
		}
		records = append(records, pageRecord(posts[i], result))
	}
	report.Pages = results

	if err := b.writeManifest(ctx, report); err != nil {
		bakeErr = multierr.Append(bakeErr, err)
	}
	if err := b.index(records); err != nil {
		bakeErr = multierr.Append(bakeErr, err)
	}

	logger.Info("bake finished",
		zap.Int("pages", len(results)),
		zap.Int("failed", report.Failed),
		zap.Duration("took", time.Since(report.Started)),
	)
	return report, bakeErr
}

// BakeOne bakes a single published or draft post by slug.
func (b *Baker) BakeOne(ctx context.Context, slug string) (PageResult, error) {
	post, err := b.source.GetFullPostBySlug(ctx, slug)
	if err != nil {
		return PageResult{Slug: slug}, fmt.Errorf("get post %s: %w", slug, err)
	}
	if post == nil {
		return PageResult{Slug: slug}, fmt.Errorf("post %s: %w", slug, ErrPostNotFound)
	}
	result := b.bakePage(ctx, *post)
	return result, result.Err
}

func (b *Baker) bakePage(ctx context.Context, post store.Post) PageResult {
	result := PageResult{Slug: post.Slug, BakedAt: time.Now().UTC()}
	if err := ctx.Err(); err != nil {
		result.Err = fmt.Errorf("bake %s: %w", post.Slug, err)
		return result
	}
	if err := store.ValidSlug(post.Slug); err != nil {
		result.Err = fmt.Errorf("bake: %w", err)
		return result
	}

	citation := b.citationFor(ctx, post)
	if citation != nil {
		result.Citable = true
		result.CitationSlug = citation.Slug
	}

	charts, err := b.renderCharts(post.Slug)
	if err != nil {
		result.Err = fmt.Errorf("bake %s: %w", post.Slug, err)
		return result
	}

	html, err := export.RenderPageHTML(export.PageData{
		SiteName:     b.opts.SiteName,
		Title:        post.Title,
		Excerpt:      post.Excerpt,
		ContentHTML:  template.HTML(post.Content),
		Authors:      post.Authors,
		HideAuthors:  post.FormattingOptions.HideAuthors,
		PublishedAt:  post.PublishedAt,
		CanonicalURL: b.canonicalURL(post.Slug),
		BodyClass:    post.FormattingOptions.BodyClassName,
		Subnav:       b.nav.Items(post.FormattingOptions.SubnavID, post.Slug),
		Charts:       charts,
		Citation:     citation,
	})
	if err != nil {
		result.Err = fmt.Errorf("bake %s: %w", post.Slug, err)
		return result
	}

	rel := filepath.Join(post.Slug, "index.html")
	if err := b.write(ctx, rel, []byte(html), "text/html; charset=utf-8"); err != nil {
		result.Err = fmt.Errorf("bake %s: %w", post.Slug, err)
		return result
	}
	result.Path = filepath.ToSlash(rel)
	result.Fingerprint = Fingerprint([]byte(html))

	for _, format := range b.opts.Formats {
		download, err := b.exportDownload(ctx, post, format, html)
		if err != nil {
			result.Err = multierr.Append(result.Err, fmt.Errorf("bake %s: %w", post.Slug, err))
			continue
		}
		if download != "" {
			result.Downloads = append(result.Downloads, download)
		}
	}
	return result
}

// citationFor prefers the landing page citation and falls back to the post's
// own citation when that is complete.
func (b *Baker) citationFor(ctx context.Context, post store.Post) *export.Citation {
	if b.resolver != nil {
		if o := b.resolver.GetPageOverrides(ctx, post, post.FormattingOptions); overrides.IsPageOverridesCitable(o) {
			return &export.Citation{
				Title:       o.CitationTitle,
				Slug:        o.CitationSlug,
				URL:         o.CitationCanonicalURL,
				Authors:     o.CitationAuthors,
				PublishedAt: o.CitationPublicationDate,
				FromLanding: true,
			}
		}
	}

	if !b.source.IsPostCitable(post) {
		return nil
	}
	own := &overrides.PageOverrides{
		CitationTitle:           post.Title,
		CitationSlug:            post.Slug,
		CitationCanonicalURL:    b.canonicalURL(post.Slug),
		CitationAuthors:         post.Authors,
		CitationPublicationDate: post.PublishedAt,
	}
	if !overrides.IsPageOverridesCitable(own) {
		return nil
	}
	return &export.Citation{
		Title:       own.CitationTitle,
		Slug:        own.CitationSlug,
		URL:         own.CitationCanonicalURL,
		Authors:     own.CitationAuthors,
		PublishedAt: own.CitationPublicationDate,
	}
}

func (b *Baker) canonicalURL(slug string) string {
	if b.resolver == nil {
		return "/" + slug
	}
	return b.resolver.CanonicalURL(slug)
}

func (b *Baker) renderCharts(slug string) ([]template.HTML, error) {
	if b.charts == nil {
		return nil, nil
	}
	return b.charts.Render(slug)
}

func (b *Baker) exportDownload(ctx context.Context, post store.Post, format export.Format, html string) (string, error) {
	if b.exporter == nil {
		return "", nil
	}
	res, err := b.exporter.Export(ctx, format, html, post.Title)
	if errors.Is(err, export.ErrToolMissing) {
		if _, seen := b.warned.LoadOrStore(format, true); !seen {
			b.logger.Warn("skipping downloads, export tool missing", zap.String("format", string(format)), zap.Error(err))
		}
		return "", nil
	}
	if err != nil {
		return "", err
	}
	rel := filepath.Join(post.Slug, res.Filename)
	if err := b.write(ctx, rel, res.Data, res.ContentType); err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// write stores data under the bake dir and uploads it when publishing.
func (b *Baker) write(ctx context.Context, rel string, data []byte, contentType string) error {
	full := filepath.Join(b.opts.OutDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", rel, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if b.uploader == nil {
		return nil
	}
	if _, err := b.uploader.Upload(ctx, rel, data, contentType); err != nil {
		return err
	}
	return nil
}

func (b *Baker) index(records []search.PageRecord) error {
	if b.indexer == nil || len(records) == 0 {
		return nil
	}
	err := b.indexer.IndexPages(records)
	if errors.Is(err, search.ErrIndexUnavailable) {
		b.logger.Warn("search index unavailable, pages not indexed", zap.Int("pages", len(records)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("index pages: %w", err)
	}
	return nil
}

func pageRecord(post store.Post, result PageResult) search.PageRecord {
	return search.PageRecord{
		ID:           post.Slug,
		Slug:         post.Slug,
		Title:        post.Title,
		Excerpt:      post.Excerpt,
		Authors:      post.Authors,
		SubnavID:     post.FormattingOptions.SubnavID,
		CitationSlug: result.CitationSlug,
	}
}

// Fingerprint is the hex blake2b-256 digest of data.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
