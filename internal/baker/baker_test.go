package baker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"

	"chartpress/internal/export"
	"chartpress/internal/nav"
	"chartpress/internal/overrides"
	"chartpress/internal/search"
	"chartpress/internal/store"
)

type memorySource struct {
	mu     sync.Mutex
	posts  map[string]store.Post
	getErr map[string]error
	gets   []string
}

func newMemorySource(posts ...store.Post) *memorySource {
	src := &memorySource{posts: map[string]store.Post{}, getErr: map[string]error{}}
	for _, p := range posts {
		src.posts[p.Slug] = p
	}
	return src
}

func (m *memorySource) GetFullPostBySlug(_ context.Context, slug string) (*store.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = append(m.gets, slug)
	if err := m.getErr[slug]; err != nil {
		return nil, err
	}
	post, ok := m.posts[slug]
	if !ok {
		return nil, nil
	}
	return &post, nil
}

func (m *memorySource) IsPostCitable(post store.Post) bool {
	return store.IsPostCitable(post)
}

func (m *memorySource) ListPublishedPosts(context.Context) ([]store.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts := make([]store.Post, 0, len(m.posts))
	for _, p := range m.posts {
		if p.Status == store.StatusPublish {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].Slug < posts[j].Slug })
	return posts, nil
}

type memoryUploader struct {
	mu   sync.Mutex
	keys map[string]string
}

func (u *memoryUploader) Upload(_ context.Context, rel string, _ []byte, contentType string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.keys == nil {
		u.keys = map[string]string{}
	}
	key := filepath.ToSlash(rel)
	u.keys[key] = contentType
	return key, nil
}

type recordingIndexer struct {
	pages []search.PageRecord
	err   error
}

func (r *recordingIndexer) IndexPages(pages []search.PageRecord) error {
	r.pages = append(r.pages, pages...)
	return r.err
}

type stubExporter struct {
	err error
}

func (s stubExporter) Export(_ context.Context, format export.Format, _ string, title string) (*export.Download, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &export.Download{Data: []byte("%PDF-1.7"), Filename: export.FileName(title, format), ContentType: format.ContentType()}, nil
}

type countingReporter struct {
	mu    sync.Mutex
	count int
}

func (c *countingReporter) Report(context.Context, error, map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

var published = time.Date(2020, 11, 28, 0, 0, 0, 0, time.UTC)

var testNav = nav.Tree{
	"energy": {
		{Label: "Energy", Href: "/energy"},
		{Label: "Electricity Mix", Href: "/electricity-mix"},
		{Label: "Fossil Fuels", Href: "/fossil-fuels"},
	},
}

func energyPosts() []store.Post {
	return []store.Post{
		{
			Slug:              "energy",
			Title:             "Energy",
			Excerpt:           "How the world produces energy",
			Content:           "<p>Energy overview</p>",
			Authors:           []string{"Hannah Ritchie", "Max Roser"},
			PublishedAt:       published,
			Status:            store.StatusPublish,
			FormattingOptions: store.FormattingOptions{SubnavID: "energy"},
		},
		{
			Slug:              "electricity-mix",
			Title:             "Electricity Mix",
			Content:           "<p>Mix</p>",
			Authors:           []string{"Pablo Rosado"},
			PublishedAt:       published.AddDate(1, 0, 0),
			Status:            store.StatusPublish,
			FormattingOptions: store.FormattingOptions{SubnavID: "energy"},
		},
		{
			Slug:    "about",
			Title:   "About",
			Content: "<p>About us</p>",
			Status:  store.StatusPublish,
		},
		{
			Slug:   "draft",
			Title:  "Draft",
			Status: store.StatusDraft,
		},
	}
}

type fixture struct {
	baker    *Baker
	source   *memorySource
	uploader *memoryUploader
	indexer  *recordingIndexer
	reporter *countingReporter
	outDir   string
}

func newFixture(t *testing.T, chartsDir string, exporter Exporter, formats ...export.Format) *fixture {
	t.Helper()
	f := &fixture{
		source:   newMemorySource(energyPosts()...),
		uploader: &memoryUploader{},
		indexer:  &recordingIndexer{},
		reporter: &countingReporter{},
		outDir:   t.TempDir(),
	}
	resolver := overrides.NewResolver(f.source, testNav, f.reporter, nil, "https://example.org")
	f.baker = New(Dependencies{
		Source:   f.source,
		Resolver: resolver,
		Nav:      testNav,
		Charts:   NewChartLoader(chartsDir, nil),
		Exporter: exporter,
		Uploader: f.uploader,
		Indexer:  f.indexer,
		Reporter: f.reporter,
	}, Options{OutDir: f.outDir, Workers: 2, SiteName: "Chartpress", Formats: formats})
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestBakeAllUsesLandingCitation(t *testing.T) {
	f := newFixture(t, "", nil)

	report, err := f.baker.BakeAll(context.Background())
	if err != nil {
		t.Fatalf("BakeAll() error = %v", err)
	}
	if report.Failed != 0 || len(report.Pages) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !strings.HasPrefix(report.RunID, "bake_") {
		t.Fatalf("unexpected run id %q", report.RunID)
	}

	child := readFile(t, filepath.Join(f.outDir, "electricity-mix", "index.html"))
	if !strings.Contains(child, "Hannah Ritchie and Max Roser (2020)") {
		t.Error("child page should cite the landing page")
	}
	if strings.Contains(child, "Pablo Rosado (2021)") {
		t.Error("child page should not show its own citation")
	}

	landing := readFile(t, filepath.Join(f.outDir, "energy", "index.html"))
	if !strings.Contains(landing, "Hannah Ritchie and Max Roser (2020)") {
		t.Error("landing page should show its own citation")
	}

	about := readFile(t, filepath.Join(f.outDir, "about", "index.html"))
	if strings.Contains(about, "Cite this work") {
		t.Error("page without authors or date should have no citation block")
	}

	if _, err := os.Stat(filepath.Join(f.outDir, "draft")); !os.IsNotExist(err) {
		t.Error("draft posts must not be baked")
	}

	manifest, err := ReadManifest(f.outDir)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if manifest.RunID != report.RunID {
		t.Fatalf("manifest run id %q, want %q", manifest.RunID, report.RunID)
	}
	want := map[string]bool{"energy": true, "electricity-mix": true, "about": false}
	for slug, citable := range want {
		page, ok := manifest.Pages[slug]
		if !ok {
			t.Fatalf("manifest missing %s", slug)
		}
		if page.Citable != citable {
			t.Errorf("%s citable = %v, want %v", slug, page.Citable, citable)
		}
		if page.Fingerprint != Fingerprint([]byte(readFile(t, filepath.Join(f.outDir, slug, "index.html")))) {
			t.Errorf("%s fingerprint does not match baked html", slug)
		}
	}
	if manifest.Pages["electricity-mix"].CitationSlug != "energy" {
		t.Errorf("child citation slug = %q", manifest.Pages["electricity-mix"].CitationSlug)
	}
	if f.reporter.count != 0 {
		t.Errorf("unexpected error reports: %d", f.reporter.count)
	}
}

func TestBakeAllPublishesAndIndexes(t *testing.T) {
	f := newFixture(t, "", nil)
	if _, err := f.baker.BakeAll(context.Background()); err != nil {
		t.Fatalf("BakeAll() error = %v", err)
	}

	keys := make([]string, 0, len(f.uploader.keys))
	for k := range f.uploader.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	wantKeys := []string{"about/index.html", "electricity-mix/index.html", "energy/index.html", "manifest.json"}
	if diff := cmp.Diff(wantKeys, keys); diff != "" {
		t.Fatalf("uploaded keys mismatch (-want +got):\n%s", diff)
	}
	if f.uploader.keys["manifest.json"] != "application/json" {
		t.Fatalf("manifest content type = %q", f.uploader.keys["manifest.json"])
	}

	if len(f.indexer.pages) != 3 {
		t.Fatalf("expected 3 indexed pages, got %d", len(f.indexer.pages))
	}
	for _, rec := range f.indexer.pages {
		if rec.Slug == "electricity-mix" && rec.CitationSlug != "energy" {
			t.Fatalf("indexed child citation slug = %q", rec.CitationSlug)
		}
	}
}

func TestBakeAllIgnoresUnavailableIndex(t *testing.T) {
	f := newFixture(t, "", nil)
	f.indexer.err = search.ErrIndexUnavailable
	if _, err := f.baker.BakeAll(context.Background()); err != nil {
		t.Fatalf("BakeAll() error = %v", err)
	}

	f.indexer.err = errors.New("meili rejected documents")
	if _, err := f.baker.BakeAll(context.Background()); err == nil || !strings.Contains(err.Error(), "index pages") {
		t.Fatalf("expected index error, got %v", err)
	}
}

func TestBakeAllLandingLookupFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t, "", nil)
	f.source.getErr["energy"] = errors.New("connection reset")

	report, err := f.baker.BakeAll(context.Background())
	if err != nil {
		t.Fatalf("BakeAll() error = %v", err)
	}
	if report.Failed != 0 {
		t.Fatalf("landing lookup failure must not fail pages, got %d failures", report.Failed)
	}
	if f.reporter.count != 1 {
		t.Fatalf("expected exactly one error report, got %d", f.reporter.count)
	}

	child := readFile(t, filepath.Join(f.outDir, "electricity-mix", "index.html"))
	if !strings.Contains(child, "Pablo Rosado (2021)") {
		t.Error("child page should fall back to its own citation")
	}
}

func TestBakeAllCollectsPageFailures(t *testing.T) {
	chartsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(chartsDir, "about.json"), []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	specs := `[{"title":"Share of electricity","series":[{"name":"Coal","x":[2000,2010,2020],"y":[40,38,35]}]}]`
	if err := os.WriteFile(filepath.Join(chartsDir, "electricity-mix.json"), []byte(specs), 0o644); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, chartsDir, nil)

	report, err := f.baker.BakeAll(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if report.Failed != 1 || len(multierr.Errors(err)) != 1 {
		t.Fatalf("expected one failure, got %d (%v)", report.Failed, err)
	}
	if !strings.Contains(err.Error(), "bake about") {
		t.Fatalf("error should name the failing page: %v", err)
	}

	child := readFile(t, filepath.Join(f.outDir, "electricity-mix", "index.html"))
	if !strings.Contains(child, "<svg") {
		t.Error("expected inline chart svg")
	}

	manifest, err := ReadManifest(f.outDir)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if _, ok := manifest.Pages["about"]; ok {
		t.Error("failed page must not be in the manifest")
	}
}

func TestBakeAllRejectsSlugOutsideOutDir(t *testing.T) {
	f := newFixture(t, "", nil)
	f.source.posts["../escaped"] = store.Post{
		Slug:    "../escaped",
		Title:   "Escaped",
		Content: "<p>outside</p>",
		Status:  store.StatusPublish,
	}

	report, err := f.baker.BakeAll(context.Background())
	if !errors.Is(err, store.ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected one failure, got %d", report.Failed)
	}
	if _, err := os.Stat(filepath.Join(f.outDir, "..", "escaped")); !os.IsNotExist(err) {
		t.Fatalf("page was written outside the output dir: %v", err)
	}
	for key := range f.uploader.keys {
		if strings.Contains(key, "..") {
			t.Fatalf("uploaded key %q escapes the prefix", key)
		}
	}

	if _, err := f.baker.BakeOne(context.Background(), "../escaped"); !errors.Is(err, store.ErrInvalidSlug) {
		t.Fatalf("BakeOne() expected ErrInvalidSlug, got %v", err)
	}
}

func TestBakeAllDownloads(t *testing.T) {
	f := newFixture(t, "", stubExporter{}, export.FormatPDF)
	report, err := f.baker.BakeAll(context.Background())
	if err != nil {
		t.Fatalf("BakeAll() error = %v", err)
	}
	for _, page := range report.Pages {
		if len(page.Downloads) != 1 {
			t.Fatalf("%s downloads = %v", page.Slug, page.Downloads)
		}
	}
	if got := readFile(t, filepath.Join(f.outDir, "energy", "energy.pdf")); got != "%PDF-1.7" {
		t.Fatalf("unexpected pdf contents %q", got)
	}
}

func TestBakeAllSkipsMissingExportTool(t *testing.T) {
	f := newFixture(t, "", stubExporter{err: export.ErrToolMissing}, export.FormatPDF)
	report, err := f.baker.BakeAll(context.Background())
	if err != nil {
		t.Fatalf("BakeAll() error = %v", err)
	}
	for _, page := range report.Pages {
		if len(page.Downloads) != 0 {
			t.Fatalf("expected no downloads for %s", page.Slug)
		}
	}
}

func TestBakeAllCancelled(t *testing.T) {
	f := newFixture(t, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.baker.BakeAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Failed != 3 {
		t.Fatalf("expected every page to fail, got %d", report.Failed)
	}
}

func TestBakeOne(t *testing.T) {
	f := newFixture(t, "", nil)

	result, err := f.baker.BakeOne(context.Background(), "electricity-mix")
	if err != nil {
		t.Fatalf("BakeOne() error = %v", err)
	}
	if result.CitationSlug != "energy" || result.Path != "electricity-mix/index.html" {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := f.baker.BakeOne(context.Background(), "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("<html></html>"))
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a != Fingerprint([]byte("<html></html>")) {
		t.Fatal("fingerprint should be deterministic")
	}
	if a == Fingerprint([]byte("<html> </html>")) {
		t.Fatal("different input should change the fingerprint")
	}
}
