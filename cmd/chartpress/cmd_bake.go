package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chartpress/internal/baker"
	"chartpress/internal/chartrender"
	"chartpress/internal/export"
	"chartpress/internal/nav"
	"chartpress/internal/overrides"
)

var bakeFlags struct {
	fromSnapshot bool
	slug         string
	outDir       string
	workers      int
	pdf          bool
	docx         bool
	noPublish    bool
	noIndex      bool
}

var bakeCmd = &cobra.Command{
	Use:   "bake",
	Short: "Bake published posts into static pages",
	Long: `Renders every published post (or a single --slug) into HTML with its charts,
subnav and citation block, writes a manifest, and optionally exports PDF/DOCX
downloads, uploads the output to object storage and updates the search index.

A failing page never stops the bake; failures are listed at the end and the
command exits non-zero.`,
	RunE: runBake,
}

func init() {
	f := bakeCmd.Flags()
	f.BoolVar(&bakeFlags.fromSnapshot, "from-snapshot", false, "Bake from the git snapshot instead of Postgres")
	f.StringVar(&bakeFlags.slug, "slug", "", "Bake only the post with this slug")
	f.StringVarP(&bakeFlags.outDir, "out", "o", "", "Output directory (default CHARTPRESS_BAKE_DIR)")
	f.IntVar(&bakeFlags.workers, "workers", 0, "Concurrent pages (default CHARTPRESS_BAKE_WORKERS)")
	f.BoolVar(&bakeFlags.pdf, "pdf", false, "Export a PDF download per page")
	f.BoolVar(&bakeFlags.docx, "docx", false, "Export a DOCX download per page")
	f.BoolVar(&bakeFlags.noPublish, "no-publish", false, "Skip uploading to object storage")
	f.BoolVar(&bakeFlags.noIndex, "no-index", false, "Skip updating the search index")
}

func runBake(cmd *cobra.Command, _ []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()
	ctx := cmd.Context()
	cfg := rt.cfg
	logger := rt.logger

	content, db, err := rt.content(ctx, bakeFlags.fromSnapshot)
	if err != nil {
		return err
	}
	tree, err := nav.Load(cfg.NavFile)
	if err != nil {
		return err
	}
	reporter, _ := rt.reporter()

	deps := baker.Dependencies{
		Source:   content,
		Resolver: overrides.NewResolver(content, tree, reporter, logger.Named("overrides"), cfg.BaseURL),
		Nav:      tree,
		Charts:   baker.NewChartLoader(cfg.ChartsDir, chartrender.NewRenderer(logger.Named("chartrender"))),
		Exporter: export.NewExporter(logger.Named("export"), 60*time.Second),
		Reporter: reporter,
		Logger:   logger.Named("baker"),
	}
	if !bakeFlags.noPublish {
		pub, err := rt.publisher(ctx)
		if err != nil {
			return err
		}
		if pub != nil {
			deps.Uploader = pub
		}
	}
	if !bakeFlags.noIndex {
		searchService, _ := rt.search(db)
		deps.Indexer = searchService
	}

	opts := baker.Options{
		OutDir:   firstNonEmpty(bakeFlags.outDir, cfg.BakeDir),
		Workers:  cfg.BakeWorkers,
		SiteName: cfg.SiteName,
	}
	if bakeFlags.workers > 0 {
		opts.Workers = bakeFlags.workers
	}
	if bakeFlags.pdf || cfg.BakePDF {
		opts.Formats = append(opts.Formats, export.FormatPDF)
	}
	if bakeFlags.docx || cfg.BakeDOCX {
		opts.Formats = append(opts.Formats, export.FormatDOCX)
	}

	b := baker.New(deps, opts)
	out := cmd.OutOrStdout()

	if bakeFlags.slug != "" {
		result, err := b.BakeOne(ctx, bakeFlags.slug)
		if err != nil {
			return fmt.Errorf("bake %s: %w", bakeFlags.slug, err)
		}
		fmt.Fprintf(out, "Baked %s -> %s (%s)\n", result.Slug, result.Path, result.Fingerprint[:12])
		return nil
	}

	report, err := b.BakeAll(ctx)
	fmt.Fprintf(out, "Run:     %s\n", report.RunID)
	fmt.Fprintf(out, "Pages:   %d\n", len(report.Pages))
	fmt.Fprintf(out, "Failed:  %d\n", report.Failed)
	fmt.Fprintf(out, "Output:  %s\n", opts.OutDir)
	for _, page := range report.Pages {
		if page.Err != nil {
			fmt.Fprintf(out, "  FAIL %s: %v\n", page.Slug, page.Err)
		}
	}
	if err != nil {
		if report.Failed == 0 {
			return fmt.Errorf("bake: %w", err)
		}
		return fmt.Errorf("bake finished with %d failed pages", report.Failed)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
