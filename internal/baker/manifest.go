package baker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const manifestName = "manifest.json"

// Manifest lists the pages of the last successful bake, keyed by slug.
type Manifest struct {
	RunID       string                  `json:"runId"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Pages       map[string]ManifestPage `json:"pages"`
}

type ManifestPage struct {
	Path         string   `json:"path"`
	Fingerprint  string   `json:"fingerprint"`
	Citable      bool     `json:"citable"`
	CitationSlug string   `json:"citationSlug,omitempty"`
	Downloads    []string `json:"downloads,omitempty"`
}

func (b *Baker) writeManifest(ctx context.Context, report Report) error {
	manifest := Manifest{
		RunID:       report.RunID,
		GeneratedAt: time.Now().UTC(),
		Pages:       make(map[string]ManifestPage, len(report.Pages)),
	}
	for _, page := range report.Pages {
		if page.Err != nil {
			continue
		}
		manifest.Pages[page.Slug] = ManifestPage{
			Path:         page.Path,
			Fingerprint:  page.Fingerprint,
			Citable:      page.Citable,
			CitationSlug: page.CitationSlug,
			Downloads:    page.Downloads,
		}
	}

	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := b.write(ctx, manifestName, append(payload, '\n'), "application/json"); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest written by the last bake into dir.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return manifest, nil
}
