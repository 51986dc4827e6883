package baker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"chartpress/internal/chartrender"
)

// ChartLoader renders the charts declared for a page in <dir>/<slug>.json,
// a JSON array of chart specs. Pages without a file have no charts.
type ChartLoader struct {
	dir      string
	renderer *chartrender.Renderer
}

func NewChartLoader(dir string, renderer *chartrender.Renderer) *ChartLoader {
	if renderer == nil {
		renderer = chartrender.NewRenderer(nil)
	}
	return &ChartLoader{dir: dir, renderer: renderer}
}

func (l *ChartLoader) Load(slug string) ([]chartrender.ChartSpec, error) {
	if l.dir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(l.dir, slug+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read charts for %s: %w", slug, err)
	}
	var specs []chartrender.ChartSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode charts for %s: %w", slug, err)
	}
	return specs, nil
}

// Render returns inline SVG markup for every chart of slug.
func (l *ChartLoader) Render(slug string) ([]template.HTML, error) {
	specs, err := l.Load(slug)
	if err != nil {
		return nil, err
	}
	charts := make([]template.HTML, 0, len(specs))
	for _, spec := range specs {
		var buf bytes.Buffer
		if err := l.renderer.RenderSVG(&buf, spec); err != nil {
			return nil, err
		}
		charts = append(charts, template.HTML(buf.String()))
	}
	return charts, nil
}
