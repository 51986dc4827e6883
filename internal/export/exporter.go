package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Exporter converts rendered page HTML into documents using external tools.
type Exporter struct {
	logger   *zap.Logger
	timeout  time.Duration
	lookPath func(string) (string, error)
}

func NewExporter(logger *zap.Logger, timeout time.Duration) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Exporter{logger: logger, timeout: timeout, lookPath: exec.LookPath}
}

func (e *Exporter) Export(ctx context.Context, format Format, html, title string) (*Download, error) {
	switch format {
	case FormatPDF:
		return e.ExportPDF(ctx, html, title)
	case FormatDOCX:
		return e.ExportDOCX(ctx, html, title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Available reports whether the tool backing format is installed.
func (e *Exporter) Available(format Format) bool {
	switch format {
	case FormatPDF:
		return e.chromePath() != ""
	case FormatDOCX:
		_, err := e.lookPath("pandoc")
		return err == nil
	default:
		return false
	}
}

func (e *Exporter) chromePath() string {
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome"} {
		if path, err := e.lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// FileName builds a download name such as "co2-emissions.pdf" from title.
func FileName(title string, format Format) string {
	name := slug.Make(title)
	if len(name) > 60 {
		name = strings.TrimRight(name[:60], "-")
	}
	if name == "" {
		name = "page"
	}
	return name + "." + string(format)
}
