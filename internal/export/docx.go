package export

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExportDOCX converts html to DOCX by piping it through pandoc.
func (e *Exporter) ExportDOCX(ctx context.Context, html, title string) (*Download, error) {
	pandoc, err := e.lookPath("pandoc")
	if err != nil {
		return nil, fmt.Errorf("%w: pandoc", ErrToolMissing)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, pandoc,
		"-f", "html",
		"-t", "docx",
		"--standalone",
		"--metadata", "title="+title,
		"-o", "-",
	)
	cmd.Stdin = strings.NewReader(html)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("pandoc failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("pandoc execution failed: %w", err)
	}

	return newDownload(FormatDOCX, title, output), nil
}
