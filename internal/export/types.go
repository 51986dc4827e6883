// Package export renders baked pages to HTML and converts them to
// downloadable documents.
package export

import "errors"

// Format is a download baked next to a page, named by its file extension.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

var (
	// ErrToolMissing means the converter for a format is not installed.
	ErrToolMissing       = errors.New("export: converter not installed")
	ErrUnsupportedFormat = errors.New("export: unsupported format")
)

// Download is one page converted to a Format.
type Download struct {
	Data        []byte
	Filename    string
	ContentType string
}

func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

func newDownload(format Format, title string, data []byte) *Download {
	return &Download{Data: data, Filename: FileName(title, format), ContentType: format.ContentType()}
}
