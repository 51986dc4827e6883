package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"chartpress/internal/nav"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("page.html").Funcs(template.FuncMap{
	"formatDate":   formatDate,
	"joinAuthors":  JoinAuthors,
	"citationText": CitationText,
}).ParseFS(templateFS, "templates/page.html"))

// PageData is everything the page template needs for one baked page.
type PageData struct {
	SiteName     string
	Title        string
	Excerpt      string
	ContentHTML  template.HTML
	Authors      []string
	HideAuthors  bool
	PublishedAt  time.Time
	CanonicalURL string
	BodyClass    string
	Subnav       []nav.RenderedItem
	Charts       []template.HTML
	Citation     *Citation
}

// Citation is the block rendered at the bottom of a page. FromLanding marks
// a citation borrowed from the section landing page.
type Citation struct {
	Title       string
	Slug        string
	URL         string
	Authors     []string
	PublishedAt time.Time
	FromLanding bool
}

func RenderPageHTML(data PageData) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render page %q: %w", data.Title, err)
	}
	return buf.String(), nil
}

// JoinAuthors formats names as "A", "A and B" or "A, B and C".
func JoinAuthors(authors []string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

// CitationText renders the plain-text citation shown under a page.
func CitationText(c Citation, siteName string) string {
	var b strings.Builder
	b.WriteString(JoinAuthors(c.Authors))
	if !c.PublishedAt.IsZero() {
		fmt.Fprintf(&b, " (%d)", c.PublishedAt.Year())
	}
	fmt.Fprintf(&b, " - %q.", c.Title)
	if siteName != "" {
		fmt.Fprintf(&b, " Published online at %s.", siteName)
	}
	fmt.Fprintf(&b, " Retrieved from: '%s' [Online Resource]", c.URL)
	return b.String()
}

func formatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}
