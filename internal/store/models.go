package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
)

var ErrInvalidSlug = errors.New("invalid slug")

// Post is a content page with everything needed to bake it.
type Post struct {
	ID                int64             `json:"id,omitempty"`
	Slug              string            `json:"slug"`
	Title             string            `json:"title"`
	Excerpt           string            `json:"excerpt,omitempty"`
	Content           string            `json:"content"`
	Authors           []string          `json:"authors"`
	PublishedAt       time.Time         `json:"publishedAt,omitzero"`
	UpdatedAt         time.Time         `json:"updatedAt,omitzero"`
	Status            string            `json:"status"`
	Deprecated        bool              `json:"deprecated,omitempty"`
	FormattingOptions FormattingOptions `json:"formattingOptions"`
}

// FormattingOptions are per-page rendering hints stored alongside the post.
type FormattingOptions struct {
	SubnavID        string `json:"subnavId,omitempty"`
	SubnavCurrentID string `json:"subnavCurrentId,omitempty"`
	HideAuthors     bool   `json:"hideAuthors,omitempty"`
	BodyClassName   string `json:"bodyClassName,omitempty"`
}

func ParseFormattingOptions(raw []byte) (FormattingOptions, error) {
	var opts FormattingOptions
	if len(raw) == 0 || string(raw) == "null" {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return FormattingOptions{}, err
	}
	opts.SubnavID = strings.TrimSpace(opts.SubnavID)
	return opts, nil
}

// IsPostCitable reports whether post can anchor a citation: it must be
// published, carry a slug and not be deprecated.
func IsPostCitable(post Post) bool {
	return post.Status == StatusPublish &&
		!post.Deprecated &&
		strings.TrimSpace(post.Slug) != ""
}

// NormalizeSlug turns an arbitrary title or path into a URL slug.
func NormalizeSlug(input string) string {
	return slug.Make(strings.Trim(strings.TrimSpace(input), "/"))
}

// ValidSlug rejects slugs that cannot be used as a single path segment.
func ValidSlug(slug string) error {
	if strings.TrimSpace(slug) == "" || strings.ContainsAny(slug, "/\\\x00") || slug == "." || slug == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}
	return nil
}
