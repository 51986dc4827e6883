// Package search indexes baked pages in Meilisearch and answers page queries,
// falling back to Postgres full-text search when Meilisearch is unavailable.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Snippet string   `json:"snippet"`
	Authors []string `json:"authors,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text     string
	SubnavID string
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// PageRecord is the data we index for a baked page. CitationSlug is the slug
// of the page whose citation the page shows, which is its own slug unless it
// borrows the landing page citation.
type PageRecord struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Excerpt      string   `json:"excerpt"`
	Authors      []string `json:"authors"`
	SubnavID     string   `json:"subnavId,omitempty"`
	CitationSlug string   `json:"citationSlug,omitempty"`
}

const defaultLimit = 20

func (q Query) limit() int {
	if q.Limit <= 0 {
		return defaultLimit
	}
	if q.Limit > 100 {
		return 100
	}
	return q.Limit
}

func (q Query) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}
