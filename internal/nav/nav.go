// Package nav holds the static navigation tree that groups pages into
// sections. The first entry of every section is its landing page.
package nav

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Item struct {
	Label      string   `yaml:"label"`
	Href       string   `yaml:"href"`
	Highlights []string `yaml:"highlights,omitempty"`
}

// Tree maps a subnav identifier to its ordered entries.
type Tree map[string][]Item

func Load(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read nav file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Tree, error) {
	var tree Tree
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode nav: %w", err)
	}
	if tree == nil {
		tree = Tree{}
	}
	for id, items := range tree {
		for i, item := range items {
			if strings.TrimSpace(item.Href) == "" {
				return nil, fmt.Errorf("subnav %s entry %d: href is required", id, i)
			}
		}
	}
	return tree, nil
}

// LandingSlug returns the slug of the landing page of subnavID. External
// links and unknown sections have no landing slug.
func (t Tree) LandingSlug(subnavID string) (string, bool) {
	items, ok := t[subnavID]
	if !ok || len(items) == 0 {
		return "", false
	}
	href := strings.TrimSpace(items[0].Href)
	if strings.Contains(href, "://") {
		return "", false
	}
	slug := strings.Trim(href, "/")
	if slug == "" {
		return "", false
	}
	return slug, true
}

func (t Tree) SubnavIDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Items returns the entries of subnavID with the current page marked.
func (t Tree) Items(subnavID, currentSlug string) []RenderedItem {
	items := t[subnavID]
	rendered := make([]RenderedItem, 0, len(items))
	for i, item := range items {
		rendered = append(rendered, RenderedItem{
			Item:      item,
			IsLanding: i == 0,
			IsCurrent: strings.Trim(item.Href, "/") == currentSlug,
		})
	}
	return rendered
}

type RenderedItem struct {
	Item
	IsLanding bool
	IsCurrent bool
}
