package ingest

import (
	"context"
	"fmt"
	"strings"

	"propsift/extract"
	"propsift/sites"
)

// Collector walks a source's zip list and harvests detail URLs from its
// search pages.
type Collector struct {
	fetcher *Fetcher
}

func NewCollector(fetcher *Fetcher) *Collector {
	return &Collector{fetcher: fetcher}
}

// CollectZip fetches one zip's search page and extracts detail URLs,
// capped at limit.
func (c *Collector) CollectZip(ctx context.Context, g sites.Grammar, zip string, limit int) ([]string, error) {
	searchURL := g.SearchURL(zip)
	if searchURL == "" {
		return nil, fmt.Errorf("no search template for %s", g.ID())
	}

	result := c.fetcher.Fetch(ctx, searchURL)
	if result.Error != nil {
		return nil, fmt.Errorf("fetch search page: %w", result.Error)
	}

	if extract.IsBlocked(extract.NewDocument(searchURL, result.HTML, result.Markdown)) {
		return nil, fmt.Errorf("search page blocked: %s", searchURL)
	}

	return ExtractDetailURLs(g, result.HTML, result.Markdown, limit), nil
}

// dedupeOrdered removes duplicates while keeping first-appearance order.
// Zip searches overlap at boundaries, so the same listing surfaces in
// neighboring zips.
func dedupeOrdered(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// ExtractDetailURLs pulls listing detail URLs out of search page content.
// Both renderings are scanned: markdown keeps links that hydration-heavy
// HTML only carries in script payloads. First-appearance order is kept;
// limit <= 0 means uncapped.
func ExtractDetailURLs(g sites.Grammar, html, markdown string, limit int) []string {
	pattern := g.DetailURLPattern()
	if pattern == nil {
		return nil
	}

	var urls []string
	seen := make(map[string]bool)
	for _, text := range []string{html, markdown} {
		for _, match := range pattern.FindAllString(text, -1) {
			match = strings.TrimRight(match, ").,")
			if match == "" || seen[match] {
				continue
			}
			seen[match] = true
			urls = append(urls, match)
			if limit > 0 && len(urls) >= limit {
				return urls
			}
		}
	}
	return urls
}
