// Package media scores, upgrades, and deduplicates candidate listing image
// URLs. Sites publish the same photo at several resolutions under related
// URLs; the resolver keeps one URL per underlying image, the best variant
// it can identify, in first-seen order.
package media

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"propsift/sites"
)

// logoMarkers disqualify a URL outright, on any site. Brand art rides along
// with listing photos in every gallery harvest.
var logoMarkers = []string{"logo", "icon", "avatar", "sprite", "badge", "placeholder"}

var (
	uuidSegmentRegex = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	hexSegmentRegex  = regexp.MustCompile(`[0-9a-f]{16,}`)
	dimsRegex        = regexp.MustCompile(`(\d{2,5})[x_](\d{2,5})`)

	// trailing size/quality tokens stripped off basenames for identity
	sizeSuffixRegex = regexp.MustCompile(`(?i)[-_](?:origin|original|uncropped[a-z0-9_]*|scaled[a-z0-9_]*|small|medium|large|thumb|thumbnail|xxl|xl|[sml]|\d{2,5}[x_]\d{2,5}|cc_ft_\d+)$`)

	// basenames that are nothing but a size token; identity falls back to
	// the parent path segment
	bareSizeRegex = regexp.MustCompile(`(?i)^(?:origin|original|small|medium|large|thumb|thumbnail|xxl|xl|[sml]|\d{2,5}x\d{2,5})$`)
)

// Resolve filters, upgrades, and dedups candidate URLs for one listing.
// Passing a nil grammar skips the site-specific filter and upgrade passes.
func Resolve(urls []string, g sites.Grammar) []string {
	type candidate struct {
		url   string
		score int
	}
	var order []string
	best := make(map[string]candidate)
	seen := make(map[string]bool)

	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		if IsLogoOrIcon(u) {
			continue
		}
		if g != nil {
			if !g.IsListingImage(u) {
				continue
			}
			u = g.UpgradeImageURL(u)
		}

		key := identityKey(u)
		score := QualityScore(u)
		prev, exists := best[key]
		if !exists {
			order = append(order, key)
			best[key] = candidate{url: u, score: score}
			continue
		}
		if score > prev.score {
			best[key] = candidate{url: u, score: score}
		}
	}

	out := make([]string, 0, len(order))
	for _, key := range order {
		out = append(out, best[key].url)
	}
	return out
}

// IsLogoOrIcon reports whether the URL carries a brand-art marker token.
func IsLogoOrIcon(rawurl string) bool {
	u := strings.ToLower(rawurl)
	for _, marker := range logoMarkers {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}

// identityKey derives the content identity of an image URL: an embedded
// UUID or long hex digest when present, otherwise the basename with size
// tokens stripped, otherwise the parent segment for bare-token basenames
// like ".../<id>/origin.webp".
func identityKey(rawurl string) string {
	u := strings.ToLower(rawurl)
	if m := uuidSegmentRegex.FindString(u); m != "" {
		return m
	}
	if m := hexSegmentRegex.FindString(u); m != "" {
		return m
	}

	p := u
	if parsed, err := url.Parse(u); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	base := path.Base(p)
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	for {
		next := sizeSuffixRegex.ReplaceAllString(base, "")
		if next == base {
			break
		}
		base = next
	}
	if bareSizeRegex.MatchString(base) {
		if parent := path.Base(path.Dir(p)); parent != "" && parent != "." && parent != "/" {
			return parent
		}
	}
	if base == "" {
		return u
	}
	return base
}

// QualityScore ranks a URL variant by the resolution its shape implies.
// Explicit origin/uncropped markers outrank stated pixel dimensions, which
// outrank size-class keywords. Dimension tokens add (or cost) a bonus.
func QualityScore(rawurl string) int {
	u := strings.ToLower(rawurl)
	w, h, hasDims := parseDims(u)

	q := 1
	switch {
	case strings.Contains(u, "origin") || strings.Contains(u, "uncropped"):
		q = 10
	case hasDims && w*h >= 1_000_000:
		q = 8
	case strings.Contains(u, "xxl") || strings.Contains(u, "xl") || strings.Contains(u, "large"):
		q = 5
	case strings.Contains(u, "_l.") || strings.Contains(u, "-l.") || strings.Contains(u, "medium"):
		q = 4
	case strings.Contains(u, "_m.") || strings.Contains(u, "-m."):
		q = 3
	case strings.Contains(u, "_s.") || strings.Contains(u, "-s.") || strings.Contains(u, "small") || strings.Contains(u, "thumb"):
		q = 2
	}

	if hasDims {
		px := w * h
		switch {
		case px > 1_000_000:
			q += 2
		case px > 500_000:
			q++
		case px < 50_000:
			if q-2 > 1 {
				q -= 2
			} else {
				q = 1
			}
		}
	}
	return q
}

func parseDims(u string) (w, h int, ok bool) {
	m := dimsRegex.FindStringSubmatch(u)
	if m == nil {
		return 0, 0, false
	}
	w = atoi(m[1])
	h = atoi(m[2])
	return w, h, w > 0 && h > 0
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
