// Package sites defines the per-site grammar: how to recognize a source
// from its URL host, where that site embeds its state payloads, how its
// detail URLs and image URLs are shaped, and how to decode an address out
// of a detail URL. Adding a site means adding one Grammar implementation
// and registering it; nothing in the extraction core branches on site
// names.
package sites

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propsift/models"
)

// Grammar captures everything site-specific the pipeline needs.
type Grammar interface {
	// ID is the source identifier written into every row ("zillow",
	// "redfin", ... or "unknown").
	ID() string
	// Match reports whether a URL host belongs to this site.
	Match(host string) bool
	// StateKeys lists the JS variable names whose assigned object should be
	// probed for embedded state, in priority order.
	StateKeys() []string
	// StatePayloads returns raw site-specific state payloads the generic
	// script probes would miss (comment-wrapped blocks, data-attribute
	// scripts). May return nil.
	StatePayloads(doc *goquery.Document) []string
	// ExternalID extracts the site-native listing id from a detail URL, or
	// "" when the URL carries none.
	ExternalID(rawurl string) string
	// DetailURLPattern matches listing detail URLs on search pages.
	DetailURLPattern() *regexp.Regexp
	// URLAddress decodes the address fragments embedded in the detail URL
	// path. Pure function of the URL string; nil when undecodable.
	URLAddress(rawurl string) *models.Address
	// IsListingImage reports whether a URL plausibly points at listing
	// photography on this site's image host.
	IsListingImage(rawurl string) bool
	// UpgradeImageURL rewrites a known low-resolution URL shape to the best
	// variant the host serves, or returns the input unchanged.
	UpgradeImageURL(rawurl string) string
	// SearchURL renders the zip-search seed URL, or "" when the site has no
	// configured search template.
	SearchURL(zip string) string
}

// Options carries the per-site configuration injected at construction.
type Options struct {
	SearchTemplate  string
	ExtraStateKeys  []string
	ExtraImageHosts []string
}

// defaultStateKeys are the framework globals most listing sites hydrate
// from, probed on every site unless the grammar overrides them.
var defaultStateKeys = []string{"__NEXT_DATA__", "__REDUX_STATE__", "__INITIAL_STATE__"}

var imageExtensionRegex = regexp.MustCompile(`(?i)(\.jpg|\.jpeg|\.png|\.webp|\.avif|\.heic|\.gif)(\?|$)`)

// Registry resolves URLs to grammars.
type Registry struct {
	grammars []Grammar
	generic  Grammar
}

// NewRegistry builds the known grammars with their options keyed by source
// id. Missing entries get zero options.
func NewRegistry(opts map[string]Options) *Registry {
	return &Registry{
		grammars: []Grammar{
			NewZillow(opts["zillow"]),
			NewRedfin(opts["redfin"]),
			NewCompass(opts["compass"]),
		},
		generic: NewGeneric(),
	}
}

// DefaultRegistry is a registry with no seed templates, sufficient for
// pure extraction.
func DefaultRegistry() *Registry {
	return NewRegistry(nil)
}

// Detect returns the grammar owning the URL's host, falling back to the
// generic grammar. The source id is always derived here, never from
// document content.
func (r *Registry) Detect(rawurl string) Grammar {
	u, err := url.Parse(rawurl)
	if err != nil || u.Host == "" {
		return r.generic
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	for _, g := range r.grammars {
		if g.Match(host) {
			return g
		}
	}
	return r.generic
}

// Get returns the grammar with the given id, or nil.
func (r *Registry) Get(id string) Grammar {
	for _, g := range r.grammars {
		if g.ID() == id {
			return g
		}
	}
	if r.generic.ID() == id {
		return r.generic
	}
	return nil
}

// Known returns the site grammars (generic excluded).
func (r *Registry) Known() []Grammar {
	return r.grammars
}

// hostMatches reports whether host is domain or a subdomain of it.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// matchesImageHost reports whether the URL contains any of the configured
// extra image hosts. Sites move photo CDNs without notice; the YAML seeds
// extend the built-in host checks.
func matchesImageHost(rawurl string, hosts []string) bool {
	for _, host := range hosts {
		if host != "" && strings.Contains(rawurl, host) {
			return true
		}
	}
	return false
}

func renderSearchURL(template, zip string) string {
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{ZIP}", zip)
}

// streetSuffixes mark the end of the street portion in dash-encoded URL
// segments like "113-E-19th-St-New-York-NY-10003".
var streetSuffixes = map[string]bool{
	"st": true, "ave": true, "blvd": true, "dr": true, "rd": true,
	"ct": true, "pl": true, "ln": true, "ter": true, "cir": true,
	"way": true, "hwy": true, "pkwy": true, "sq": true, "walk": true,
	"street": true, "avenue": true, "boulevard": true, "drive": true,
	"road": true, "court": true, "place": true, "lane": true,
	"terrace": true, "circle": true, "highway": true, "parkway": true,
}

var (
	zipTokenRegex   = regexp.MustCompile(`^\d{5}$`)
	stateTokenRegex = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// parseDashedAddress decodes one combined "street-...-City-ST-zip" segment.
// The zip and state anchor the tail; a street-suffix token splits street
// from city. Returns nil when neither anchor is present.
func parseDashedAddress(segment string) *models.Address {
	tokens := strings.Split(segment, "-")
	if len(tokens) < 3 {
		return nil
	}

	addr := &models.Address{}
	if zipTokenRegex.MatchString(tokens[len(tokens)-1]) {
		addr.PostalCode = tokens[len(tokens)-1]
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) > 0 && stateTokenRegex.MatchString(tokens[len(tokens)-1]) && strings.ToUpper(tokens[len(tokens)-1]) == tokens[len(tokens)-1] {
		addr.State = tokens[len(tokens)-1]
		tokens = tokens[:len(tokens)-1]
	}
	if addr.PostalCode == "" && addr.State == "" {
		return nil
	}

	suffixAt := -1
	for i, tok := range tokens {
		if streetSuffixes[strings.ToLower(tok)] {
			suffixAt = i
		}
	}
	if suffixAt >= 0 && suffixAt < len(tokens)-1 {
		addr.Street = strings.Join(tokens[:suffixAt+1], " ")
		rest := tokens[suffixAt+1:]
		// unit marker directly after the street suffix
		if len(rest) >= 2 && isUnitMarker(rest[0]) {
			addr.Unit = strings.Join(rest[:2], " ")
			rest = rest[2:]
		}
		addr.City = strings.Join(rest, " ")
	} else {
		addr.Street = strings.Join(tokens, " ")
	}
	return addr
}

func isUnitMarker(tok string) bool {
	switch strings.ToLower(tok) {
	case "apt", "unit", "ste", "fl":
		return true
	}
	return false
}
