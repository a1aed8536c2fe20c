package sites

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propsift/models"
)

// Redfin detail URLs spell the address out across path segments:
// https://www.redfin.com/NY/New-York/135-E-19th-St-10003/home/214073302
// (optionally with a /unit-3A/ segment before /home/). The page hydrates
// from a __NEXT_DATA__ script, which the generic probes already pick up.
type Redfin struct {
	opts Options
}

func NewRedfin(opts Options) *Redfin { return &Redfin{opts: opts} }

var (
	redfinHomeIDRegex = regexp.MustCompile(`/home/(\d+)`)
	redfinDetailRegex = regexp.MustCompile(`https?://(?:www\.)?redfin\.com/[^\s)"']*?/home/\d+[^\s)"']*`)
)

func (r *Redfin) ID() string { return "redfin" }

func (r *Redfin) Match(host string) bool { return hostMatches(host, "redfin.com") }

func (r *Redfin) StateKeys() []string {
	keys := append([]string{"__reactServerState"}, defaultStateKeys...)
	return append(keys, r.opts.ExtraStateKeys...)
}

func (r *Redfin) StatePayloads(_ *goquery.Document) []string { return nil }

func (r *Redfin) ExternalID(rawurl string) string {
	if m := redfinHomeIDRegex.FindStringSubmatch(rawurl); m != nil {
		return m[1]
	}
	return ""
}

func (r *Redfin) DetailURLPattern() *regexp.Regexp { return redfinDetailRegex }

func (r *Redfin) URLAddress(rawurl string) *models.Address {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	// STATE / City-Name / street-with-zip [/ unit-N] / home / id
	if len(segments) < 3 {
		return nil
	}
	if !stateTokenRegex.MatchString(segments[0]) || strings.ToUpper(segments[0]) != segments[0] {
		return nil
	}

	addr := &models.Address{
		State: segments[0],
		City:  strings.ReplaceAll(segments[1], "-", " "),
	}

	streetTokens := strings.Split(segments[2], "-")
	if n := len(streetTokens); n > 1 && zipTokenRegex.MatchString(streetTokens[n-1]) {
		addr.PostalCode = streetTokens[n-1]
		streetTokens = streetTokens[:n-1]
	}
	addr.Street = strings.Join(streetTokens, " ")

	for _, seg := range segments[3:] {
		if unit, ok := strings.CutPrefix(seg, "unit-"); ok {
			addr.Unit = unit
			break
		}
	}
	return addr
}

func (r *Redfin) IsListingImage(rawurl string) bool {
	return strings.Contains(rawurl, "ssl.cdn-redfin.com") ||
		matchesImageHost(rawurl, r.opts.ExtraImageHosts)
}

func (r *Redfin) UpgradeImageURL(rawurl string) string { return rawurl }

func (r *Redfin) SearchURL(zip string) string {
	return renderSearchURL(r.opts.SearchTemplate, zip)
}
