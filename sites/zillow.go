package sites

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propsift/models"
)

// Zillow detail URLs look like
// https://www.zillow.com/homedetails/113-E-19th-St-New-York-NY-10003/31506434_zpid/
// with the address dash-encoded in one segment and the native id suffixed
// with _zpid. State payloads hide in comment-wrapped scripts carrying a
// data-zrr-shared-data-key attribute.
type Zillow struct {
	opts Options
}

func NewZillow(opts Options) *Zillow { return &Zillow{opts: opts} }

var (
	zillowZpidRegex   = regexp.MustCompile(`/(\d+)_zpid`)
	zillowDetailRegex = regexp.MustCompile(`https?://(?:www\.)?zillow\.com/homedetails/[^\s)"']+?_zpid/?`)
	zillowLowResRegex = regexp.MustCompile(`-cc_ft_\d+`)
)

func (z *Zillow) ID() string { return "zillow" }

func (z *Zillow) Match(host string) bool { return hostMatches(host, "zillow.com") }

func (z *Zillow) StateKeys() []string {
	return append(append([]string{}, defaultStateKeys...), z.opts.ExtraStateKeys...)
}

func (z *Zillow) StatePayloads(doc *goquery.Document) []string {
	var payloads []string
	doc.Find("script[data-zrr-shared-data-key]").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		text = strings.TrimPrefix(text, "<!--")
		text = strings.TrimSuffix(text, "-->")
		if text = strings.TrimSpace(text); text != "" {
			payloads = append(payloads, text)
		}
	})
	return payloads
}

func (z *Zillow) ExternalID(rawurl string) string {
	if m := zillowZpidRegex.FindStringSubmatch(rawurl); m != nil {
		return m[1]
	}
	return ""
}

func (z *Zillow) DetailURLPattern() *regexp.Regexp { return zillowDetailRegex }

func (z *Zillow) URLAddress(rawurl string) *models.Address {
	// the address segment sits between /homedetails/ and the zpid segment
	const marker = "/homedetails/"
	at := strings.Index(rawurl, marker)
	if at < 0 {
		return nil
	}
	rest := rawurl[at+len(marker):]
	segment, _, ok := strings.Cut(rest, "/")
	if !ok || segment == "" {
		return nil
	}
	return parseDashedAddress(segment)
}

func (z *Zillow) IsListingImage(rawurl string) bool {
	return strings.Contains(rawurl, "photos.zillowstatic.com") ||
		matchesImageHost(rawurl, z.opts.ExtraImageHosts)
}

// UpgradeImageURL swaps the cropped thumbnail suffix for the largest
// uncropped variant the CDN serves.
func (z *Zillow) UpgradeImageURL(rawurl string) string {
	if zillowLowResRegex.MatchString(rawurl) {
		return zillowLowResRegex.ReplaceAllString(rawurl, "-uncropped_scaled_within_1536_1152")
	}
	return rawurl
}

func (z *Zillow) SearchURL(zip string) string {
	return renderSearchURL(z.opts.SearchTemplate, zip)
}
