package sites

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propsift/models"
)

// Compass exposes no stable numeric id in its URLs and no decodable address
// grammar; its value here is the image-host convention: gallery URLs end in
// a WIDTHxHEIGHT.webp thumbnail that has an origin.webp sibling.
type Compass struct {
	opts Options
}

func NewCompass(opts Options) *Compass { return &Compass{opts: opts} }

var (
	compassDetailRegex = regexp.MustCompile(`https?://(?:www\.)?compass\.com/listing/[^\s)"']+`)
	compassThumbRegex  = regexp.MustCompile(`/\d+x\d+\.webp$`)
)

func (c *Compass) ID() string { return "compass" }

func (c *Compass) Match(host string) bool { return hostMatches(host, "compass.com") }

func (c *Compass) StateKeys() []string {
	return append(append([]string{"__PARTIAL_INITIAL_DATA__"}, defaultStateKeys...), c.opts.ExtraStateKeys...)
}

func (c *Compass) StatePayloads(_ *goquery.Document) []string { return nil }

func (c *Compass) ExternalID(_ string) string { return "" }

func (c *Compass) DetailURLPattern() *regexp.Regexp { return compassDetailRegex }

func (c *Compass) URLAddress(_ string) *models.Address { return nil }

func (c *Compass) IsListingImage(rawurl string) bool {
	return strings.Contains(rawurl, "compass.com") ||
		matchesImageHost(rawurl, c.opts.ExtraImageHosts)
}

func (c *Compass) UpgradeImageURL(rawurl string) string {
	if compassThumbRegex.MatchString(rawurl) {
		return compassThumbRegex.ReplaceAllString(rawurl, "/origin.webp")
	}
	return rawurl
}

func (c *Compass) SearchURL(zip string) string {
	return renderSearchURL(c.opts.SearchTemplate, zip)
}
