package sites

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"propsift/models"
)

// Generic is the fallback grammar for hosts no registered grammar claims.
// It knows nothing site-specific: images are accepted by file extension
// only, URLs carry no external id and no address, and there is no search
// template.
type Generic struct{}

func NewGeneric() *Generic { return &Generic{} }

func (g *Generic) ID() string { return "unknown" }

func (g *Generic) Match(_ string) bool { return false }

func (g *Generic) StateKeys() []string { return defaultStateKeys }

func (g *Generic) StatePayloads(_ *goquery.Document) []string { return nil }

func (g *Generic) ExternalID(_ string) string { return "" }

func (g *Generic) DetailURLPattern() *regexp.Regexp { return nil }

func (g *Generic) URLAddress(_ string) *models.Address { return nil }

func (g *Generic) IsListingImage(rawurl string) bool {
	return imageExtensionRegex.MatchString(rawurl)
}

func (g *Generic) UpgradeImageURL(rawurl string) string { return rawurl }

func (g *Generic) SearchURL(_ string) string { return "" }
