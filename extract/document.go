// Package extract implements the multi-strategy field extraction cascade:
// embedded script state, linked data, meta tags, then text/DOM heuristics,
// each stage filling only the fields earlier stages left empty.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is one fetched listing page: the raw HTML plus an optional
// pre-rendered markdown companion from the render API. The goquery DOM is
// parsed lazily and cached; a document that fails to parse degrades to
// text-only extraction instead of erroring.
type Document struct {
	SourceURL string
	HTML      string
	Markdown  string

	dom       *goquery.Document
	domParsed bool
}

func NewDocument(sourceURL, html, markdown string) *Document {
	return &Document{SourceURL: sourceURL, HTML: html, Markdown: markdown}
}

// DOM returns the parsed document, or nil when the HTML is unparseable.
func (d *Document) DOM() *goquery.Document {
	if d.domParsed {
		return d.dom
	}
	d.domParsed = true
	if strings.TrimSpace(d.HTML) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.HTML))
	if err != nil {
		debugf("document: html parse failed for %s: %v", d.SourceURL, err)
		return nil
	}
	d.dom = doc
	return d.dom
}

// Text returns the best rendered-text view of the page: the markdown
// companion when present, otherwise the DOM's visible text with script and
// style contents removed.
func (d *Document) Text() string {
	if d.Markdown != "" {
		return d.Markdown
	}
	return d.VisibleText()
}

// VisibleText extracts the human-visible text of the HTML. Used by the
// blocked-page detector, which must judge what a reader would see, not how
// many bytes of framework boilerplate the page ships.
func (d *Document) VisibleText() string {
	dom := d.DOM()
	if dom == nil {
		return ""
	}
	clone := dom.Clone()
	clone.Find("script, style, noscript").Remove()
	return strings.TrimSpace(clone.Text())
}

// Origin returns scheme://host of the source URL for resolving relative
// image references, or "" when the URL is unparseable.
func (d *Document) Origin() string {
	u, err := url.Parse(d.SourceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// ResolveURL turns protocol-relative and root-relative references into
// absolute URLs against the document origin. Already-absolute URLs pass
// through; anything else unresolvable returns "".
func (d *Document) ResolveURL(ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "//"):
		u, err := url.Parse(d.SourceURL)
		if err != nil || u.Scheme == "" {
			return "https:" + ref
		}
		return u.Scheme + ":" + ref
	case strings.HasPrefix(ref, "/"):
		origin := d.Origin()
		if origin == "" {
			return ""
		}
		return origin + ref
	default:
		return ""
	}
}
