package extract

import (
	"strings"
)

// Meta-tag extractor: OpenGraph and Twitter Card tags. These only ever
// carry a title, a description, and one hero image.

// ExtractMeta reads the social-card meta tags. OpenGraph outranks Twitter
// when both are present.
func ExtractMeta(doc *Document) Fields {
	f := Fields{}
	dom := doc.DOM()
	if dom == nil {
		return f
	}

	content := func(names ...string) string {
		for _, n := range names {
			for _, sel := range []string{`meta[property="` + n + `"]`, `meta[name="` + n + `"]`} {
				if v, ok := dom.Find(sel).First().Attr("content"); ok {
					if v = strings.TrimSpace(v); v != "" {
						return v
					}
				}
			}
		}
		return ""
	}

	f.set(fieldTitle, content("og:title", "twitter:title"))
	f.set(fieldDescription, content("og:description", "twitter:description"))
	if img := content("og:image", "twitter:image"); strings.HasPrefix(img, "http") {
		f.set(fieldImages, []string{img})
	}
	return f
}
