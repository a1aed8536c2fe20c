package extract

import (
	"encoding/json"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propsift/normalize"
)

// Structured-data extractor: schema.org JSON-LD blocks. A page can carry
// several blocks (listing, breadcrumb, organization), and the listing data
// is sometimes split between them, so values merge across blocks with a
// most-informative policy: longer string wins, larger number wins. The
// cascade's write-once rule applies between stages, not inside this one.

// ExtractLinkedData collects listing fields from every ld+json script in the
// document. Blocks that fail to parse are skipped.
func ExtractLinkedData(doc *Document) Fields {
	f := Fields{}
	dom := doc.DOM()
	if dom == nil {
		return f
	}
	dom.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := html.UnescapeString(strings.TrimSpace(s.Text()))
		if text == "" {
			return
		}
		raw := parseTolerant(text)
		if raw == nil {
			debugf("linkeddata: unparsable block skipped (%d bytes)", len(text))
			return
		}
		for _, obj := range ldObjects(raw) {
			applyLinkedData(obj, f)
		}
	})
	return f
}

// ldObjects flattens a parsed block into its object members; single objects
// and top-level arrays are both valid JSON-LD shapes.
func ldObjects(raw []byte) []map[string]any {
	var single map[string]any
	if err := json.Unmarshal(raw, &single); err == nil {
		return []map[string]any{single}
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	var out []map[string]any
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func applyLinkedData(obj map[string]any, f Fields) {
	if addr, ok := obj["address"].(map[string]any); ok {
		ldSetString(f, fieldStreet, addr["streetAddress"])
		ldSetString(f, fieldCity, addr["addressLocality"])
		ldSetString(f, fieldState, addr["addressRegion"])
		ldSetString(f, fieldPostalCode, idValue(addr["postalCode"]))
	}
	if geo, ok := obj["geo"].(map[string]any); ok {
		ldSetNumber(f, fieldLatitude, geo["latitude"])
		ldSetNumber(f, fieldLongitude, geo["longitude"])
	}

	ldSetNumber(f, fieldBeds, firstValue(obj["numberOfRooms"], obj["numberOfBedrooms"]))
	ldSetNumber(f, fieldBaths, firstValue(obj["numberOfBathroomsTotal"], obj["numberOfBathrooms"]))
	if size, ok := obj["floorSize"].(map[string]any); ok {
		ldSetNumber(f, fieldInteriorArea, size["value"])
	}
	ldSetNumber(f, fieldYearBuilt, obj["yearBuilt"])
	ldSetString(f, fieldDescription, obj["description"])

	if t := ldPropertyType(obj); t != "" {
		ldSetString(f, fieldPropertyType, t)
	}

	if price := offerPrice(obj["offers"]); price != nil {
		ldSetNumber(f, fieldListPrice, *price)
		ldSetString(f, fieldListingType, "sell")
	}
}

// ldPropertyType reads propertyType when present, else @type filtered to
// real-estate vocabulary so organization or breadcrumb nodes don't leak in.
func ldPropertyType(obj map[string]any) string {
	if t, ok := obj["propertyType"].(string); ok && t != "" {
		return t
	}
	t, _ := obj["@type"].(string)
	flat := strings.ToLower(t)
	for _, token := range []string{"residence", "house", "condo", "apartment", "townho", "family", "land"} {
		if strings.Contains(flat, token) {
			return t
		}
	}
	return ""
}

// offerPrice digs the price out of an offers node, tolerating a bare price
// or a nested priceSpecification, and offers shipped as an array.
func offerPrice(v any) *float64 {
	switch t := v.(type) {
	case map[string]any:
		if p := normalize.ToFloat(t["price"]); p != nil {
			return p
		}
		if spec, ok := t["priceSpecification"].(map[string]any); ok {
			return normalize.ToFloat(spec["price"])
		}
	case []any:
		for _, item := range t {
			if p := offerPrice(item); p != nil {
				return p
			}
		}
	}
	return nil
}

// ldSetString keeps the longer of the existing and incoming strings.
func ldSetString(f Fields, key string, v any) {
	s, ok := v.(string)
	if !ok {
		return
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if prev, had := f[key].(string); had {
		if len(s) > len(prev) {
			f[key] = s
		}
		return
	}
	f[key] = s
}

// ldSetNumber keeps the larger of the existing and incoming numbers.
func ldSetNumber(f Fields, key string, v any) {
	n := normalize.ToFloat(v)
	if n == nil {
		return
	}
	if prev := normalize.ToFloat(f[key]); prev != nil {
		if *n > *prev {
			f[key] = *n
		}
		return
	}
	f[key] = *n
}

// idValue renders a string-or-number identifier (postal codes arrive both
// ways in the wild).
func idValue(v any) any {
	if v == nil {
		return nil
	}
	return idString(v)
}

func firstValue(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
