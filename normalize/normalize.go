// Package normalize coerces the loosely-typed values extraction produces
// into the typed fields the projector consumes. Every function is total:
// unparseable input yields nil (or the input unchanged for dates), never an
// error and never a zero sentinel.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"propsift/models"
)

var (
	nonNumericRegex = regexp.MustCompile(`[^\d.]`)
	isoDateRegex    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

	// LongDateRegex matches "March 5, 2024" style dates, abbreviated months
	// included. Shared with the text-probe extractors.
	LongDateRegex = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)

	// PhoneRegex matches North-American phone numbers with optional country
	// code and mixed separators.
	PhoneRegex = regexp.MustCompile(`(?:\+?1[\s\-.]?)?\(?\d{3}\)?[\s\-.]?\d{3}[\s\-.]?\d{4}`)
)

var monthNumbers = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// typeSynonyms maps free-text property descriptions onto the controlled
// vocabulary. Keys are matched after lowercasing and trimming.
var typeSynonyms = map[string]string{
	"single family residence": models.TypeSingleFamily,
	"single-family":           models.TypeSingleFamily,
	"single family":           models.TypeSingleFamily,
	"singlefamily":            models.TypeSingleFamily,
	"house":                   models.TypeSingleFamily,
	"detached":                models.TypeSingleFamily,
	"condo":                   models.TypeCondo,
	"condominium":             models.TypeCondo,
	"apartment":               models.TypeApartment,
	"flat":                    models.TypeApartment,
	"townhouse":               models.TypeTownhouse,
	"townhome":                models.TypeTownhouse,
	"multi-family":            models.TypeMultiFamily,
	"multi family":            models.TypeMultiFamily,
	"multifamily":             models.TypeMultiFamily,
	"duplex":                  models.TypeMultiFamily,
	"triplex":                 models.TypeMultiFamily,
	"land":                    models.TypeLand,
	"lot":                     models.TypeLand,
	"vacant land":             models.TypeLand,
}

// ToInt strips everything but digits and decimal points, then parses.
// "1,234 sqft" -> 1234, "$450,000" -> 450000. No digits -> nil.
func ToInt(v any) *int {
	f := ToFloat(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// ToFloat is ToInt without the truncation: "2.5 baths" -> 2.5.
func ToFloat(v any) *float64 {
	if v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		f := t
		return &f
	case float32:
		f := float64(t)
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	default:
		s = fmt.Sprintf("%v", v)
	}
	s = nonNumericRegex.ReplaceAllString(s, "")
	if s == "" || s == "." {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// Date normalizes a date string to ISO YYYY-MM-DD. ISO input passes
// through; "March 5, 2024" style long forms are converted; anything else is
// returned unchanged, a documented limitation rather than an error.
func Date(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if isoDateRegex.MatchString(s) {
		return s[:10]
	}
	m := LongDateRegex.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	month := monthNumbers[strings.ToLower(strings.TrimSuffix(m[1], "."))]
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month == 0 || day < 1 || day > 31 {
		return s
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// PropertyType maps a free-text value onto the controlled vocabulary.
// Unrecognized values become "other" so the row survives with a usable tag.
func PropertyType(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return ""
	}
	if mapped, ok := typeSynonyms[key]; ok {
		return mapped
	}
	// Schema.org types arrive camel-cased ("SingleFamilyResidence").
	flat := strings.ToLower(strings.NewReplacer(" ", "", "-", "", "_", "").Replace(key))
	if strings.Contains(flat, "singlefamily") || strings.Contains(flat, "residence") || strings.Contains(flat, "house") {
		return models.TypeSingleFamily
	}
	if strings.Contains(flat, "condo") {
		return models.TypeCondo
	}
	if strings.Contains(flat, "townho") {
		return models.TypeTownhouse
	}
	if strings.Contains(flat, "apartment") {
		return models.TypeApartment
	}
	if strings.Contains(flat, "multifamily") {
		return models.TypeMultiFamily
	}
	return models.TypeOther
}

// Status maps a free-text market status onto the listing status vocabulary.
// Hydration states ship upper-snake values ("FOR_SALE"), page text ships
// capitalized words; both land here. Unrecognized values yield the empty
// status.
func Status(s string) models.ListingStatus {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	switch s {
	case "active", "for sale", "for rent", "coming soon":
		return models.StatusActive
	case "pending":
		return models.StatusPending
	case "contingent":
		return models.StatusContingent
	case "sold", "closed", "recently sold":
		return models.StatusSold
	case "withdrawn", "off market":
		return models.StatusWithdrawn
	case "delisted":
		return models.StatusDelisted
	default:
		return ""
	}
}

// FindPhone returns the first phone number in s, or "".
func FindPhone(s string) string {
	return PhoneRegex.FindString(s)
}

// DaysOnMarket derives the day count from an ISO list date. Returns nil for
// unparseable input or dates in the future.
func DaysOnMarket(listDate string, now time.Time) *int {
	if listDate == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", Date(listDate))
	if err != nil {
		return nil
	}
	days := int(now.Sub(t).Hours() / 24)
	if days < 0 {
		return nil
	}
	return &days
}

// Apply runs the record-level normalizations after the cascade completes:
// date coercion, vocabulary mapping, and the derived price-per-area metric.
// Identity hashing is the projector's entry point (identity package); Apply
// touches values only.
func Apply(rec *models.CanonicalRecord) {
	if rec == nil {
		return
	}
	rec.ListDate = Date(rec.ListDate)
	if rec.PropertyType != "" {
		rec.PropertyType = PropertyType(rec.PropertyType)
	}
	for i := range rec.PriceHistory {
		rec.PriceHistory[i].Date = Date(rec.PriceHistory[i].Date)
	}

	// price_per_sqft only when both inputs exist and area is non-zero;
	// otherwise it stays nil rather than zero or Inf.
	if rec.ListPrice != nil && rec.InteriorArea != nil && *rec.InteriorArea > 0 {
		ppsf := float64(*rec.ListPrice) / float64(*rec.InteriorArea)
		rec.PricePerSqft = &ppsf
	} else {
		rec.PricePerSqft = nil
	}
}
