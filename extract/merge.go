package extract

import (
	"strings"

	"propsift/models"
	"propsift/normalize"
	"propsift/sites"
)

// Cascade driver. Stage priority is fixed: embedded state, then JSON-LD,
// then meta tags, then text probes, with URL-derived values as the last
// resort. Every field is written once, by the highest-priority stage that
// produced it. The image list is one field under the same rule, so the
// first stage with a non-empty gallery supplies the whole gallery.

// blockedTextThreshold is the visible-text size below which a page is
// treated as a block wall rather than a listing.
const blockedTextThreshold = 512

var challengeMarkers = []string{
	"access to this page has been denied",
	"please verify you are a human",
	"press & hold",
	"press and hold",
	"request blocked",
	"attention required",
	"are you a robot",
	"captcha",
}

// placeholderTitles are section headers sites ship where a headline should
// be; a scrubbed title reads better downstream than "About This Home".
var placeholderTitles = map[string]bool{
	"about this home":     true,
	"about this property": true,
	"what's special":      true,
}

// Merge runs the extraction cascade over one fetched document and returns
// the canonical record, vocabulary-normalized. It never fails: a blocked
// page yields a minimal record with StatusBlocked, an empty page yields a
// record carrying only its identity fields.
func Merge(doc *Document, g sites.Grammar) *models.CanonicalRecord {
	if IsBlocked(doc) {
		return &models.CanonicalRecord{
			SourceID:   g.ID(),
			ExternalID: g.ExternalID(doc.SourceURL),
			SourceURL:  doc.SourceURL,
			Status:     models.StatusBlocked,
		}
	}

	merged := Fields{}
	for _, stage := range []struct {
		name   string
		fields Fields
	}{
		{"state", ExtractState(doc, g)},
		{"linkeddata", ExtractLinkedData(doc)},
		{"meta", ExtractMeta(doc)},
		{"heuristic", ExtractHeuristic(doc)},
	} {
		debugf("merge: stage %s produced %d fields for %s", stage.name, len(stage.fields), doc.SourceURL)
		merged.absorb(stage.fields)
	}

	// URL-derived last resorts for identity and address.
	merged.set(fieldExternalID, g.ExternalID(doc.SourceURL))
	if addr := g.URLAddress(doc.SourceURL); addr != nil {
		merged.set(fieldStreet, addr.Street)
		merged.set(fieldUnit, addr.Unit)
		merged.set(fieldCity, addr.City)
		merged.set(fieldState, addr.State)
		merged.set(fieldPostalCode, addr.PostalCode)
	}

	rec := materialize(merged, doc, g)
	normalize.Apply(rec)
	return rec
}

// IsBlocked reports whether the document is a challenge wall rather than a
// listing: sub-threshold text in both captures, or a known marker.
func IsBlocked(doc *Document) bool {
	visible := doc.VisibleText()
	markdown := strings.TrimSpace(doc.Markdown)
	if len(visible) < blockedTextThreshold && len(markdown) < blockedTextThreshold {
		return true
	}
	lower := strings.ToLower(visible + "\n" + markdown)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// materialize coerces the merged field set onto the record. All numeric
// fields pass through the tolerant converters; a value no stage could
// produce stays nil rather than zero.
func materialize(f Fields, doc *Document, g sites.Grammar) *models.CanonicalRecord {
	return &models.CanonicalRecord{
		SourceID:   g.ID(),
		ExternalID: f.str(fieldExternalID),
		SourceURL:  doc.SourceURL,
		Address: models.Address{
			Street:     f.str(fieldStreet),
			Unit:       f.str(fieldUnit),
			City:       f.str(fieldCity),
			State:      f.str(fieldState),
			PostalCode: idString(f[fieldPostalCode]),
			Latitude:   normalize.ToFloat(f[fieldLatitude]),
			Longitude:  normalize.ToFloat(f[fieldLongitude]),
		},
		Beds:         normalize.ToFloat(f[fieldBeds]),
		Baths:        normalize.ToFloat(f[fieldBaths]),
		InteriorArea: normalize.ToInt(f[fieldInteriorArea]),
		LotSize:      normalize.ToInt(f[fieldLotSize]),
		YearBuilt:    normalize.ToInt(f[fieldYearBuilt]),
		PropertyType: f.str(fieldPropertyType),
		ListPrice:    normalize.ToInt(f[fieldListPrice]),
		ListingType:  f.str(fieldListingType),
		Status:       normalize.Status(f.str(fieldStatus)),
		ListDate:     f.str(fieldListDate),
		DaysOnMarket: normalize.ToInt(f[fieldDaysOnMarket]),
		Title:        scrubTitle(f.str(fieldTitle)),
		Description:  f.str(fieldDescription),
		Images:       f.strings(fieldImages),
		Agents:       f.agents(fieldAgents),
		PriceHistory: f.events(fieldPriceHistory),
		SimilarURLs:  f.strings(fieldSimilarURLs),
		Engagement: models.Engagement{
			Views:  normalize.ToInt(f[fieldViews]),
			Saves:  normalize.ToInt(f[fieldSaves]),
			Shares: normalize.ToInt(f[fieldShares]),
		},
		Financial: models.Financial{
			HOAFee:              normalize.ToInt(f[fieldHOAFee]),
			PropertyTaxesAnnual: normalize.ToInt(f[fieldAnnualTaxes]),
			Monthly:             monthlyCosts(f),
		},
		Community: models.Community{
			WalkScore: normalize.ToInt(f[fieldWalkScore]),
		},
	}
}

func monthlyCosts(f Fields) *models.MonthlyCosts {
	if mc, ok := f[fieldMonthly].(*models.MonthlyCosts); ok {
		return mc
	}
	return nil
}

func scrubTitle(t string) string {
	if placeholderTitles[strings.ToLower(strings.TrimSpace(t))] {
		return ""
	}
	return t
}
