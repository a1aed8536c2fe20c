package extract

import (
	"log"
	"os"

	"propsift/models"
)

// Fields is one extractor's partial view of a listing: canonical field name
// to raw value. A key is present only when the extractor found something, so
// the merger can distinguish "absent" from "empty". Values keep the shape
// the extractor saw (string, float64, []string, []models.Agent, ...); type
// coercion happens once, when the merger writes onto the record.
type Fields map[string]any

// Canonical field keys shared by every extractor.
const (
	fieldExternalID   = "external_id"
	fieldStreet       = "street_address"
	fieldUnit         = "unit_number"
	fieldCity         = "city"
	fieldState        = "state"
	fieldPostalCode   = "postal_code"
	fieldLatitude     = "latitude"
	fieldLongitude    = "longitude"
	fieldBeds         = "beds"
	fieldBaths        = "baths"
	fieldInteriorArea = "interior_area_sqft"
	fieldLotSize      = "lot_size_sqft"
	fieldYearBuilt    = "year_built"
	fieldPropertyType = "property_type"
	fieldListPrice    = "list_price"
	fieldListingType  = "listing_type"
	fieldStatus       = "status"
	fieldListDate     = "list_date"
	fieldDaysOnMarket = "days_on_market"
	fieldTitle        = "title"
	fieldDescription  = "description"
	fieldImages       = "images"        // []string
	fieldAgents       = "agents"        // []models.Agent
	fieldPriceHistory = "price_history" // []models.PriceEvent
	fieldViews        = "views"
	fieldSaves        = "saves"
	fieldShares       = "shares"
	fieldMonthly      = "monthly_costs" // *models.MonthlyCosts
	fieldHOAFee       = "hoa_fee"
	fieldAnnualTaxes  = "property_taxes_annual"
	fieldWalkScore    = "walk_score"
	fieldSimilarURLs  = "similar_urls" // []string
)

// set records a value for key unless the extractor already found one.
// Within a single extractor the first occurrence wins; across extractors
// the merger enforces the same rule against the record.
func (f Fields) set(key string, v any) {
	if v == nil {
		return
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return
		}
	}
	if _, exists := f[key]; exists {
		return
	}
	f[key] = v
}

// absorb copies a lower-priority stage's entries, keeping existing values.
func (f Fields) absorb(stage Fields) {
	for k, v := range stage {
		f.set(k, v)
	}
}

func (f Fields) str(key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

func (f Fields) strings(key string) []string {
	if v, ok := f[key].([]string); ok {
		return v
	}
	return nil
}

func (f Fields) agents(key string) []models.Agent {
	if v, ok := f[key].([]models.Agent); ok {
		return v
	}
	return nil
}

func (f Fields) events(key string) []models.PriceEvent {
	if v, ok := f[key].([]models.PriceEvent); ok {
		return v
	}
	return nil
}

var debugEnabled = os.Getenv("DEBUG_EXTRACT") != ""

// debugf logs extraction noise (skipped blobs, repair failures) only when
// DEBUG_EXTRACT is set; malformed input is expected, not an error.
func debugf(format string, args ...any) {
	if debugEnabled {
		log.Printf("extract: "+format, args...)
	}
}
