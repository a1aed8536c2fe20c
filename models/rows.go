package models

// Relational row types emitted by the projector. Field names are the
// cross-system contract that downstream joins depend on. Numeric and date
// fields that can be absent are pointers and marshal as null, never as a
// zero sentinel.

type ListingRow struct {
	ListingID        string   `json:"listing_id"`
	PropertyID       string   `json:"property_id"`
	BatchID          string   `json:"batch_id"`
	SourceID         string   `json:"source_id"`
	SourceURL        string   `json:"source_url"`
	CrawlMethod      string   `json:"crawl_method"`
	ScrapedTimestamp string   `json:"scraped_timestamp"`
	ListDate         *string  `json:"list_date"`
	DaysOnMarket     *int     `json:"days_on_market"`
	Description      string   `json:"description"`
	ListingType      string   `json:"listing_type"`
	Status           string   `json:"status"`
	Title            string   `json:"title"`
	ListPrice        *int     `json:"list_price"`
	PricePerSqft     *float64 `json:"price_per_sqft"`
}

type PropertyRow struct {
	PropertyID       string         `json:"property_id"`
	StreetAddress    string         `json:"street_address"`
	UnitNumber       string         `json:"unit_number"`
	City             string         `json:"city"`
	State            string         `json:"state"`
	PostalCode       string         `json:"postal_code"`
	Latitude         *float64       `json:"latitude"`
	Longitude        *float64       `json:"longitude"`
	InteriorAreaSqft *int           `json:"interior_area_sqft"`
	LotSizeSqft      *int           `json:"lot_size_sqft"`
	YearBuilt        *int           `json:"year_built"`
	Beds             *float64       `json:"beds"`
	Baths            *float64       `json:"baths"`
	PropertyType     string         `json:"property_type"`
	PropertySubtype  string         `json:"property_subtype"`
	Condition        string         `json:"condition"`
	Features         map[string]any `json:"features"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

type MediaRow struct {
	ListingID    string `json:"listing_id"`
	MediaURL     string `json:"media_url"`
	Caption      string `json:"caption"`
	DisplayOrder int    `json:"display_order"`
	IsPrimary    bool   `json:"is_primary"`
	CreatedAt    string `json:"created_at"`
	MediaType    string `json:"media_type"`
}

type AgentRow struct {
	ListingID string `json:"listing_id"`
	AgentName string `json:"agent_name"`
	Phone     string `json:"phone"`
	Brokerage string `json:"brokerage"`
	Email     string `json:"email"`
}

type PriceHistoryRow struct {
	ListingID string `json:"listing_id"`
	EventDate string `json:"event_date"`
	EventType string `json:"event_type"`
	Price     *int   `json:"price"`
	Notes     string `json:"notes"`
}

type LocationRow struct {
	LocationID    string   `json:"location_id"`
	StreetAddress string   `json:"street_address"`
	UnitNumber    string   `json:"unit_number"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	PostalCode    string   `json:"postal_code"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Geohash       string   `json:"geohash"`
}

type EngagementRow struct {
	ListingID string `json:"listing_id"`
	Views     *int   `json:"views"`
	Saves     *int   `json:"saves"`
	Shares    *int   `json:"shares"`
}

type FinancialRow struct {
	ListingID                string   `json:"listing_id"`
	HOAFee                   *int     `json:"hoa_fee"`
	PropertyTaxesAnnual      *int     `json:"property_taxes_annual"`
	DownPayment              *int     `json:"down_payment"`
	LoanInterest             *float64 `json:"loan_interest"`
	MonthlyPrincipalInterest *int     `json:"monthly_principal_interest"`
	MonthlyMortgageInsurance *int     `json:"monthly_mortgage_insurance"`
	MonthlyPropertyTaxes     *int     `json:"monthly_property_taxes"`
	MonthlyHomeInsurance     *int     `json:"monthly_home_insurance"`
	MonthlyHOAFees           *int     `json:"monthly_hoa_fees"`
	MonthlyUtilities         *int     `json:"monthly_utilities"`
	Currency                 string   `json:"currency"`
}

type CommunityRow struct {
	ListingID    string   `json:"listing_id"`
	ClimateRisks []int    `json:"climate_risks"`
	Amenities    []string `json:"amenities"`
	WalkScore    *int     `json:"walk_score"`
}

type SimilarRow struct {
	ListingID  string `json:"listing_id"`
	SimilarURL string `json:"similar_url"`
}

// TableNames lists the ten output tables in their canonical write order.
var TableNames = []string{
	"listings",
	"properties",
	"media",
	"agents",
	"price_history",
	"locations",
	"engagement",
	"financials",
	"community_attributes",
	"similar_properties",
}

// RowSet is the full projection of one or more canonical records. Every
// slice is non-nil even when empty: downstream writers emit all ten tables
// unconditionally.
type RowSet struct {
	Listings            []ListingRow      `json:"listings"`
	Properties          []PropertyRow     `json:"properties"`
	Media               []MediaRow        `json:"media"`
	Agents              []AgentRow        `json:"agents"`
	PriceHistory        []PriceHistoryRow `json:"price_history"`
	Locations           []LocationRow     `json:"locations"`
	Engagement          []EngagementRow   `json:"engagement"`
	Financials          []FinancialRow    `json:"financials"`
	CommunityAttributes []CommunityRow    `json:"community_attributes"`
	SimilarProperties   []SimilarRow      `json:"similar_properties"`
}

// NewRowSet returns a RowSet with all ten tables present and empty.
func NewRowSet() *RowSet {
	return &RowSet{
		Listings:            []ListingRow{},
		Properties:          []PropertyRow{},
		Media:               []MediaRow{},
		Agents:              []AgentRow{},
		PriceHistory:        []PriceHistoryRow{},
		Locations:           []LocationRow{},
		Engagement:          []EngagementRow{},
		Financials:          []FinancialRow{},
		CommunityAttributes: []CommunityRow{},
		SimilarProperties:   []SimilarRow{},
	}
}

// Append merges another row set into this one, preserving order.
func (rs *RowSet) Append(other *RowSet) {
	if other == nil {
		return
	}
	rs.Listings = append(rs.Listings, other.Listings...)
	rs.Properties = append(rs.Properties, other.Properties...)
	rs.Media = append(rs.Media, other.Media...)
	rs.Agents = append(rs.Agents, other.Agents...)
	rs.PriceHistory = append(rs.PriceHistory, other.PriceHistory...)
	rs.Locations = append(rs.Locations, other.Locations...)
	rs.Engagement = append(rs.Engagement, other.Engagement...)
	rs.Financials = append(rs.Financials, other.Financials...)
	rs.CommunityAttributes = append(rs.CommunityAttributes, other.CommunityAttributes...)
	rs.SimilarProperties = append(rs.SimilarProperties, other.SimilarProperties...)
}

// Tables exposes every table as name -> rows for generic writers.
func (rs *RowSet) Tables() map[string]any {
	return map[string]any{
		"listings":             rs.Listings,
		"properties":           rs.Properties,
		"media":                rs.Media,
		"agents":               rs.Agents,
		"price_history":        rs.PriceHistory,
		"locations":            rs.Locations,
		"engagement":           rs.Engagement,
		"financials":           rs.Financials,
		"community_attributes": rs.CommunityAttributes,
		"similar_properties":   rs.SimilarProperties,
	}
}

// Counts returns per-table row counts keyed by table name.
func (rs *RowSet) Counts() map[string]int {
	return map[string]int{
		"listings":             len(rs.Listings),
		"properties":           len(rs.Properties),
		"media":                len(rs.Media),
		"agents":               len(rs.Agents),
		"price_history":        len(rs.PriceHistory),
		"locations":            len(rs.Locations),
		"engagement":           len(rs.Engagement),
		"financials":           len(rs.Financials),
		"community_attributes": len(rs.CommunityAttributes),
		"similar_properties":   len(rs.SimilarProperties),
	}
}
