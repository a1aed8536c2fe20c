package models

// ListingStatus is the controlled vocabulary for a listing's market state.
// The empty string means the status could not be determined.
type ListingStatus string

const (
	StatusActive     ListingStatus = "active"
	StatusPending    ListingStatus = "pending"
	StatusContingent ListingStatus = "contingent"
	StatusSold       ListingStatus = "sold"
	StatusWithdrawn  ListingStatus = "withdrawn"
	StatusDelisted   ListingStatus = "delisted"
	StatusBlocked    ListingStatus = "blocked"
)

// Property type vocabulary. Free-text site values are mapped onto these by
// normalize.PropertyType; anything unrecognized becomes TypeOther.
const (
	TypeSingleFamily = "single_family"
	TypeCondo        = "condo"
	TypeApartment    = "apartment"
	TypeTownhouse    = "townhouse"
	TypeMultiFamily  = "multi_family"
	TypeLand         = "land"
	TypeOther        = "other"
)

// Price history event types.
const (
	EventListed      = "listed"
	EventSold        = "sold"
	EventPriceChange = "price_change"
)

// Address holds the location fields of a canonical record. PostalCode stays
// a string so leading zeros survive.
type Address struct {
	Street     string
	Unit       string
	City       string
	State      string
	PostalCode string
	Latitude   *float64
	Longitude  *float64
}

// Empty reports whether no address component was extracted at all.
func (a *Address) Empty() bool {
	return a.Street == "" && a.Unit == "" && a.City == "" && a.State == "" &&
		a.PostalCode == "" && a.Latitude == nil && a.Longitude == nil
}

// Complete reports whether the address is usable for location identity:
// at minimum a city or a postal code.
func (a *Address) Complete() bool {
	return a.City != "" || a.PostalCode != ""
}

type Agent struct {
	Name      string
	Phone     string
	Brokerage string
	Email     string
}

type PriceEvent struct {
	Date  string // ISO once normalized
	Type  string // listed | sold | price_change
	Price *int
	Notes string
}

type Engagement struct {
	Views  *int
	Saves  *int
	Shares *int
}

// Empty reports whether no engagement counter was found.
func (e *Engagement) Empty() bool {
	return e.Views == nil && e.Saves == nil && e.Shares == nil
}

// MonthlyCosts is the per-month cost breakdown some sites render as a
// dedicated section. Figures are in Currency units per month. Utilities
// stays raw text because sites print "Not included" as often as a number.
type MonthlyCosts struct {
	PrincipalAndInterest *int
	MortgageInsurance    *int
	PropertyTaxes        *int
	HomeInsurance        *int
	HOAFees              *int
	Utilities            string
	Currency             string
}

type Financial struct {
	HOAFee              *int
	PropertyTaxesAnnual *int
	DownPayment         *int
	LoanInterest        *float64
	Monthly             *MonthlyCosts
}

// Empty reports whether no financial figure was found.
func (f *Financial) Empty() bool {
	return f.HOAFee == nil && f.PropertyTaxesAnnual == nil &&
		f.DownPayment == nil && f.LoanInterest == nil && f.Monthly == nil
}

type Community struct {
	ClimateRisks []int
	Amenities    []string
	WalkScore    *int
}

// Empty reports whether no community attribute was found.
func (c *Community) Empty() bool {
	return len(c.ClimateRisks) == 0 && len(c.Amenities) == 0 && c.WalkScore == nil
}

// CanonicalRecord is the merged, typed representation of one listing
// document. It is owned by a single extraction run: the cascade fills each
// field at most once, the projector consumes it, and it is discarded.
// Optional scalars are pointers; absence is nil, never zero.
type CanonicalRecord struct {
	SourceID   string // derived from the URL host, never from content
	ExternalID string // site-native listing id, when present
	SourceURL  string

	Address Address

	Beds         *float64
	Baths        *float64
	InteriorArea *int // sqft
	LotSize      *int // sqft
	YearBuilt    *int
	PropertyType string
	Subtype      string
	Condition    string

	ListPrice    *int
	ListingType  string // sell | rent; projector defaults to sell
	Status       ListingStatus
	ListDate     string
	DaysOnMarket *int
	PricePerSqft *float64 // derived by normalize, never extracted directly

	Title       string
	Description string
	Features    map[string]any

	Images       []string
	Agents       []Agent
	PriceHistory []PriceEvent
	Engagement   Engagement
	Financial    Financial
	Community    Community
	SimilarURLs  []string
}

// Blocked reports whether the document was flagged as a block/challenge page.
func (r *CanonicalRecord) Blocked() bool {
	return r.Status == StatusBlocked
}
