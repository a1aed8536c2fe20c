// Package project expands one canonical record into the ten relational row
// tables downstream systems join on. Projection is a pure function: identity
// comes in through Meta, timestamps come in through Meta, and no row is ever
// produced twice for the same inputs.
package project

import (
	"time"

	"github.com/mmcloughlin/geohash"

	"propsift/identity"
	"propsift/models"
	"propsift/normalize"
)

const (
	// mediaRowCap bounds the media table per listing. Galleries on large
	// listings run past 100 candidates; everything after the cap is noise.
	mediaRowCap = 50

	// geohashPrecision 9 is roughly a 5m cell, enough to join listings at
	// the same street address.
	geohashPrecision = 9
)

// Meta carries the identifiers and run context stamped onto every projected
// row. Identity is computed once, here, and only here; Project never derives
// an id from record content.
type Meta struct {
	ListingID   string
	PropertyID  string
	LocationID  string
	BatchID     string
	CrawlMethod string
	ScrapedAt   time.Time
}

// MetaFor derives row identity for one record. ListingID and PropertyID are
// the same value: one listing row per property row per document.
func MetaFor(rec *models.CanonicalRecord, batchID, crawlMethod string, scrapedAt time.Time) Meta {
	id := identity.ListingID(rec.SourceID, rec.ExternalID, rec.SourceURL)
	return Meta{
		ListingID:   id,
		PropertyID:  id,
		LocationID:  identity.LocationID(&rec.Address),
		BatchID:     batchID,
		CrawlMethod: crawlMethod,
		ScrapedAt:   scrapedAt,
	}
}

// Project maps a canonical record onto the full row set. All ten tables are
// present in the result; optional single-row tables (engagement, financials,
// community_attributes) stay empty unless at least one field was extracted.
func Project(rec *models.CanonicalRecord, meta Meta) *models.RowSet {
	rs := models.NewRowSet()
	stamp := meta.ScrapedAt.UTC().Format(time.RFC3339)

	rs.Listings = append(rs.Listings, models.ListingRow{
		ListingID:        meta.ListingID,
		PropertyID:       meta.PropertyID,
		BatchID:          meta.BatchID,
		SourceID:         rec.SourceID,
		SourceURL:        rec.SourceURL,
		CrawlMethod:      meta.CrawlMethod,
		ScrapedTimestamp: stamp,
		ListDate:         optional(rec.ListDate),
		DaysOnMarket:     rec.DaysOnMarket,
		Description:      rec.Description,
		ListingType:      listingType(rec),
		Status:           status(rec),
		Title:            rec.Title,
		ListPrice:        rec.ListPrice,
		PricePerSqft:     rec.PricePerSqft,
	})

	features := rec.Features
	if features == nil {
		features = map[string]any{}
	}
	rs.Properties = append(rs.Properties, models.PropertyRow{
		PropertyID:       meta.PropertyID,
		StreetAddress:    rec.Address.Street,
		UnitNumber:       rec.Address.Unit,
		City:             rec.Address.City,
		State:            rec.Address.State,
		PostalCode:       rec.Address.PostalCode,
		Latitude:         rec.Address.Latitude,
		Longitude:        rec.Address.Longitude,
		InteriorAreaSqft: rec.InteriorArea,
		LotSizeSqft:      rec.LotSize,
		YearBuilt:        rec.YearBuilt,
		Beds:             rec.Beds,
		Baths:            rec.Baths,
		PropertyType:     rec.PropertyType,
		PropertySubtype:  rec.Subtype,
		Condition:        rec.Condition,
		Features:         features,
		CreatedAt:        stamp,
		UpdatedAt:        stamp,
	})

	for i, url := range rec.Images {
		if i >= mediaRowCap {
			break
		}
		rs.Media = append(rs.Media, models.MediaRow{
			ListingID:    meta.ListingID,
			MediaURL:     url,
			DisplayOrder: i,
			IsPrimary:    i == 0,
			CreatedAt:    stamp,
			MediaType:    "image",
		})
	}

	for _, a := range rec.Agents {
		rs.Agents = append(rs.Agents, models.AgentRow{
			ListingID: meta.ListingID,
			AgentName: a.Name,
			Phone:     a.Phone,
			Brokerage: a.Brokerage,
			Email:     a.Email,
		})
	}

	for _, ev := range rec.PriceHistory {
		rs.PriceHistory = append(rs.PriceHistory, models.PriceHistoryRow{
			ListingID: meta.ListingID,
			EventDate: ev.Date,
			EventType: ev.Type,
			Price:     ev.Price,
			Notes:     ev.Notes,
		})
	}

	if !rec.Address.Empty() {
		rs.Locations = append(rs.Locations, models.LocationRow{
			LocationID:    meta.LocationID,
			StreetAddress: rec.Address.Street,
			UnitNumber:    rec.Address.Unit,
			City:          rec.Address.City,
			State:         rec.Address.State,
			PostalCode:    rec.Address.PostalCode,
			Latitude:      rec.Address.Latitude,
			Longitude:     rec.Address.Longitude,
			Geohash:       encodeGeohash(rec.Address.Latitude, rec.Address.Longitude),
		})
	}

	if !rec.Engagement.Empty() {
		rs.Engagement = append(rs.Engagement, models.EngagementRow{
			ListingID: meta.ListingID,
			Views:     rec.Engagement.Views,
			Saves:     rec.Engagement.Saves,
			Shares:    rec.Engagement.Shares,
		})
	}

	if !rec.Financial.Empty() {
		rs.Financials = append(rs.Financials, financialRow(rec, meta.ListingID))
	}

	if !rec.Community.Empty() {
		rs.CommunityAttributes = append(rs.CommunityAttributes, models.CommunityRow{
			ListingID:    meta.ListingID,
			ClimateRisks: rec.Community.ClimateRisks,
			Amenities:    rec.Community.Amenities,
			WalkScore:    rec.Community.WalkScore,
		})
	}

	for _, u := range rec.SimilarURLs {
		rs.SimilarProperties = append(rs.SimilarProperties, models.SimilarRow{
			ListingID:  meta.ListingID,
			SimilarURL: u,
		})
	}

	return rs
}

func financialRow(rec *models.CanonicalRecord, listingID string) models.FinancialRow {
	row := models.FinancialRow{
		ListingID:           listingID,
		HOAFee:              rec.Financial.HOAFee,
		PropertyTaxesAnnual: rec.Financial.PropertyTaxesAnnual,
		DownPayment:         rec.Financial.DownPayment,
		LoanInterest:        rec.Financial.LoanInterest,
	}
	if m := rec.Financial.Monthly; m != nil {
		row.MonthlyPrincipalInterest = m.PrincipalAndInterest
		row.MonthlyMortgageInsurance = m.MortgageInsurance
		row.MonthlyPropertyTaxes = m.PropertyTaxes
		row.MonthlyHomeInsurance = m.HomeInsurance
		row.MonthlyHOAFees = m.HOAFees
		// utilities stay raw text upstream; "Not included" coerces to nil
		row.MonthlyUtilities = normalize.ToInt(m.Utilities)
		row.Currency = m.Currency
	}
	return row
}

func listingType(rec *models.CanonicalRecord) string {
	if rec.ListingType != "" {
		return rec.ListingType
	}
	return "sell"
}

func status(rec *models.CanonicalRecord) string {
	if rec.Status == "" {
		return "unknown"
	}
	return string(rec.Status)
}

func encodeGeohash(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return ""
	}
	return geohash.EncodeWithPrecision(*lat, *lon, geohashPrecision)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
