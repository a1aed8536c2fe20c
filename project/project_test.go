package project

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"propsift/models"
)

var scrapedAt = time.Date(2024, 3, 20, 15, 4, 5, 0, time.UTC)

func sampleRecord() *models.CanonicalRecord {
	lat, lon := 40.7367, -73.9865
	beds, baths := 3.0, 2.5
	area, year, price := 1480, 1925, 1250000
	ppsf := 844.59
	views, saves := 1234, 56
	pi := 6900

	return &models.CanonicalRecord{
		SourceID:   "zillow",
		ExternalID: "31506434",
		SourceURL:  "https://www.zillow.com/homedetails/113-E-19th-St-New-York-NY-10003/31506434_zpid/",
		Address: models.Address{
			Street:     "113 E 19th St",
			City:       "New York",
			State:      "NY",
			PostalCode: "10003",
			Latitude:   &lat,
			Longitude:  &lon,
		},
		Beds:         &beds,
		Baths:        &baths,
		InteriorArea: &area,
		YearBuilt:    &year,
		PropertyType: models.TypeSingleFamily,
		ListPrice:    &price,
		ListingType:  "sell",
		Status:       models.StatusActive,
		ListDate:     "2024-03-05",
		PricePerSqft: &ppsf,
		Title:        "113 E 19th St, New York, NY 10003",
		Description:  "Classic Gramercy brownstone.",
		Images: []string{
			"https://photos.zillowstatic.com/fp/abc123-uncropped_scaled_within_1536_1152.jpg",
			"https://photos.zillowstatic.com/fp/def456-uncropped_scaled_within_1536_1152.jpg",
		},
		Agents: []models.Agent{
			{Name: "Jane Smith", Phone: "(212) 555-0199", Brokerage: "Douglas Elliman"},
		},
		PriceHistory: []models.PriceEvent{
			{Date: "2024-03-05", Type: models.EventListed, Price: &price},
		},
		Engagement: models.Engagement{Views: &views, Saves: &saves},
		Financial: models.Financial{
			Monthly: &models.MonthlyCosts{
				PrincipalAndInterest: &pi,
				Utilities:            "Not included",
				Currency:             "USD",
			},
		},
		SimilarURLs: []string{"https://www.zillow.com/homedetails/115-E-19th-St/31506440_zpid/"},
	}
}

func projected(t *testing.T, rec *models.CanonicalRecord) (*models.RowSet, Meta) {
	t.Helper()
	meta := MetaFor(rec, "20240320_ab12cd34", "render_api", scrapedAt)
	return Project(rec, meta), meta
}

func TestProjectTableCompleteness(t *testing.T) {
	rs, _ := projected(t, &models.CanonicalRecord{
		SourceID:  "unknown",
		SourceURL: "https://example.com/listing/1",
	})

	tables := rs.Tables()
	for _, name := range models.TableNames {
		rows, ok := tables[name]
		if !ok {
			t.Fatalf("table %q missing from projection", name)
		}
		if rows == nil {
			t.Fatalf("table %q is nil, want empty slice", name)
		}
	}
	if len(tables) != len(models.TableNames) {
		t.Fatalf("projection has %d tables, want %d", len(tables), len(models.TableNames))
	}
}

func TestProjectExactlyOneListingAndProperty(t *testing.T) {
	for _, rec := range []*models.CanonicalRecord{
		sampleRecord(),
		{SourceID: "unknown", SourceURL: "https://example.com/empty"},
		{SourceID: "zillow", SourceURL: "https://www.zillow.com/x", Status: models.StatusBlocked},
	} {
		rs, _ := projected(t, rec)
		if len(rs.Listings) != 1 {
			t.Fatalf("got %d listing rows, want 1", len(rs.Listings))
		}
		if len(rs.Properties) != 1 {
			t.Fatalf("got %d property rows, want 1", len(rs.Properties))
		}
	}
}

func TestProjectIdempotentIdentity(t *testing.T) {
	first := sampleRecord()

	// same source and external id extracted from a totally different fetch
	second := &models.CanonicalRecord{
		SourceID:   "zillow",
		ExternalID: "31506434",
		SourceURL:  "https://www.zillow.com/homedetails/113-E-19th-St-New-York-NY-10003/31506434_zpid/?utm=email",
		Status:     models.StatusPending,
	}

	m1 := MetaFor(first, "batch_a", "render_api", scrapedAt)
	m2 := MetaFor(second, "batch_b", "browser", scrapedAt.Add(48*time.Hour))

	if m1.ListingID != m2.ListingID {
		t.Fatalf("listing ids differ: %s vs %s", m1.ListingID, m2.ListingID)
	}
	if m1.PropertyID != m2.PropertyID {
		t.Fatalf("property ids differ: %s vs %s", m1.PropertyID, m2.PropertyID)
	}
	if m1.ListingID != m1.PropertyID {
		t.Fatalf("listing id %s != property id %s", m1.ListingID, m1.PropertyID)
	}
}

func TestProjectForeignKeys(t *testing.T) {
	rs, meta := projected(t, sampleRecord())

	if rs.Listings[0].ListingID != meta.ListingID {
		t.Fatalf("listing row id = %s, want %s", rs.Listings[0].ListingID, meta.ListingID)
	}
	if rs.Properties[0].PropertyID != meta.PropertyID {
		t.Fatalf("property row id = %s, want %s", rs.Properties[0].PropertyID, meta.PropertyID)
	}
	for _, m := range rs.Media {
		if m.ListingID != meta.ListingID {
			t.Fatalf("media row fk = %s, want %s", m.ListingID, meta.ListingID)
		}
	}
	for _, a := range rs.Agents {
		if a.ListingID != meta.ListingID {
			t.Fatalf("agent row fk = %s, want %s", a.ListingID, meta.ListingID)
		}
	}
	for _, p := range rs.PriceHistory {
		if p.ListingID != meta.ListingID {
			t.Fatalf("price history row fk = %s, want %s", p.ListingID, meta.ListingID)
		}
	}
	for _, e := range rs.Engagement {
		if e.ListingID != meta.ListingID {
			t.Fatalf("engagement row fk = %s, want %s", e.ListingID, meta.ListingID)
		}
	}
	for _, f := range rs.Financials {
		if f.ListingID != meta.ListingID {
			t.Fatalf("financial row fk = %s, want %s", f.ListingID, meta.ListingID)
		}
	}
	for _, s := range rs.SimilarProperties {
		if s.ListingID != meta.ListingID {
			t.Fatalf("similar row fk = %s, want %s", s.ListingID, meta.ListingID)
		}
	}
	if rs.Locations[0].LocationID != meta.LocationID {
		t.Fatalf("location row id = %s, want %s", rs.Locations[0].LocationID, meta.LocationID)
	}
}

func TestProjectMediaRows(t *testing.T) {
	rs, _ := projected(t, sampleRecord())

	if len(rs.Media) != 2 {
		t.Fatalf("got %d media rows, want 2", len(rs.Media))
	}
	for i, m := range rs.Media {
		if m.DisplayOrder != i {
			t.Errorf("media[%d].DisplayOrder = %d, want %d", i, m.DisplayOrder, i)
		}
		if m.IsPrimary != (i == 0) {
			t.Errorf("media[%d].IsPrimary = %v", i, m.IsPrimary)
		}
		if m.MediaType != "image" {
			t.Errorf("media[%d].MediaType = %q, want image", i, m.MediaType)
		}
	}
}

func TestProjectMediaCap(t *testing.T) {
	rec := sampleRecord()
	rec.Images = nil
	for i := 0; i < 80; i++ {
		rec.Images = append(rec.Images, "https://photos.zillowstatic.com/fp/img-"+strconv.Itoa(i)+".jpg")
	}

	rs, _ := projected(t, rec)
	if len(rs.Media) != 50 {
		t.Fatalf("got %d media rows, want 50", len(rs.Media))
	}
	last := rs.Media[len(rs.Media)-1]
	if last.DisplayOrder != 49 {
		t.Fatalf("last display order = %d, want 49", last.DisplayOrder)
	}
}

func TestProjectOptionalSingleRowTables(t *testing.T) {
	bare := &models.CanonicalRecord{SourceID: "unknown", SourceURL: "https://example.com/1"}
	rs, _ := projected(t, bare)

	if len(rs.Engagement) != 0 || len(rs.Financials) != 0 || len(rs.CommunityAttributes) != 0 {
		t.Fatalf("optional tables populated for bare record: %d/%d/%d",
			len(rs.Engagement), len(rs.Financials), len(rs.CommunityAttributes))
	}

	rs, _ = projected(t, sampleRecord())
	if len(rs.Engagement) != 1 {
		t.Fatalf("got %d engagement rows, want 1", len(rs.Engagement))
	}
	if len(rs.Financials) != 1 {
		t.Fatalf("got %d financial rows, want 1", len(rs.Financials))
	}
	if len(rs.CommunityAttributes) != 0 {
		t.Fatalf("got %d community rows, want 0", len(rs.CommunityAttributes))
	}
}

func TestProjectCommunityRow(t *testing.T) {
	rec := sampleRecord()
	ws := 87
	rec.Community = models.Community{WalkScore: &ws}

	rs, meta := projected(t, rec)
	if len(rs.CommunityAttributes) != 1 {
		t.Fatalf("got %d community rows, want 1", len(rs.CommunityAttributes))
	}
	row := rs.CommunityAttributes[0]
	if row.ListingID != meta.ListingID {
		t.Fatalf("community row fk = %s, want %s", row.ListingID, meta.ListingID)
	}
	if row.WalkScore == nil || *row.WalkScore != 87 {
		t.Fatalf("walk score = %v, want 87", row.WalkScore)
	}
}

func TestProjectLocationRow(t *testing.T) {
	rs, _ := projected(t, sampleRecord())
	if len(rs.Locations) != 1 {
		t.Fatalf("got %d location rows, want 1", len(rs.Locations))
	}
	loc := rs.Locations[0]
	if loc.City != "New York" || loc.PostalCode != "10003" {
		t.Fatalf("location row = %+v", loc)
	}
	if len(loc.Geohash) != 9 {
		t.Fatalf("geohash = %q, want 9 characters", loc.Geohash)
	}
	if !strings.HasPrefix(loc.Geohash, "dr5rs") {
		t.Fatalf("geohash %q does not place Gramercy in the dr5rs cell", loc.Geohash)
	}

	// no address at all, no location row
	rs, _ = projected(t, &models.CanonicalRecord{SourceID: "unknown", SourceURL: "https://example.com/1"})
	if len(rs.Locations) != 0 {
		t.Fatalf("got %d location rows for empty address, want 0", len(rs.Locations))
	}
}

func TestProjectListingDefaults(t *testing.T) {
	rec := &models.CanonicalRecord{SourceID: "unknown", SourceURL: "https://example.com/1"}
	rs, _ := projected(t, rec)

	l := rs.Listings[0]
	if l.Status != "unknown" {
		t.Fatalf("status = %q, want unknown", l.Status)
	}
	if l.ListingType != "sell" {
		t.Fatalf("listing type = %q, want sell", l.ListingType)
	}
	if l.ListDate != nil {
		t.Fatalf("list date = %v, want nil", *l.ListDate)
	}
	if l.ListPrice != nil || l.PricePerSqft != nil || l.DaysOnMarket != nil {
		t.Fatalf("numeric fields defaulted: %+v", l)
	}
	if l.ScrapedTimestamp != "2024-03-20T15:04:05Z" {
		t.Fatalf("scraped timestamp = %q", l.ScrapedTimestamp)
	}
}

func TestProjectFinancialRow(t *testing.T) {
	rec := sampleRecord()
	hoa := 450
	rec.Financial.HOAFee = &hoa
	rec.Financial.Monthly.Utilities = "$150"

	rs, _ := projected(t, rec)
	f := rs.Financials[0]

	if f.HOAFee == nil || *f.HOAFee != 450 {
		t.Fatalf("hoa fee = %v, want 450", f.HOAFee)
	}
	if f.MonthlyPrincipalInterest == nil || *f.MonthlyPrincipalInterest != 6900 {
		t.Fatalf("monthly p&i = %v, want 6900", f.MonthlyPrincipalInterest)
	}
	if f.MonthlyUtilities == nil || *f.MonthlyUtilities != 150 {
		t.Fatalf("monthly utilities = %v, want 150", f.MonthlyUtilities)
	}
	if f.Currency != "USD" {
		t.Fatalf("currency = %q, want USD", f.Currency)
	}

	rec.Financial.Monthly.Utilities = "Not included"
	rs, _ = projected(t, rec)
	if got := rs.Financials[0].MonthlyUtilities; got != nil {
		t.Fatalf("utilities = %v, want nil for non-numeric text", *got)
	}
}

func TestProjectFeaturesNeverNil(t *testing.T) {
	rs, _ := projected(t, &models.CanonicalRecord{SourceID: "unknown", SourceURL: "https://example.com/1"})
	if rs.Properties[0].Features == nil {
		t.Fatal("features map is nil, want empty map")
	}
}
