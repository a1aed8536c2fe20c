package schema

import (
	"strings"
	"testing"

	"propsift/models"
)

var testID = strings.Repeat("ab", 20)

func validListing() models.ListingRow {
	return models.ListingRow{
		ListingID:        testID,
		PropertyID:       testID,
		BatchID:          "20240320_ab12cd34",
		SourceID:         "zillow",
		SourceURL:        "https://www.zillow.com/homedetails/x/1_zpid/",
		CrawlMethod:      "render_api",
		ScrapedTimestamp: "2024-03-20T15:04:05Z",
		ListingType:      "sell",
		Status:           "active",
	}
}

func TestValidateAcceptsWellFormedRows(t *testing.T) {
	rows := map[string]any{
		"listings": validListing(),
		"properties": models.PropertyRow{
			PropertyID: testID,
			Features:   map[string]any{},
			CreatedAt:  "2024-03-20T15:04:05Z",
			UpdatedAt:  "2024-03-20T15:04:05Z",
		},
		"media": models.MediaRow{
			ListingID: testID,
			MediaURL:  "https://photos.example.com/a.jpg",
			MediaType: "image",
			IsPrimary: true,
		},
		"agents":        models.AgentRow{ListingID: testID, AgentName: "Jane Smith"},
		"price_history": models.PriceHistoryRow{ListingID: testID, EventType: "listed"},
		"locations":     models.LocationRow{LocationID: testID, Geohash: "dr5rsjk4w"},
		"engagement":    models.EngagementRow{ListingID: testID},
		"financials":    models.FinancialRow{ListingID: testID},
		"community_attributes": models.CommunityRow{
			ListingID: testID,
			Amenities: []string{"pool"},
		},
		"similar_properties": models.SimilarRow{ListingID: testID, SimilarURL: "https://example.com/2"},
	}
	for table, row := range rows {
		if err := Validate(table, row); err != nil {
			t.Errorf("Validate(%s) = %v, want nil", table, err)
		}
	}
}

func TestValidateRejectsContractViolations(t *testing.T) {
	shortID := validListing()
	shortID.ListingID = "abc123"

	badStatus := validListing()
	badStatus.Status = "for sale"

	badType := validListing()
	badType.ListingType = "lease"

	cases := []struct {
		name  string
		table string
		row   any
	}{
		{"short listing id", "listings", shortID},
		{"unknown status", "listings", badStatus},
		{"unknown listing type", "listings", badType},
		{"media order past cap", "media", models.MediaRow{
			ListingID: testID, MediaURL: "https://x/a.jpg", MediaType: "image", DisplayOrder: 50,
		}},
		{"empty media url", "media", models.MediaRow{
			ListingID: testID, MediaType: "image",
		}},
		{"empty agent name", "agents", models.AgentRow{ListingID: testID}},
		{"nil features", "properties", models.PropertyRow{
			PropertyID: testID, CreatedAt: "x", UpdatedAt: "x",
		}},
		{"invented event type", "price_history", models.PriceHistoryRow{
			ListingID: testID, EventType: "relisted",
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := Validate(c.table, c.row); err == nil {
				t.Fatalf("Validate(%s, %+v) = nil, want violation", c.table, c.row)
			}
		})
	}
}

func TestValidateUnknownTable(t *testing.T) {
	if err := Validate("snapshots", validListing()); err == nil {
		t.Fatal("unknown table should not validate")
	}
}

func TestValidateRowSetCollectsViolations(t *testing.T) {
	rs := models.NewRowSet()
	rs.Listings = append(rs.Listings, validListing())

	bad := validListing()
	bad.Status = "???"
	rs.Listings = append(rs.Listings, bad)
	rs.Media = append(rs.Media, models.MediaRow{ListingID: testID, MediaType: "image"})

	errs := ValidateRowSet(rs)
	if len(errs) != 2 {
		t.Fatalf("got %d violations, want 2: %v", len(errs), errs)
	}
}

func TestValidateRowSetCleanOnEmpty(t *testing.T) {
	if errs := ValidateRowSet(models.NewRowSet()); len(errs) != 0 {
		t.Fatalf("empty set should be clean, got %v", errs)
	}
	if errs := ValidateRowSet(nil); errs != nil {
		t.Fatalf("nil set should be clean, got %v", errs)
	}
}
