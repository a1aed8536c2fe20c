package normalize

import (
	"testing"
	"time"

	"propsift/models"
)

func TestToInt(t *testing.T) {
	cases := []struct {
		in   any
		want *int
	}{
		{"$450,000", intPtr(450000)},
		{"1,234 sqft", intPtr(1234)},
		{"no digits here", nil},
		{"", nil},
		{nil, nil},
		{float64(2500), intPtr(2500)},
		{"3.5", intPtr(3)},
	}
	for _, c := range cases {
		got := ToInt(c.in)
		if (got == nil) != (c.want == nil) {
			t.Errorf("ToInt(%v) = %v, want %v", c.in, got, c.want)
			continue
		}
		if got != nil && *got != *c.want {
			t.Errorf("ToInt(%v) = %d, want %d", c.in, *got, *c.want)
		}
	}
}

func TestToFloatBaths(t *testing.T) {
	got := ToFloat("2.5 baths")
	if got == nil || *got != 2.5 {
		t.Fatalf("ToFloat(2.5 baths) = %v, want 2.5", got)
	}
	if ToFloat("...") != nil {
		t.Fatal("dots alone should not parse")
	}
}

func TestDate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"2024-03-05", "2024-03-05"},
		{"2024-03-05T10:00:00Z", "2024-03-05"},
		{"March 5, 2024", "2024-03-05"},
		{"Mar 5 2024", "2024-03-05"},
		{"Sept 12, 2023", "2023-09-12"},
		{"sometime last year", "sometime last year"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Date(c.in); got != c.want {
			t.Errorf("Date(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPropertyType(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Single Family Residence", models.TypeSingleFamily},
		{"single-family", models.TypeSingleFamily},
		{"House", models.TypeSingleFamily},
		{"SingleFamilyResidence", models.TypeSingleFamily},
		{"Condo", models.TypeCondo},
		{"Townhouse", models.TypeTownhouse},
		{"Multi-Family", models.TypeMultiFamily},
		{"Geodesic Dome", models.TypeOther},
		{"", ""},
	}
	for _, c := range cases {
		if got := PropertyType(c.in); got != c.want {
			t.Errorf("PropertyType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStatus(t *testing.T) {
	if Status("Active") != models.StatusActive {
		t.Fatal("Active should map to active")
	}
	if Status("SOLD") != models.StatusSold {
		t.Fatal("SOLD should map to sold")
	}
	if Status("mystery") != "" {
		t.Fatal("unknown status should stay empty")
	}
}

func TestFindPhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Listed by Jane Doe (555) 123-4567", "(555) 123-4567"},
		{"call +1 555.123.4567 today", "+1 555.123.4567"},
		{"no phone here", ""},
	}
	for _, c := range cases {
		if got := FindPhone(c.in); got != c.want {
			t.Errorf("FindPhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDaysOnMarket(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	got := DaysOnMarket("2024-03-05", now)
	if got == nil || *got != 10 {
		t.Fatalf("DaysOnMarket = %v, want 10", got)
	}
	if DaysOnMarket("2030-01-01", now) != nil {
		t.Fatal("future list date should yield nil")
	}
	if DaysOnMarket("garbage", now) != nil {
		t.Fatal("unparseable date should yield nil")
	}
}

func TestApplyDerivesPricePerSqft(t *testing.T) {
	price, area := 450000, 1500
	rec := &models.CanonicalRecord{ListPrice: &price, InteriorArea: &area}
	Apply(rec)
	if rec.PricePerSqft == nil || *rec.PricePerSqft != 300 {
		t.Fatalf("price_per_sqft = %v, want 300", rec.PricePerSqft)
	}
}

func TestApplyZeroAreaLeavesDerivedEmpty(t *testing.T) {
	price, area := 450000, 0
	rec := &models.CanonicalRecord{ListPrice: &price, InteriorArea: &area}
	Apply(rec)
	if rec.PricePerSqft != nil {
		t.Fatalf("zero area must not derive a price per sqft, got %v", *rec.PricePerSqft)
	}

	rec = &models.CanonicalRecord{ListPrice: &price}
	Apply(rec)
	if rec.PricePerSqft != nil {
		t.Fatal("missing area must not derive a price per sqft")
	}
}

func TestApplyNormalizesDates(t *testing.T) {
	rec := &models.CanonicalRecord{
		ListDate: "March 5, 2024",
		PriceHistory: []models.PriceEvent{
			{Date: "January 2, 2023", Type: models.EventListed},
		},
	}
	Apply(rec)
	if rec.ListDate != "2024-03-05" {
		t.Fatalf("list date = %q", rec.ListDate)
	}
	if rec.PriceHistory[0].Date != "2023-01-02" {
		t.Fatalf("event date = %q", rec.PriceHistory[0].Date)
	}
}

func intPtr(n int) *int { return &n }
