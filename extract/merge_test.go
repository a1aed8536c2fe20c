package extract

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"propsift/models"
	"propsift/sites"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

const zillowDetailURL = "https://www.zillow.com/homedetails/113-E-19th-St-New-York-NY-10003/31506434_zpid/"

func mergedRecord(t *testing.T) *models.CanonicalRecord {
	t.Helper()
	doc := NewDocument(zillowDetailURL,
		loadFixture(t, "zillow_detail.html"),
		loadFixture(t, "zillow_detail.md"))
	return Merge(doc, sites.DefaultRegistry().Detect(zillowDetailURL))
}

func TestMergeIdentityFromState(t *testing.T) {
	rec := mergedRecord(t)
	if rec.SourceID != "zillow" {
		t.Fatalf("source id = %q", rec.SourceID)
	}
	// the embedded state carries a different zpid than the URL; the state
	// value outranks the URL derivation
	if rec.ExternalID != "99887766" {
		t.Fatalf("external id = %q, want the state zpid 99887766", rec.ExternalID)
	}
	if rec.SourceURL != zillowDetailURL {
		t.Fatalf("source url = %q", rec.SourceURL)
	}
}

func TestMergeScalarPriority(t *testing.T) {
	rec := mergedRecord(t)
	// state price beats the JSON-LD offer and the markdown maximum
	if rec.ListPrice == nil || *rec.ListPrice != 1250000 {
		t.Fatalf("list price = %v, want 1250000", rec.ListPrice)
	}
	// state bedrooms beat the JSON-LD count
	if rec.Beds == nil || *rec.Beds != 3 {
		t.Fatalf("beds = %v, want 3", rec.Beds)
	}
	if rec.Baths == nil || *rec.Baths != 2.5 {
		t.Fatalf("baths = %v", rec.Baths)
	}
	if rec.InteriorArea == nil || *rec.InteriorArea != 1480 {
		t.Fatalf("area = %v", rec.InteriorArea)
	}
	if rec.YearBuilt == nil || *rec.YearBuilt != 1925 {
		t.Fatalf("year built = %v", rec.YearBuilt)
	}
	if rec.PropertyType != models.TypeSingleFamily {
		t.Fatalf("property type = %q", rec.PropertyType)
	}
	if rec.Status != models.StatusActive {
		t.Fatalf("status = %q, want active from FOR_SALE", rec.Status)
	}
	if rec.ListDate != "2024-03-05" {
		t.Fatalf("list date = %q", rec.ListDate)
	}
}

func TestMergeAddress(t *testing.T) {
	rec := mergedRecord(t)
	a := rec.Address
	if a.Street != "113 E 19th St" || a.City != "New York" || a.State != "NY" || a.PostalCode != "10003" {
		t.Fatalf("address = %+v", a)
	}
	if a.Latitude == nil || *a.Latitude != 40.7367 {
		t.Fatalf("latitude = %v", a.Latitude)
	}
	if a.Longitude == nil || *a.Longitude != -73.9865 {
		t.Fatalf("longitude = %v", a.Longitude)
	}
}

func TestMergeImageListIsWholesale(t *testing.T) {
	rec := mergedRecord(t)
	// the state gallery wins as one unit: no og:image, no body img, no
	// markdown image mixed in
	want := []string{
		"https://photos.zillowstatic.com/fp/abc123-cc_ft_768.jpg",
		"https://photos.zillowstatic.com/fp/def456-cc_ft_768.jpg",
	}
	if len(rec.Images) != len(want) {
		t.Fatalf("images = %v, want exactly the state gallery", rec.Images)
	}
	for i := range want {
		if rec.Images[i] != want[i] {
			t.Fatalf("image[%d] = %q, want %q", i, rec.Images[i], want[i])
		}
	}
}

func TestMergeTitleAndDescription(t *testing.T) {
	rec := mergedRecord(t)
	if rec.Title != "113 E 19th St, New York, NY 10003 | MLS #8842" {
		t.Fatalf("title = %q, want the og:title", rec.Title)
	}
	if !strings.HasPrefix(rec.Description, "Classic Gramercy brownstone") {
		t.Fatalf("description = %q, want the linked-data paragraph", rec.Description)
	}
}

func TestMergeAgentPriority(t *testing.T) {
	rec := mergedRecord(t)
	if len(rec.Agents) != 1 {
		t.Fatalf("agents = %+v", rec.Agents)
	}
	a := rec.Agents[0]
	if a.Name != "Jane Smith" || a.Brokerage != "Douglas Elliman" || a.Phone != "(212) 555-0199" {
		t.Fatalf("agent = %+v, want the state attribution, not the markdown line", a)
	}
}

func TestMergePriceHistory(t *testing.T) {
	rec := mergedRecord(t)
	if len(rec.PriceHistory) != 2 {
		t.Fatalf("history = %+v", rec.PriceHistory)
	}
	if rec.PriceHistory[0].Date != "2024-03-05" || rec.PriceHistory[0].Type != models.EventListed {
		t.Fatalf("event[0] = %+v", rec.PriceHistory[0])
	}
	if rec.PriceHistory[1].Date != "2020-01-10" || rec.PriceHistory[1].Type != models.EventSold {
		t.Fatalf("event[1] = %+v", rec.PriceHistory[1])
	}
}

func TestMergeHeuristicOnlyFields(t *testing.T) {
	rec := mergedRecord(t)
	if rec.Engagement.Views == nil || *rec.Engagement.Views != 1234 {
		t.Fatalf("views = %v", rec.Engagement.Views)
	}
	if rec.Engagement.Saves == nil || *rec.Engagement.Saves != 56 {
		t.Fatalf("saves = %v", rec.Engagement.Saves)
	}
	if rec.DaysOnMarket == nil || *rec.DaysOnMarket != 12 {
		t.Fatalf("days on market = %v", rec.DaysOnMarket)
	}
	mc := rec.Financial.Monthly
	if mc == nil || mc.PrincipalAndInterest == nil || *mc.PrincipalAndInterest != 6900 {
		t.Fatalf("monthly costs = %+v", mc)
	}
	if mc.Currency != "USD" {
		t.Fatalf("currency = %q", mc.Currency)
	}
}

func TestMergeDerivesPricePerSqft(t *testing.T) {
	rec := mergedRecord(t)
	if rec.PricePerSqft == nil {
		t.Fatal("price per sqft missing")
	}
	if math.Abs(*rec.PricePerSqft-844.5945945945946) > 0.001 {
		t.Fatalf("price per sqft = %v", *rec.PricePerSqft)
	}
}

func TestMergeBlockedPage(t *testing.T) {
	doc := NewDocument(zillowDetailURL, loadFixture(t, "blocked.html"), "")
	rec := Merge(doc, sites.DefaultRegistry().Detect(zillowDetailURL))

	if !rec.Blocked() {
		t.Fatal("challenge page should flag the record blocked")
	}
	if rec.SourceID != "zillow" || rec.SourceURL != zillowDetailURL {
		t.Fatalf("identity fields = %q %q", rec.SourceID, rec.SourceURL)
	}
	// external id on a blocked page is a pure URL derivation
	if rec.ExternalID != "31506434" {
		t.Fatalf("external id = %q", rec.ExternalID)
	}
	if rec.ListPrice != nil || rec.Beds != nil || len(rec.Images) != 0 {
		t.Fatalf("blocked record must stay minimal: %+v", rec)
	}
	if !rec.Address.Empty() {
		t.Fatalf("blocked record must carry no address, got %+v", rec.Address)
	}
}

func TestMergeTinyPageBlocked(t *testing.T) {
	doc := NewDocument(zillowDetailURL, "<html><body>hi</body></html>", "")
	rec := Merge(doc, sites.DefaultRegistry().Detect(zillowDetailURL))
	if rec.Status != models.StatusBlocked {
		t.Fatalf("status = %q, want blocked for sub-threshold text", rec.Status)
	}
}

func TestMergeURLFallback(t *testing.T) {
	filler := strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing elit ", 20)
	doc := NewDocument(zillowDetailURL, "", filler)
	rec := Merge(doc, sites.DefaultRegistry().Detect(zillowDetailURL))

	if rec.Blocked() {
		t.Fatal("long filler page must not read as blocked")
	}
	if rec.ExternalID != "31506434" {
		t.Fatalf("external id = %q, want the URL zpid", rec.ExternalID)
	}
	a := rec.Address
	if a.Street != "113 E 19th St" || a.City != "New York" || a.State != "NY" || a.PostalCode != "10003" {
		t.Fatalf("url-derived address = %+v", a)
	}
}

func TestMergeScrubsPlaceholderTitle(t *testing.T) {
	filler := strings.Repeat("plain words without any probe keywords here ", 20)
	html := `<html><head><meta property="og:title" content="About This Home"/></head><body><p>` +
		filler + `</p></body></html>`
	rec := Merge(NewDocument("https://www.example.com/x", html, ""), sites.DefaultRegistry().Detect("https://www.example.com/x"))

	if rec.Title != "" {
		t.Fatalf("title = %q, want placeholder scrubbed", rec.Title)
	}
}
