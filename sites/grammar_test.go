package sites

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestDetect(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		url  string
		want string
	}{
		{"https://www.zillow.com/homedetails/113-E-19th-St-New-York-NY-10003/31506434_zpid/", "zillow"},
		{"https://zillow.com/homedetails/something/123_zpid/", "zillow"},
		{"https://m.redfin.com/NY/New-York/135-E-19th-St-10003/home/214073302", "redfin"},
		{"https://www.compass.com/listing/123-main-st/456789", "compass"},
		{"https://photos.zillowstatic.com/fp/abc.jpg", "unknown"},
		{"https://example.org/listing/42", "unknown"},
		{"nonsense", "unknown"},
	}
	for _, tt := range tests {
		if got := reg.Detect(tt.url).ID(); got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestExternalID(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		url  string
		want string
	}{
		{"https://www.zillow.com/homedetails/113-E-19th-St-New-York-NY-10003/31506434_zpid/", "31506434"},
		{"https://www.redfin.com/NY/New-York/135-E-19th-St-10003/home/214073302", "214073302"},
		{"https://www.compass.com/listing/123-main-st/456789", ""},
		{"https://example.org/listing/42", ""},
	}
	for _, tt := range tests {
		g := reg.Detect(tt.url)
		if got := g.ExternalID(tt.url); got != tt.want {
			t.Errorf("%s ExternalID(%q) = %q, want %q", g.ID(), tt.url, got, tt.want)
		}
	}
}

func TestZillowURLAddress(t *testing.T) {
	z := NewZillow(Options{})

	addr := z.URLAddress("https://www.zillow.com/homedetails/113-E-19th-St-New-York-NY-10003/31506434_zpid/")
	if addr == nil {
		t.Fatal("expected address, got nil")
	}
	if addr.Street != "113 E 19th St" {
		t.Errorf("street = %q", addr.Street)
	}
	if addr.City != "New York" {
		t.Errorf("city = %q", addr.City)
	}
	if addr.State != "NY" || addr.PostalCode != "10003" {
		t.Errorf("state/zip = %q/%q", addr.State, addr.PostalCode)
	}

	addr = z.URLAddress("https://www.zillow.com/homedetails/456-Oak-Ave-Apt-2B-Austin-TX-78704/99_zpid/")
	if addr == nil {
		t.Fatal("expected address, got nil")
	}
	if addr.Street != "456 Oak Ave" || addr.Unit != "Apt 2B" || addr.City != "Austin" {
		t.Errorf("street/unit/city = %q/%q/%q", addr.Street, addr.Unit, addr.City)
	}

	if addr := z.URLAddress("https://www.zillow.com/profile/some-agent/"); addr != nil {
		t.Errorf("non-detail URL decoded to %+v", addr)
	}
}

func TestRedfinURLAddress(t *testing.T) {
	r := NewRedfin(Options{})

	addr := r.URLAddress("https://www.redfin.com/NY/New-York/135-E-19th-St-10003/unit-3A/home/214073302")
	if addr == nil {
		t.Fatal("expected address, got nil")
	}
	if addr.State != "NY" || addr.City != "New York" {
		t.Errorf("state/city = %q/%q", addr.State, addr.City)
	}
	if addr.Street != "135 E 19th St" || addr.PostalCode != "10003" {
		t.Errorf("street/zip = %q/%q", addr.Street, addr.PostalCode)
	}
	if addr.Unit != "3A" {
		t.Errorf("unit = %q", addr.Unit)
	}

	if addr := r.URLAddress("https://www.redfin.com/what-is-a-condo"); addr != nil {
		t.Errorf("non-detail URL decoded to %+v", addr)
	}
}

func TestUpgradeImageURL(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		site string
		in   string
		want string
	}{
		{
			"zillow",
			"https://photos.zillowstatic.com/fp/abcdef0123-cc_ft_768.webp",
			"https://photos.zillowstatic.com/fp/abcdef0123-uncropped_scaled_within_1536_1152.webp",
		},
		{
			"zillow",
			"https://photos.zillowstatic.com/fp/abcdef0123-uncropped_scaled_within_1536_1152.webp",
			"https://photos.zillowstatic.com/fp/abcdef0123-uncropped_scaled_within_1536_1152.webp",
		},
		{
			"compass",
			"https://img.compass.com/1500/photos/abc123/640x480.webp",
			"https://img.compass.com/1500/photos/abc123/origin.webp",
		},
		{
			"compass",
			"https://img.compass.com/1500/photos/abc123/origin.webp",
			"https://img.compass.com/1500/photos/abc123/origin.webp",
		},
	}
	for _, tt := range tests {
		g := reg.Get(tt.site)
		if g == nil {
			t.Fatalf("no grammar %q", tt.site)
		}
		if got := g.UpgradeImageURL(tt.in); got != tt.want {
			t.Errorf("%s UpgradeImageURL(%q) = %q, want %q", tt.site, tt.in, got, tt.want)
		}
	}
}

func TestIsListingImage(t *testing.T) {
	reg := DefaultRegistry()

	if !reg.Get("zillow").IsListingImage("https://photos.zillowstatic.com/fp/abc.jpg") {
		t.Error("zillow photo host rejected")
	}
	if reg.Get("zillow").IsListingImage("https://cdn.example.com/photo.jpg") {
		t.Error("foreign host accepted by zillow grammar")
	}

	g := reg.Detect("https://example.org/l/1")
	if !g.IsListingImage("https://cdn.example.org/photos/1.webp?w=1500") {
		t.Error("generic grammar rejected image extension")
	}
	if g.IsListingImage("https://example.org/styles/main.css") {
		t.Error("generic grammar accepted non-image")
	}
}

func TestDetailURLPattern(t *testing.T) {
	reg := DefaultRegistry()

	body := `<a href="https://www.zillow.com/homedetails/113-E-19th-St-New-York-NY-10003/31506434_zpid/">listing</a>
	<a href="https://www.zillow.com/homes/10003_rb/">search</a>
	<a href="https://www.redfin.com/NY/New-York/135-E-19th-St-10003/home/214073302">other</a>`

	zMatches := reg.Get("zillow").DetailURLPattern().FindAllString(body, -1)
	if len(zMatches) != 1 || !strings.Contains(zMatches[0], "31506434_zpid") {
		t.Errorf("zillow matches = %v", zMatches)
	}
	rMatches := reg.Get("redfin").DetailURLPattern().FindAllString(body, -1)
	if len(rMatches) != 1 || !strings.Contains(rMatches[0], "/home/214073302") {
		t.Errorf("redfin matches = %v", rMatches)
	}
}

func TestZillowStatePayloads(t *testing.T) {
	html := `<html><head>
	<script data-zrr-shared-data-key="mobileSearchPageStore"><!--{"listing":{"zpid":31506434}}--></script>
	<script>var other = 1;</script>
	</head><body></body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	payloads := NewZillow(Options{}).StatePayloads(doc)
	if len(payloads) != 1 {
		t.Fatalf("payloads = %d, want 1", len(payloads))
	}
	if payloads[0] != `{"listing":{"zpid":31506434}}` {
		t.Errorf("payload = %q", payloads[0])
	}
}

func TestSearchURL(t *testing.T) {
	reg := NewRegistry(map[string]Options{
		"zillow": {SearchTemplate: "https://www.zillow.com/homes/{ZIP}_rb/"},
	})

	if got := reg.Get("zillow").SearchURL("10003"); got != "https://www.zillow.com/homes/10003_rb/" {
		t.Errorf("SearchURL = %q", got)
	}
	if got := reg.Get("redfin").SearchURL("10003"); got != "" {
		t.Errorf("unconfigured SearchURL = %q, want empty", got)
	}
}
