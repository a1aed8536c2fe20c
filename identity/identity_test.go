package identity

import (
	"testing"

	"propsift/models"
)

func TestStableIDDeterministic(t *testing.T) {
	a := StableID("zillow", "12345678")
	b := StableID("zillow", "12345678")
	if a != b {
		t.Fatalf("same inputs produced different ids: %s vs %s", a, b)
	}
	if len(a) != 40 {
		t.Fatalf("expected 40 hex chars, got %d", len(a))
	}
	if a == StableID("redfin", "12345678") {
		t.Fatal("different sources must not collide")
	}
}

func TestStableIDSkipsEmptyParts(t *testing.T) {
	if StableID("zillow", "", "123") != StableID("zillow", "123") {
		t.Fatal("empty parts should not affect the hash")
	}
}

func TestListingIDPrefersExternalID(t *testing.T) {
	withExt := ListingID("zillow", "987654", "https://www.zillow.com/homedetails/x/987654_zpid/")
	again := ListingID("zillow", "987654", "https://www.zillow.com/homedetails/other-path/987654_zpid/")
	if withExt != again {
		t.Fatal("external id should make the listing id independent of the URL")
	}

	noExt := ListingID("zillow", "", "https://www.zillow.com/homedetails/x/987654_zpid/")
	if noExt == withExt {
		t.Fatal("url-keyed id should differ from external-id-keyed id")
	}
}

func TestListingIDUnknownSourceFallback(t *testing.T) {
	a := ListingID("", "", "https://example.com/listing/1")
	b := ListingID("unknown", "", "https://example.com/listing/1")
	if a != b {
		t.Fatal("empty source should normalize to unknown")
	}
}

func TestLocationIDKeepsEmptySlots(t *testing.T) {
	a := models.Address{Street: "12 Main St", City: "Boston"}
	b := models.Address{Street: "12 Main St", State: "Boston"}
	if LocationID(&a) == LocationID(&b) {
		t.Fatal("city and state occupy different slots and must not collide")
	}
}

func TestLocationIDCollapsesSameAddress(t *testing.T) {
	lat, lon := 42.3601, -71.0589
	a := models.Address{Street: "12 Main St", City: "Boston", State: "MA", PostalCode: "02108", Latitude: &lat, Longitude: &lon}
	b := models.Address{Street: "12 Main St", City: "Boston", State: "MA", PostalCode: "02108", Latitude: &lat, Longitude: &lon}
	if LocationID(&a) != LocationID(&b) {
		t.Fatal("identical address tuples must share a location id")
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"123 Main Street", "123 main st"},
		{"123 MAIN ST.", "123 main st"},
		{"45 Oak Avenue, Unit #2", "45 oak ave unit 2"},
		{"500 North Boulevard", "500 n blvd"},
		{"78 Café Lane", "78 cafe ln"},
	}
	for _, c := range cases {
		if got := NormalizeAddress(c.in); got != c.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAddressHashLength(t *testing.T) {
	h := AddressHash("123 Main Street, Springfield, IL 62704")
	if len(h) != 12 {
		t.Fatalf("expected 12 hex chars, got %d (%s)", len(h), h)
	}
	if h != AddressHash("123 Main St Springfield IL 62704") {
		t.Fatal("normalization should make punctuation variants hash equal")
	}
}

func TestPropertyFingerprintStable(t *testing.T) {
	addr := models.Address{Street: "9 Elm Street", PostalCode: "02108"}
	a := PropertyFingerprint(&addr, 3, 2, 1500, "single_family")
	b := PropertyFingerprint(&addr, 3, 2, 1500, "SINGLE_FAMILY")
	if a != b {
		t.Fatal("fingerprint should be case-insensitive on property type")
	}
	if a == PropertyFingerprint(&addr, 4, 2, 1500, "single_family") {
		t.Fatal("different beds must change the fingerprint")
	}
}
