package media

import (
	"reflect"
	"testing"

	"propsift/sites"
)

func TestResolveKeepsBestVariantPerIdentity(t *testing.T) {
	got := Resolve([]string{
		"https://cdn.example.com/g/abc123-small.webp",
		"https://cdn.example.com/g/abc123-origin.webp",
	}, sites.NewGeneric())

	want := []string{"https://cdn.example.com/g/abc123-origin.webp"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolveDiscardsLogoArt(t *testing.T) {
	got := Resolve([]string{
		"https://cdn.example.com/brand/logo.png",
		"https://cdn.example.com/assets/favicon-32.png",
		"https://cdn.example.com/ui/sprite.png",
		"https://cdn.example.com/agents/avatar-99.jpg",
		"https://cdn.example.com/g/house-front.jpg",
	}, sites.NewGeneric())

	want := []string{"https://cdn.example.com/g/house-front.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolveZillowUpgradeCollapsesCrops(t *testing.T) {
	g := sites.NewZillow(sites.Options{})
	got := Resolve([]string{
		"https://photos.zillowstatic.com/fp/0f849a97cf1e4871b93e-cc_ft_384.jpg",
		"https://photos.zillowstatic.com/fp/0f849a97cf1e4871b93e-cc_ft_768.jpg",
		"https://cdn.othersite.com/photo.jpg",
	}, g)

	want := []string{
		"https://photos.zillowstatic.com/fp/0f849a97cf1e4871b93e-uncropped_scaled_within_1536_1152.jpg",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolveCompassThumbnails(t *testing.T) {
	g := sites.NewCompass(sites.Options{})
	got := Resolve([]string{
		"https://www.compass.com/m/9f83a2c1/640x480.webp",
		"https://www.compass.com/m/9f83a2c1/origin.webp",
		"https://www.compass.com/m/4d21e0b7/origin.webp",
	}, g)

	// the thumbnail upgrades to its origin sibling and collapses into it;
	// the second photo keeps its own identity via the parent path segment
	want := []string{
		"https://www.compass.com/m/9f83a2c1/origin.webp",
		"https://www.compass.com/m/4d21e0b7/origin.webp",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolveFirstSeenOrder(t *testing.T) {
	got := Resolve([]string{
		"https://cdn.example.com/g/bbb999-small.webp",
		"https://cdn.example.com/g/aaa111-small.webp",
		"https://cdn.example.com/g/bbb999-origin.webp",
	}, nil)

	// bbb999 was seen first, so its best variant leads even though the
	// winning URL arrived last
	want := []string{
		"https://cdn.example.com/g/bbb999-origin.webp",
		"https://cdn.example.com/g/aaa111-small.webp",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolveSkipsEmptyAndExactDuplicates(t *testing.T) {
	got := Resolve([]string{
		"",
		"https://cdn.example.com/g/house.jpg",
		"https://cdn.example.com/g/house.jpg",
		"  ",
	}, nil)

	want := []string{"https://cdn.example.com/g/house.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve() = %v, want %v", got, want)
	}
}

func TestQualityScore(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"https://x.com/p/abc-origin.webp", 10},
		{"https://x.com/p/abc-uncropped_scaled_within_1536_1152.jpg", 12},
		{"https://x.com/p/1500x1000/11.jpg", 10},
		{"https://x.com/p/640x480.webp", 1},
		{"https://x.com/p/photo_xl.webp", 5},
		{"https://x.com/p/photo-large.jpg", 5},
		{"https://x.com/p/photo_m.jpg", 3},
		{"https://x.com/p/photo_s.webp", 2},
		{"https://x.com/p/thumb-100x100.jpg", 1},
		{"https://x.com/p/photo.jpg", 1},
	}
	for _, tt := range tests {
		if got := QualityScore(tt.url); got != tt.want {
			t.Errorf("QualityScore(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		// long hex digest beats everything around it
		{"https://photos.zillowstatic.com/fp/0f849a97cf1e4871b93e-cc_ft_768.jpg", "0f849a97cf1e4871b93e"},
		// embedded UUID
		{"https://cdn.x.com/i/3fa85f64-5717-4562-b3fc-2c963f66afa6/large.jpg", "3fa85f64-5717-4562-b3fc-2c963f66afa6"},
		// size suffixes stripped from the basename
		{"https://cdn.x.com/g/abc123-small.webp", "abc123"},
		{"https://cdn.x.com/g/abc123-origin.webp", "abc123"},
		{"https://cdn.x.com/g/IMG_2041-large.jpg?w=200", "img_2041"},
		// bare-token basename falls back to the parent segment
		{"https://www.compass.com/m/9f83a2c1/origin.webp", "9f83a2c1"},
		{"https://www.compass.com/m/9f83a2c1/640x480.webp", "9f83a2c1"},
	}
	for _, tt := range tests {
		if got := identityKey(tt.url); got != tt.want {
			t.Errorf("identityKey(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
