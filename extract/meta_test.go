package extract

import (
	"testing"
)

func TestExtractMetaOpenGraph(t *testing.T) {
	html := `<html><head>
<meta property="og:title" content="400 Oak Ave, Springfield, IL 62704"/>
<meta property="og:description" content="3 bd, 2 ba ranch"/>
<meta property="og:image" content="https://img.example.com/hero.jpg"/>
</head></html>`
	f := ExtractMeta(NewDocument("https://example.com/l/1", html, ""))

	if got := f.str(fieldTitle); got != "400 Oak Ave, Springfield, IL 62704" {
		t.Fatalf("title = %q", got)
	}
	if got := f.str(fieldDescription); got != "3 bd, 2 ba ranch" {
		t.Fatalf("description = %q", got)
	}
	imgs := f.strings(fieldImages)
	if len(imgs) != 1 || imgs[0] != "https://img.example.com/hero.jpg" {
		t.Fatalf("images = %v", imgs)
	}
}

func TestExtractMetaOpenGraphOutranksTwitter(t *testing.T) {
	html := `<html><head>
<meta name="twitter:title" content="twitter title"/>
<meta property="og:title" content="og title"/>
</head></html>`
	f := ExtractMeta(NewDocument("https://example.com/l/1", html, ""))

	if got := f.str(fieldTitle); got != "og title" {
		t.Fatalf("title = %q, want og title", got)
	}
}

func TestExtractMetaTwitterFallback(t *testing.T) {
	html := `<html><head>
<meta name="twitter:description" content="from the card"/>
<meta name="twitter:image" content="//img.example.com/card.jpg"/>
</head></html>`
	f := ExtractMeta(NewDocument("https://example.com/l/1", html, ""))

	if got := f.str(fieldDescription); got != "from the card" {
		t.Fatalf("description = %q", got)
	}
	// protocol-relative content is not an http URL; the image is skipped
	if imgs := f.strings(fieldImages); imgs != nil {
		t.Fatalf("images = %v, want none", imgs)
	}
}

func TestExtractMetaEmptyDocument(t *testing.T) {
	f := ExtractMeta(NewDocument("https://example.com/l/1", "<html><head></head></html>", ""))
	if len(f) != 0 {
		t.Fatalf("expected no fields, got %v", f)
	}
}
