package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newRefreshTestServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><h1>123 Main St</h1><span>$450,000</span></body></html>"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/removed", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>This listing is no longer available.</body></html>"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/homes/for_sale/")
		w.WriteHeader(http.StatusFound)
	})
	return httptest.NewServer(mux)
}

func noRedirectClient(server *httptest.Server) *http.Client {
	client := server.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}

func TestFetchLivePage(t *testing.T) {
	server := newRefreshTestServer()
	defer server.Close()

	worker := NewRefreshWorker(nil, nil, noRedirectClient(server))
	result := worker.Fetch(context.Background(), server.URL+"/live")

	if result.Error != nil {
		t.Fatalf("Fetch returned error: %v", result.Error)
	}
	if !result.Live {
		t.Error("expected live listing")
	}
	if result.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if !strings.Contains(result.HTML, "123 Main St") {
		t.Error("expected page body in result")
	}
}

func TestFetchGonePage(t *testing.T) {
	server := newRefreshTestServer()
	defer server.Close()

	worker := NewRefreshWorker(nil, nil, noRedirectClient(server))
	result := worker.Fetch(context.Background(), server.URL+"/gone")

	if result.Error != nil {
		t.Fatalf("Fetch returned error: %v", result.Error)
	}
	if result.Live {
		t.Error("404 page should not be live")
	}
	if result.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", result.StatusCode)
	}
}

func TestFetchRemovedContent(t *testing.T) {
	server := newRefreshTestServer()
	defer server.Close()

	worker := NewRefreshWorker(nil, nil, noRedirectClient(server))
	result := worker.Fetch(context.Background(), server.URL+"/removed")

	if result.Error != nil {
		t.Fatalf("Fetch returned error: %v", result.Error)
	}
	if result.Live {
		t.Error("removed-listing page should not be live")
	}
}

func TestFetchDelistRedirect(t *testing.T) {
	server := newRefreshTestServer()
	defer server.Close()

	worker := NewRefreshWorker(nil, nil, noRedirectClient(server))
	result := worker.Fetch(context.Background(), server.URL+"/moved")

	if result.Error != nil {
		t.Fatalf("Fetch returned error: %v", result.Error)
	}
	if result.Live {
		t.Error("redirect to search page should not be live")
	}
	if result.StatusCode != 302 {
		t.Errorf("StatusCode = %d, want 302", result.StatusCode)
	}
}

func TestIsDelistRedirect(t *testing.T) {
	tests := []struct {
		location string
		want     bool
	}{
		{"/homes/for_sale/", true},
		{"/search?city=austin", true},
		{"https://www.example.com/notfound", true},
		{"/homedetails/123-Main-St/456_zpid/", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isDelistRedirect(tt.location); got != tt.want {
			t.Errorf("isDelistRedirect(%q) = %v, want %v", tt.location, got, tt.want)
		}
	}
}
