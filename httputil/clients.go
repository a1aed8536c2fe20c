package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"propsift/config"
)

type Clients struct {
	Scraping *http.Client // optionally proxied, for target sites
	API      *http.Client // direct, for render service / Supabase / S3
}

// NewClients builds the two HTTP clients the pipeline uses. The scraping
// client never follows redirects: the refresh worker reads Location headers
// to classify delistings. HTTP/2 is disabled on the proxied transport since
// residential proxies tend to mangle it.
func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := &http.Transport{}
	if proxyCfg != nil && proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport = &http.Transport{
				Proxy:             http.ProxyURL(proxyURL),
				ForceAttemptHTTP2: false,
				TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
			}
		}
	}

	scraping := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 60 * time.Second},
	}
}

// BrowserHeaders applies the header set real listing sites expect from a
// desktop browser.
func BrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
}
