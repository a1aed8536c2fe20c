package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"propsift/config"
	"propsift/models"
)

// SupabaseStore mirrors listing and property rows to a Supabase project
// over PostgREST. It is an optional sink: a nil store is valid and every
// method is a no-op on it.
type SupabaseStore struct {
	url        string
	serviceKey string
	client     *http.Client
}

// NewSupabaseStore returns nil when the project URL or service key is not
// configured, which disables the sync path.
func NewSupabaseStore(cfg *config.SupabaseConfig) *SupabaseStore {
	if cfg == nil || cfg.URL == "" || cfg.ServiceKey == "" {
		return nil
	}
	return &SupabaseStore{
		url:        cfg.URL,
		serviceKey: cfg.ServiceKey,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// SyncRowSet pushes the listing and property rows of a saved set. The
// merge-duplicates preference makes the push an upsert on the same ids the
// warehouse uses.
func (s *SupabaseStore) SyncRowSet(rs *models.RowSet) error {
	if s == nil || rs == nil {
		return nil
	}

	if len(rs.Listings) > 0 {
		if err := s.upsert("/rest/v1/listings", rs.Listings); err != nil {
			return fmt.Errorf("sync listings: %w", err)
		}
	}
	if len(rs.Properties) > 0 {
		if err := s.upsert("/rest/v1/properties", rs.Properties); err != nil {
			return fmt.Errorf("sync properties: %w", err)
		}
	}
	return nil
}

func (s *SupabaseStore) upsert(path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", s.url+path, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
