package models

import (
	"encoding/json"
	"time"
)

// PropertyMatch is a scored candidate pairing between properties ingested
// from different sources that plausibly describe the same physical
// property. Rows are written for later review, never auto-merged.
type PropertyMatch struct {
	ID           int64           `json:"id" db:"id"`
	MatchedID    string          `json:"matched_id" db:"matched_id"`
	IncomingID   string          `json:"incoming_id" db:"incoming_id"`
	Confidence   float64         `json:"confidence" db:"confidence"`
	MatchReasons json.RawMessage `json:"match_reasons" db:"match_reasons"`
	Status       string          `json:"status" db:"status"`
	ReviewedAt   *time.Time      `json:"reviewed_at" db:"reviewed_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
