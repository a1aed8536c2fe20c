package models

import (
	"time"

	"github.com/google/uuid"
)

type MediaStatus string

const (
	MediaStatusPending  MediaStatus = "pending"
	MediaStatusUploaded MediaStatus = "uploaded"
	MediaStatusFailed   MediaStatus = "failed"
	MediaStatusSkipped  MediaStatus = "skipped"
)

// MediaAsset tracks one image through the download/upload pipeline. The
// media row written by the projector references the original URL; the asset
// row is the operational state the media worker advances.
type MediaAsset struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	ListingID   string      `json:"listing_id" db:"listing_id"`
	OriginalURL string      `json:"original_url" db:"original_url"`
	MediaType   string      `json:"media_type" db:"media_type"`
	Status      MediaStatus `json:"status" db:"status"`
	S3Key       *string     `json:"s3_key" db:"s3_key"`
	ContentHash string      `json:"content_hash" db:"content_hash"`
	SizeBytes   int64       `json:"size_bytes" db:"size_bytes"`
	Attempts    int         `json:"attempts" db:"attempts"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at" db:"updated_at"`
}
