package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"propsift/models"
	"propsift/storage"
)

// MediaService owns the media asset queue: resolver-surviving gallery URLs
// go in as pending assets, the media worker drains them.
type MediaService struct {
	store *storage.PostgresStore
}

func NewMediaService(store *storage.PostgresStore) *MediaService {
	return &MediaService{store: store}
}

// EnqueueRowSet queues every media row of a saved set. Already-known URLs
// keep their existing asset. Returns how many new assets were queued.
func (s *MediaService) EnqueueRowSet(ctx context.Context, rs *models.RowSet) (int, error) {
	if rs == nil {
		return 0, nil
	}
	queued := 0
	for _, m := range rs.Media {
		_, isNew, err := s.Enqueue(ctx, m.ListingID, m.MediaURL, m.MediaType)
		if err != nil {
			return queued, err
		}
		if isNew {
			queued++
		}
	}
	return queued, nil
}

// Enqueue records one URL as a pending asset. The original URL is the
// dedup key: a second listing referencing the same photo shares the asset.
func (s *MediaService) Enqueue(ctx context.Context, listingID, originalURL, mediaType string) (uuid.UUID, bool, error) {
	existing, err := s.store.GetMediaAssetByURL(ctx, originalURL)
	if err != nil {
		return uuid.Nil, false, err
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	asset := &models.MediaAsset{
		ID:          uuid.New(),
		ListingID:   listingID,
		OriginalURL: originalURL,
		MediaType:   mediaType,
		Status:      models.MediaStatusPending,
		Attempts:    0,
		CreatedAt:   time.Now(),
	}

	if err := s.store.InsertMediaAsset(ctx, asset); err != nil {
		return uuid.Nil, false, err
	}

	return asset.ID, true, nil
}

// GetPending returns assets the worker should attempt next.
func (s *MediaService) GetPending(ctx context.Context, limit int) ([]models.MediaAsset, error) {
	return s.store.GetPendingMediaAssets(ctx, limit)
}

func (s *MediaService) MarkUploaded(ctx context.Context, id uuid.UUID, s3Key, contentHash string, sizeBytes int64, attempts int) error {
	return s.store.UpdateMediaAssetStatus(ctx, id, models.MediaStatusUploaded, &s3Key, contentHash, sizeBytes, attempts)
}

// MarkFailed records a failed attempt; the asset stays pending until the
// attempt budget runs out.
func (s *MediaService) MarkFailed(ctx context.Context, id uuid.UUID, attempts int) error {
	status := models.MediaStatusPending
	if attempts >= 3 {
		status = models.MediaStatusFailed
	}
	return s.store.UpdateMediaAssetStatus(ctx, id, status, nil, "", 0, attempts)
}

func (s *MediaService) MarkSkipped(ctx context.Context, id uuid.UUID) error {
	return s.store.UpdateMediaAssetStatus(ctx, id, models.MediaStatusSkipped, nil, "", 0, 0)
}

// GetQueueDepth returns asset counts by status.
func (s *MediaService) GetQueueDepth(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*) as count
		FROM media_assets
		GROUP BY status`

	rows, err := s.store.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	return counts, rows.Err()
}
