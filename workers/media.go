package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"propsift/models"
	"propsift/services"
)

// S3Uploader is the storage backend the media worker pushes downloaded
// assets to. storage.S3Uploader satisfies it.
type S3Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// MediaWorker drains the media_assets queue: downloads each pending URL,
// content-addresses the bytes, and uploads them to object storage.
type MediaWorker struct {
	media      *services.MediaService
	httpClient *http.Client
	uploader   S3Uploader
	triggerCh  chan struct{}
	logFunc    LogFunc
}

// NewMediaWorker creates a media worker. A nil client gets a default with
// a 60s timeout; a nil uploader means download-and-verify only.
func NewMediaWorker(media *services.MediaService, uploader S3Uploader, client *http.Client) *MediaWorker {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &MediaWorker{
		media:      media,
		httpClient: client,
		uploader:   uploader,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *MediaWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to process a batch immediately.
func (w *MediaWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// MediaProcessResult contains the outcome of processing one asset.
type MediaProcessResult struct {
	MediaID     uuid.UUID
	S3Key       string
	ContentHash string
	Size        int64
	Error       error
}

// Process downloads a single asset and uploads it under a
// content-addressed key.
func (w *MediaWorker) Process(ctx context.Context, asset *models.MediaAsset) MediaProcessResult {
	result := MediaProcessResult{MediaID: asset.ID}

	req, err := http.NewRequestWithContext(ctx, "GET", asset.OriginalURL, nil)
	if err != nil {
		result.Error = fmt.Errorf("create request: %w", err)
		return result
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("download: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("download status %d", resp.StatusCode)
		return result
	}

	// CDN originals can be large; cap reads at 50MB.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		return result
	}
	if len(data) == 0 {
		result.Error = fmt.Errorf("empty response body")
		return result
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	result.ContentHash = hash
	result.Size = int64(len(data))

	contentType := resp.Header.Get("Content-Type")
	ext := guessExtension(asset.OriginalURL, contentType)
	result.S3Key = fmt.Sprintf("media/%s/%s%s", hash[:2], hash, ext)

	if w.uploader != nil {
		if contentType == "" {
			contentType = "image/jpeg"
		}
		if err := w.uploader.Upload(ctx, result.S3Key, bytes.NewReader(data), contentType); err != nil {
			result.Error = fmt.Errorf("upload: %w", err)
			return result
		}
	}

	return result
}

// guessExtension picks a file extension from the URL path, falling back
// to the response content type.
func guessExtension(rawURL, contentType string) string {
	if ext := path.Ext(strings.SplitN(rawURL, "?", 2)[0]); isImageExt(ext) {
		return strings.ToLower(ext)
	}

	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "mp4"):
		return ".mp4"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif", ".mp4":
		return true
	}
	return false
}

// Run starts the media worker loop.
func (w *MediaWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Media worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			log.Println("Media worker triggered manually")
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *MediaWorker) processBatch(ctx context.Context, batchSize int) {
	assets, err := w.media.GetPending(ctx, batchSize)
	if err != nil {
		log.Printf("Media worker: query error: %v", err)
		return
	}

	if len(assets) == 0 {
		return
	}

	log.Printf("Media worker: processing %d pending assets", len(assets))

	var uploaded, failed int
	for i := range assets {
		asset := &assets[i]

		result := w.Process(ctx, asset)
		if result.Error != nil {
			attempts := asset.Attempts + 1
			log.Printf("Media worker: failed %s (attempt %d): %v", asset.OriginalURL, attempts, result.Error)
			if err := w.media.MarkFailed(ctx, asset.ID, attempts); err != nil {
				log.Printf("Media worker: failed to update asset %s: %v", asset.ID, err)
			}
			failed++
		} else {
			if err := w.media.MarkUploaded(ctx, asset.ID, result.S3Key, result.ContentHash, result.Size, asset.Attempts+1); err != nil {
				log.Printf("Media worker: failed to mark uploaded %s: %v", asset.ID, err)
			}
			uploaded++
		}

		// Rate limit between downloads
		time.Sleep(200 * time.Millisecond)
	}

	log.Printf("Media worker: batch done, uploaded %d, failed %d", uploaded, failed)
	if uploaded > 0 || failed > 0 {
		w.logFunc(models.LogLevelInfo, "media", fmt.Sprintf("Processed %d assets: %d uploaded, %d failed", len(assets), uploaded, failed))
	}
}

// NoOpUploader drains its input and discards it. Used when no object
// storage is configured.
type NoOpUploader struct{}

func (NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := io.Copy(io.Discard, data)
	return err
}
