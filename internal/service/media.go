package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/storage"
)

// MediaService validates and normalises uploaded post images before they go
// to the asset store.
type MediaService struct {
	store   storage.AssetStore
	maxSize int64
}

func NewMediaService(store storage.AssetStore, maxSize int64) *MediaService {
	return &MediaService{store: store, maxSize: maxSize}
}

// UploadPostImage enforces size/type, scales the image down to fit the post
// bounds, re-encodes it as JPEG and stores it under posts/<uuid>.jpg.
func (s *MediaService) UploadPostImage(ctx context.Context, file io.Reader, size int64, contentType string) (*model.Asset, error) {
	data, err := s.readAndValidateImage(file, size, contentType)
	if err != nil {
		return nil, err
	}

	jpegBytes, err := fitToJPEG(data, model.MaxImageWidth, model.MaxImageHeight, model.ImageJPEGQuality)
	if err != nil {
		return nil, model.WrapError(model.KindValidation, "image could not be decoded", err)
	}

	key := fmt.Sprintf("%s/%s%s", model.PostImageFolder, uuid.NewString(), model.ImageExt)
	asset, err := s.store.Put(ctx, key, jpegBytes, model.ContentTypeJPEG, model.ImageCacheControl)
	if err != nil {
		return nil, err
	}

	log.Printf("[MediaService] Stored post image %s (%d bytes)", key, len(jpegBytes))
	return asset, nil
}

// Open streams a stored asset.
func (s *MediaService) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return s.store.Open(ctx, key)
}

// Delete removes stored assets. Failures are logged and skipped; an orphaned
// object is harmless.
func (s *MediaService) Delete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			log.WithError(err).WithField("key", key).Warn("[MediaService] Failed to delete asset")
		}
	}
}

// readAndValidateImage loads the upload into memory with size and type checks.
func (s *MediaService) readAndValidateImage(file io.Reader, size int64, contentType string) ([]byte, error) {
	if size > s.maxSize {
		return nil, model.ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, model.ErrFileTooLarge
	}

	if contentType == "" && len(data) > 0 {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !model.IsAllowedImageType(contentType) {
		return nil, model.ErrInvalidImageType
	}

	return data, nil
}

// fitToJPEG downsizes to fit within width x height, keeping the aspect
// ratio. Smaller images are only re-encoded.
func fitToJPEG(data []byte, width, height, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > width || b.Dy() > height {
		img = imaging.Fit(img, width, height, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
