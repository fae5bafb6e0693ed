package storage

import (
	"context"
	"io"

	"geojungle/internal/model"
)

// AssetStore keeps uploaded post images. Keys are generated by the caller
// and stored verbatim on the post row.
type AssetStore interface {
	Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) (*model.Asset, error)
	// Open returns the object body and its content type. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	// Delete is a no-op for an empty or missing key.
	Delete(ctx context.Context, key string) error
}
