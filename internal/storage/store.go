package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"solemate/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImageStore persists product image bytes and serves them from a public URL
type ImageStore interface {
	// Put writes data under key and returns the URL shoppers load it from
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Remove deletes the objects. Keys that do not exist are ignored.
	Remove(ctx context.Context, keys []string) error
}

// ObjectKey builds the storage key of the index-th image uploaded for a product:
// {prefix}products/{product_id}/{index}-{unix_ms}{ext}
func ObjectKey(prefix string, productID uuid.UUID, index int, at time.Time, originalName, contentType string) string {
	return fmt.Sprintf("%sproducts/%s/%d-%d%s",
		normalizePrefix(prefix), productID, index, at.UnixMilli(), extension(originalName, contentType))
}

// New builds the ImageStore selected by cfg.Driver
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (ImageStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "s3":
		return NewS3Store(ctx, cfg, logger)
	case "gcs":
		return NewGCSStore(ctx, cfg, logger)
	case "memory":
		base := cfg.PublicBaseURL
		if base == "" {
			base = "http://localhost/" + cfg.Bucket
		}
		return NewMemoryStore(base), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func normalizePrefix(prefix string) string {
	p := strings.Trim(strings.TrimSpace(prefix), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func extension(originalName, contentType string) string {
	if ext := strings.ToLower(path.Ext(strings.TrimSpace(originalName))); ext != "" {
		return ext
	}
	if contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}

// publicURL joins a base URL and an object key
func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
