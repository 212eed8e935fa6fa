package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"solemate/internal/config"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSStore keeps product images in a Google Cloud Storage bucket.
// Objects are public when the bucket grants allUsers read access.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
	logger  *zap.Logger
}

// NewGCSStore uses application default credentials. Endpoint points the client
// at an emulator.
func NewGCSStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*GCSStore, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("gcs store: bucket is empty")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = publicURL(gcsPublicHost, bucket)
	}

	return &GCSStore{client: client, bucket: bucket, baseURL: base, logger: logger}, nil
}

// Put uploads one object
func (s *GCSStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	obj := strings.TrimLeft(strings.TrimSpace(key), "/")
	if obj == "" {
		return "", errors.New("gcs store: object key is empty")
	}

	w := s.client.Bucket(s.bucket).Object(obj).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	w.ChunkSize = 0
	w.Metadata = map[string]string{
		"uploadedAt": time.Now().UTC().Format(time.RFC3339),
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", obj, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", obj, err)
	}

	return publicURL(s.baseURL, obj), nil
}

// Remove deletes objects one by one, stopping at the first real failure
func (s *GCSStore) Remove(ctx context.Context, keys []string) error {
	bh := s.client.Bucket(s.bucket)
	for _, key := range keys {
		obj := strings.TrimLeft(strings.TrimSpace(key), "/")
		if obj == "" {
			continue
		}
		if err := bh.Object(obj).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("failed to delete object %s: %w", obj, err)
		}
	}
	return nil
}

// Close releases the underlying client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
