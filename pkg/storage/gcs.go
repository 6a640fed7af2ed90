package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSStore keeps blobs in a Google Cloud Storage bucket.
type GCSStore struct {
	bucket *gcs.BucketHandle
	prefix string
}

// GCSConfig wires a GCSStore.
type GCSConfig struct {
	Bucket string
	Prefix string
	// Client overrides the default client built from ambient credentials.
	Client *gcs.Client
}

// NewGCSStore builds a store over the given bucket.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs store: bucket is required")
	}

	client := cfg.Client
	if client == nil {
		var err error
		client, err = gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs store: %w", err)
		}
	}

	return &GCSStore{bucket: client.Bucket(cfg.Bucket), prefix: cfg.Prefix}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	w := s.bucket.Object(objectKey(s.prefix, key)).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs put %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs put %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(objectKey(s.prefix, key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("gcs get %s: %w", key, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("gcs get %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	return data, nil
}
