package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStore is the Google Cloud Storage implementation of DocumentStore.
// It assumes Application Default Credentials are configured
// (gcloud auth application-default login).
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore creates a GCSStore with a shared storage client.
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: create storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Close closes the storage client connection.
func (s *GCSStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Put writes document bytes under the given storage path.
func (s *GCSStore) Put(ctx context.Context, storagePath, contentType string, data []byte) error {
	bucket, object, ok := splitPath(storagePath)
	if !ok {
		return fmt.Errorf("Put: invalid storage path: %s", storagePath)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("Put: copy to writer %s: %w", storagePath, err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("Put: finalize upload %s: %w", storagePath, err)
	}

	return nil
}

// Fetch downloads document bytes from the given storage path.
func (s *GCSStore) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	bucket, object, ok := splitPath(storagePath)
	if !ok {
		return nil, fmt.Errorf("Fetch: invalid storage path: %s", storagePath)
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}

	return data, nil
}

// Delete removes the document at the given storage path.
func (s *GCSStore) Delete(ctx context.Context, storagePath string) error {
	bucket, object, ok := splitPath(storagePath)
	if !ok {
		return fmt.Errorf("Delete: invalid storage path: %s", storagePath)
	}

	if err := s.client.Bucket(bucket).Object(object).Delete(ctx); err != nil {
		return fmt.Errorf("Delete: deleting object %s/%s: %w", bucket, object, err)
	}

	return nil
}

// Ensure GCSStore implements DocumentStore.
var _ DocumentStore = (*GCSStore)(nil)
