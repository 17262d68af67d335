// Package docstore adapts an external blob store for uploaded statement
// documents. Objects are addressed by full storage path ("gs://bucket/object").
package docstore

import (
	"context"
	"path"
	"strings"
)

// DocumentStore provides an interface for binary document storage.
// This interface enables mocking and testing of storage functionality.
type DocumentStore interface {
	// Put writes document bytes under the given storage path.
	Put(ctx context.Context, storagePath, contentType string, data []byte) error

	// Fetch downloads document bytes from the given storage path.
	Fetch(ctx context.Context, storagePath string) ([]byte, error)

	// Delete removes the document at the given storage path.
	Delete(ctx context.Context, storagePath string) error
}

// FileNameFromPath extracts the filename from a storage path.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func FileNameFromPath(storagePath string) string {
	trimmed := strings.TrimPrefix(storagePath, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}

// splitPath splits "gs://bucket/object/path" into bucket and object parts.
func splitPath(storagePath string) (bucket, object string, ok bool) {
	if !strings.HasPrefix(storagePath, "gs://") {
		return "", "", false
	}

	trimmed := strings.TrimPrefix(storagePath, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", false
	}

	return parts[0], parts[1], true
}
