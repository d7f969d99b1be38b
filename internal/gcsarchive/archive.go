// Package gcsarchive stores scanned receipt images in a GCS bucket so the
// original document survives past the scan. Archival is best-effort: callers
// log failures and carry on.
package gcsarchive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Archiver persists raw receipt bytes and returns a stable URI for them.
type Archiver interface {
	Archive(ctx context.Context, data []byte, contentType string) (string, error)
	Close() error
}

// GCSArchiver is the concrete Archiver backed by Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCSArchiver struct {
	client *storage.Client
	bucket string
}

// NewGCSArchiver opens a storage client for the given bucket.
func NewGCSArchiver(ctx context.Context, bucket string) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcsarchive: create storage client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: bucket}, nil
}

// Archive uploads the bytes under receipts/YYYY/MM/DD/<uuid> and returns the
// gs:// URI of the object.
func (a *GCSArchiver) Archive(ctx context.Context, data []byte, contentType string) (string, error) {
	objectName := fmt.Sprintf("receipts/%s/%s", time.Now().Format("2006/01/02"), uuid.NewString())

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcsarchive: write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcsarchive: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// Close releases the storage client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

var _ Archiver = (*GCSArchiver)(nil)
