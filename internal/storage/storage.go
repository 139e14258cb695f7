// Package storage provides blob upload/download against the object store.
package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ObjectStore is the narrow blob interface the wizard needs: upload bytes,
// read them back, list a prefix, and derive public URLs.
type ObjectStore interface {
	// Upload writes data under bucket/name and returns its gs:// URI.
	Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error)

	// Download reads the full object bucket/name.
	Download(ctx context.Context, bucket, name string) ([]byte, error)

	// List returns the object names under a prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// PublicURL returns the public HTTPS URL for bucket/name.
	PublicURL(bucket, name string) string
}

// GCS implements ObjectStore on Google Cloud Storage.
type GCS struct {
	client *gcs.Client
}

// NewGCS creates a GCS-backed object store using ambient credentials.
func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client}, nil
}

// Upload writes data under bucket/name and returns its gs:// URI.
func (s *GCS) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error) {
	w := s.client.Bucket(bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", bucket, name), nil
}

// Download reads the full object bucket/name.
func (s *GCS) Download(ctx context.Context, bucket, name string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", name, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", name, err)
	}
	return data, nil
}

// List returns the object names under a prefix.
func (s *GCS) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// PublicURL returns the public HTTPS URL for bucket/name.
func (s *GCS) PublicURL(bucket, name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, name)
}

// Close releases the underlying client.
func (s *GCS) Close() error {
	return s.client.Close()
}
