package receipt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStorage implements the Storage interface on a Google Cloud Storage bucket.
// Objects are expected to be publicly readable through the bucket's IAM policy.
type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a GCS backed store. Credentials come from Application
// Default Credentials unless opts say otherwise.
func NewGCSStorage(ctx context.Context, bucket string, prefix string, opts ...option.ClientOption) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Save uploads a file and returns its key
func (g *GCSStorage) Save(ctx context.Context, filename string, data []byte) (string, error) {
	w := g.object(filename).NewWriter(ctx)
	w.ContentType = http.DetectContentType(data)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing object: %w", err)
	}
	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing upload: %w", err)
	}
	return filename, nil
}

// Get downloads a file
func (g *GCSStorage) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := g.object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading object bytes: %w", err)
	}
	return data, nil
}

// Delete removes a file
func (g *GCSStorage) Delete(ctx context.Context, key string) error {
	if err := g.object(key).Delete(ctx); err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// URL returns the public storage.googleapis.com URL of an object
func (g *GCSStorage) URL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, g.objectName(key))
}

// Close closes the storage client
func (g *GCSStorage) Close() error {
	return g.client.Close()
}

func (g *GCSStorage) object(key string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(g.objectName(key))
}

func (g *GCSStorage) objectName(key string) string {
	if g.prefix == "" {
		return key
	}
	return path.Join(g.prefix, key)
}
