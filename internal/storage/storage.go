// Package storage archives generated and uploaded documents (invoice PDFs and
// XMLs, receipt images).
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

// Archive stores a document under key and returns its URI.
type Archive interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Get(ctx context.Context, uri string) ([]byte, error)
}

// GCSArchive writes objects to a Google Cloud Storage bucket. Credentials come
// from Application Default Credentials.
type GCSArchive struct {
	client *storage.Client
	bucket string
}

// NewGCSArchive opens a storage client for bucket.
func NewGCSArchive(ctx context.Context, bucket string) (*GCSArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket}, nil
}

// Put uploads data and returns a gs:// URI.
func (a *GCSArchive) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", key, err)
	}
	return "gs://" + a.bucket + "/" + key, nil
}

// Get downloads the object behind a gs:// URI.
func (a *GCSArchive) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	rc, err := a.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Close releases the storage client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}

// ParseURI splits gs://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// MemoryArchive keeps documents in process memory. It backs tests and
// deployments without a bucket.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryArchive returns an empty MemoryArchive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte)}
}

// Put stores a copy of data and returns a mem:// URI.
func (a *MemoryArchive) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	uri := "mem://" + key
	a.mu.Lock()
	a.objects[uri] = append([]byte(nil), data...)
	a.mu.Unlock()
	return uri, nil
}

// Get returns the document stored under uri.
func (a *MemoryArchive) Get(_ context.Context, uri string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.objects[uri]
	if !ok {
		return nil, fmt.Errorf("object %s not found", uri)
	}
	return append([]byte(nil), data...), nil
}

// Len returns the number of stored documents.
func (a *MemoryArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.objects)
}
