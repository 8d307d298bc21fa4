// Package cloud opens output destinations: local files, or objects in
// gocloud.dev blob buckets addressed by URL (file://, mem://, s3://,
// gs://).
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"gocloud.dev/blob"
	// Register the bucket URL schemes.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// IsBlob reports whether p is a bucket URL rather than a local path.
func IsBlob(p string) bool {
	return strings.Contains(p, "://")
}

// Split returns the bucket URL and object key of a blob URL. For file://
// URLs the bucket is the directory holding the file.
func Split(blobURL string) (bucketURL, key string, err error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("cloud: parsing %q: %w", blobURL, err)
	}
	if u.Scheme == "file" {
		return "file://" + path.Dir(u.Path), path.Base(u.Path), nil
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("cloud: %q has no object key", blobURL)
	}
	bucketURL = u.Scheme + "://" + u.Host
	if u.RawQuery != "" {
		bucketURL += "?" + u.RawQuery
	}
	return bucketURL, key, nil
}

// Join appends name to dir, a local directory or a blob URL prefix.
func Join(dir, name string) string {
	if !IsBlob(dir) {
		return filepath.Join(dir, name)
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// Sink creates output files. Buckets are opened once and kept until Close.
type Sink struct {
	mu      sync.Mutex
	buckets map[string]*blob.Bucket
}

// NewSink returns a Sink without open buckets.
func NewSink() *Sink {
	return &Sink{buckets: make(map[string]*blob.Bucket)}
}

// Bucket opens the bucket at bucketURL, or returns the one opened before.
func (s *Sink) Bucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[bucketURL]; ok {
		return b, nil
	}
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening bucket %q: %w", bucketURL, err)
	}
	s.buckets[bucketURL] = b
	return b, nil
}

// Create opens p for writing. Blob objects become visible when the
// returned writer is closed.
func (s *Sink) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	if !IsBlob(p) {
		//nolint:gosec // G304: output paths are chosen by the user
		return os.Create(p)
	}
	bucketURL, key, err := Split(p)
	if err != nil {
		return nil, err
	}
	b, err := s.Bucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	w, err := b.NewWriter(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening writer for %q: %w", p, err)
	}
	return w, nil
}

// WriteFile writes data to p.
func (s *Sink) WriteFile(ctx context.Context, p string, data []byte) error {
	w, err := s.Create(ctx, p)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Close closes every bucket opened by s.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for u, b := range s.buckets {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cloud: closing %q: %w", u, err))
		}
		delete(s.buckets, u)
	}
	return errors.Join(errs...)
}
