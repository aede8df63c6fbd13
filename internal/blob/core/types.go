// Package core defines the document store contract implemented by the blob
// backends and consumed through the top-level blob package.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem stores documents under a local directory.
	DriverFilesystem Driver = "fs" // local filesystem (default, dev)
	// DriverS3 stores documents in an S3 / MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps documents in process memory.
	DriverMemory Driver = "memory" // tests
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored document.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a minimal key/value document store.
type Store interface {
	// Put creates or replaces the document at key.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get returns the document. Missing keys yield an error matching ErrNotFound.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Delete removes a document, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns documents under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrNotFound is returned by Get for a key with no document.
var ErrNotFound = errors.New("blobstore: not found")

// CloneMetadata returns an independent copy of md.
func CloneMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
