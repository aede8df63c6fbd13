// Package blob exposes the document store used for biographies and event
// descriptions. It is the only package allowed to import the infra backends.
package blob

import (
	"context"

	"organcore/internal/blob/core"
	fsstore "organcore/internal/infra/blob/fs"
	memstore "organcore/internal/infra/blob/memory"
	s3store "organcore/internal/infra/blob/s3"
)

type (
	Driver     = core.Driver
	Info       = core.Info
	PutOptions = core.PutOptions
	Store      = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// ErrNotFound is returned by Store.Get for a missing document.
var ErrNotFound = core.ErrNotFound

// S3Config configures the S3 backend.
type S3Config = s3store.Config

// NewFilesystem returns a store rooted at dir.
func NewFilesystem(dir string) (Store, error) { return fsstore.New(dir) }

// NewMemory returns a process-local store.
func NewMemory() Store { return memstore.New() }

// NewS3 returns a store backed by an S3-compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3store.New(ctx, cfg) }
