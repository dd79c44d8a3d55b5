// Package media uploads, replaces and deletes images in an object store.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/phillip/parenting-hub-go/apperr"
)

// MaxFileSize is the exclusive upper bound for uploaded images.
const MaxFileSize = 5 << 20

// Folders used for object keys, one per kind of owner.
const (
	FolderEvents        = "events"
	FolderPlaces        = "places"
	FolderProfessionals = "professionals"
	FolderProducts      = "products"
)

var (
	// ErrStoreNotConfigured means no object store driver was set up.
	ErrStoreNotConfigured = fmt.Errorf("%w: store not configured", apperr.ErrConfiguration)
	// ErrNoBucket means the driver is set up but has no bucket to write to.
	ErrNoBucket = fmt.Errorf("%w: no bucket configured", apperr.ErrConfiguration)
)

// File is an image to upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Ext returns the lower-cased extension of the original file name, falling
// back to one derived from the content type.
func (f File) Ext() string {
	if ext := strings.ToLower(path.Ext(f.Name)); ext != "" && ext != "." {
		return ext
	}
	if exts, err := mime.ExtensionsByType(f.ContentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// Metadata is stored alongside the object.
type Metadata struct {
	ContentType  string
	OriginalName string
}

// Bucket is one object store. Put returns the public URL of the stored
// object; KeyFromURL reverses it and reports false for URLs the bucket does
// not own.
type Bucket interface {
	Name() string
	Probe(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, meta Metadata) (string, error)
	Remove(ctx context.Context, key string) error
	KeyFromURL(rawURL string) (string, bool)
}

// Availability reports whether uploads can be attempted.
type Availability struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

func unavailable(err error) Availability {
	var msg string
	switch {
	case errors.Is(err, ErrStoreNotConfigured):
		msg = "store not configured"
	case errors.Is(err, ErrNoBucket):
		msg = "no bucket configured"
	default:
		msg = apperr.UserMessage(err)
	}
	return Availability{Available: false, Error: msg}
}
