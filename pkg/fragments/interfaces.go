package fragments

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/tendant/simple-fragments/pkg/fragments/convert"
	"github.com/tendant/simple-fragments/pkg/fragments/mediatype"
)

// ErrObjectNotFound is returned by blob stores for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// Repository persists fragment metadata keyed by (ownerID, id).
type Repository interface {
	// WriteFragment inserts or replaces the metadata record
	WriteFragment(ctx context.Context, fragment *Fragment) error

	// ReadFragment returns ErrNotFound when the owner has no such fragment
	ReadFragment(ctx context.Context, ownerID, id string) (*Fragment, error)

	// ListFragments returns the owner's fragments, oldest first
	ListFragments(ctx context.Context, ownerID string) ([]*Fragment, error)

	// DeleteFragment returns ErrNotFound when there is nothing to delete
	DeleteFragment(ctx context.Context, ownerID, id string) error
}

// BlobStore defines the interface for fragment byte storage backends
type BlobStore interface {
	// Upload uploads content directly
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams uploads content with additional parameters
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// EventSink receives fragment lifecycle notifications
type EventSink interface {
	FragmentCreated(ctx context.Context, fragment *Fragment) error
	FragmentUpdated(ctx context.Context, fragment *Fragment) error
	FragmentDeleted(ctx context.Context, ownerID, id string) error
}

// ConversionCache stores converted output. A miss is (nil, false, nil).
type ConversionCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Converter is the conversion engine used by the service.
type Converter interface {
	ConvertTo(data []byte, source, target mediatype.MediaType) (*convert.Result, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}
