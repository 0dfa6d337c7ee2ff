package fragments

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-fragments/pkg/fragments/mediatype"
)

// Fragment is one stored, typed, owned unit of binary content.
//
// ID and OwnerID form the storage key. Type is fixed at construction; a
// different type needs a new Fragment. Size always reflects the byte
// length of the content most recently passed to SetData.
type Fragment struct {
	ID      string    `json:"id"`
	OwnerID string    `json:"ownerId"`
	Type    string    `json:"type"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// FragmentParams holds the arguments for NewFragment.
type FragmentParams struct {
	ID      string
	OwnerID string
	Type    string
	Size    int64
	// Created is kept when replacing an existing fragment; zero means now.
	Created time.Time
}

// NewFragment validates params against the type registry and returns a new
// Fragment. A missing ID is generated.
func NewFragment(params FragmentParams) (*Fragment, error) {
	if params.OwnerID == "" {
		return nil, invalid("new", "owner id is required")
	}
	if params.Type == "" {
		return nil, invalid("new", "type is required")
	}
	if params.Size < 0 {
		return nil, invalid("new", "size must not be negative")
	}
	if !mediatype.IsSupported(params.Type) {
		return nil, invalid("new", "unsupported type %q", params.Type)
	}

	now := time.Now().UTC()
	f := &Fragment{
		ID:      params.ID,
		OwnerID: params.OwnerID,
		Type:    params.Type,
		Size:    params.Size,
		Created: params.Created,
		Updated: now,
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Created.IsZero() {
		f.Created = now
	}
	return f, nil
}

// MimeType returns Type without parameters, e.g. "text/html" for
// "text/html; charset=utf-8".
func (f *Fragment) MimeType() string {
	if base, err := mediatype.BaseType(f.Type); err == nil {
		return base
	}
	return f.MediaType().String()
}

// MediaType returns the registry entry for the fragment's type.
func (f *Fragment) MediaType() mediatype.MediaType {
	return mediatype.Resolve(f.Type)
}

// IsText reports whether the fragment holds text/* content.
func (f *Fragment) IsText() bool {
	return strings.HasPrefix(f.MimeType(), "text/")
}

// Formats lists the MIME types the fragment can be converted to.
func (f *Fragment) Formats() []string {
	return mediatype.Strings(mediatype.FormatsFor(f.MediaType()))
}

func (f *Fragment) clone() *Fragment {
	c := *f
	return &c
}
