package fragments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tendant/simple-fragments/pkg/fragments/convert"
	"github.com/tendant/simple-fragments/pkg/fragments/mediatype"
	"github.com/tendant/simple-fragments/pkg/fragments/objectkey"
)

// Service is the storage-backed fragment API.
type Service interface {
	// Create stores new content as a fresh fragment
	Create(ctx context.Context, req CreateFragmentRequest) (*Fragment, error)

	// Replace swaps the content of an existing fragment, keeping its id and creation time
	Replace(ctx context.Context, req ReplaceFragmentRequest) (*Fragment, error)

	// Save persists the fragment's metadata and refreshes Updated
	Save(ctx context.Context, fragment *Fragment) error

	// SetData recomputes Size, saves metadata, then writes the bytes.
	// Metadata is not rolled back when the byte write fails.
	SetData(ctx context.Context, fragment *Fragment, data []byte) error

	// GetData reads the fragment's bytes
	GetData(ctx context.Context, fragment *Fragment) ([]byte, error)

	// ByID looks up one fragment
	ByID(ctx context.Context, ownerID, id string) (*Fragment, error)

	// ByUser lists an owner's fragments as ids, or full fragments when expand is set
	ByUser(ctx context.Context, ownerID string, expand bool) (*FragmentList, error)

	// Delete removes a fragment's bytes and metadata
	Delete(ctx context.Context, ownerID, id string) error

	// Convert transforms data to the type named by ext
	Convert(ctx context.Context, fragment *Fragment, data []byte, ext string) (*convert.Result, error)
}

// service implements the Service interface
type service struct {
	repository  Repository
	blobStore   BlobStore
	backendName string
	keys        objectkey.Generator
	converter   Converter
	cache       ConversionCache
	eventSink   EventSink
	logger      *slog.Logger
	now         func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata repository
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the byte store and the name it reports in errors
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.backendName = name
		s.blobStore = store
	}
}

// WithKeyGenerator sets how blob keys are derived from (owner, id)
func WithKeyGenerator(g objectkey.Generator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// WithConverter replaces the conversion engine
func WithConverter(c Converter) Option {
	return func(s *service) {
		s.converter = c
	}
}

// WithConversionCache enables caching of converted output
func WithConversionCache(c ConversionCache) Option {
	return func(s *service) {
		s.cache = c
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for Updated
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}
	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, errors.New("repository is required")
	}
	if s.blobStore == nil {
		return nil, errors.New("blob store is required")
	}
	if s.keys == nil {
		s.keys = objectkey.NewFlatGenerator()
	}
	if s.converter == nil {
		s.converter = convert.New()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

func (s *service) Create(ctx context.Context, req CreateFragmentRequest) (*Fragment, error) {
	if req.Data == nil {
		return nil, &FragmentError{OwnerID: req.OwnerID, Op: "create", Err: ErrInvalidInput}
	}
	fragment, err := NewFragment(FragmentParams{OwnerID: req.OwnerID, Type: req.Type})
	if err != nil {
		return nil, err
	}
	if err := s.SetData(ctx, fragment, req.Data); err != nil {
		return nil, err
	}

	if err := s.eventSink.FragmentCreated(ctx, fragment); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "created", "id", fragment.ID, "err", err)
	}
	return fragment, nil
}

func (s *service) Replace(ctx context.Context, req ReplaceFragmentRequest) (*Fragment, error) {
	if req.Data == nil {
		return nil, &FragmentError{OwnerID: req.OwnerID, ID: req.ID, Op: "replace", Err: ErrInvalidInput}
	}
	existing, err := s.ByID(ctx, req.OwnerID, req.ID)
	if err != nil {
		return nil, err
	}
	if existing.Type != req.Type {
		return nil, &FragmentError{
			OwnerID: req.OwnerID,
			ID:      req.ID,
			Op:      "replace",
			Err:     fmt.Errorf("%w: have %q, got %q", ErrTypeMismatch, existing.Type, req.Type),
		}
	}

	fragment, err := NewFragment(FragmentParams{
		ID:      existing.ID,
		OwnerID: existing.OwnerID,
		Type:    req.Type,
		Created: existing.Created,
	})
	if err != nil {
		return nil, err
	}
	if err := s.SetData(ctx, fragment, req.Data); err != nil {
		return nil, err
	}

	if err := s.eventSink.FragmentUpdated(ctx, fragment); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "updated", "id", fragment.ID, "err", err)
	}
	return fragment, nil
}

func (s *service) Save(ctx context.Context, fragment *Fragment) error {
	fragment.Updated = s.now()
	if err := s.repository.WriteFragment(ctx, fragment.clone()); err != nil {
		return &StorageError{Backend: "metadata", Key: fragment.ID, Op: "write_metadata", Err: err}
	}
	return nil
}

func (s *service) SetData(ctx context.Context, fragment *Fragment, data []byte) error {
	if data == nil {
		return &FragmentError{OwnerID: fragment.OwnerID, ID: fragment.ID, Op: "set_data", Err: ErrInvalidInput}
	}

	fragment.Size = int64(len(data))
	if err := s.Save(ctx, fragment); err != nil {
		return err
	}

	// Metadata is already durable here; a failed upload leaves Size and
	// Updated describing bytes that were never written.
	key := s.keys.GenerateKey(fragment.OwnerID, fragment.ID)
	err := s.blobStore.UploadWithParams(ctx, bytes.NewReader(data), UploadParams{
		ObjectKey: key,
		MimeType:  fragment.Type,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "fragment bytes not written after metadata save",
			"id", fragment.ID, "owner_id", fragment.OwnerID, "size", fragment.Size, "err", err)
		return &StorageError{Backend: s.backendName, Key: key, Op: "write_bytes", Err: err}
	}
	return nil
}

func (s *service) GetData(ctx context.Context, fragment *Fragment) ([]byte, error) {
	key := s.keys.GenerateKey(fragment.OwnerID, fragment.ID)
	rc, err := s.blobStore.Download(ctx, key)
	if err != nil {
		return nil, &StorageError{Backend: s.backendName, Key: key, Op: "read_bytes", Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &StorageError{Backend: s.backendName, Key: key, Op: "read_bytes", Err: err}
	}
	return data, nil
}

func (s *service) ByID(ctx context.Context, ownerID, id string) (*Fragment, error) {
	fragment, err := s.repository.ReadFragment(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &FragmentError{OwnerID: ownerID, ID: id, Op: "get", Err: ErrNotFound}
		}
		return nil, &StorageError{Backend: "metadata", Key: id, Op: "read_metadata", Err: err}
	}
	return fragment, nil
}

func (s *service) ByUser(ctx context.Context, ownerID string, expand bool) (*FragmentList, error) {
	fragments, err := s.repository.ListFragments(ctx, ownerID)
	if err != nil {
		return nil, &StorageError{Backend: "metadata", Key: ownerID, Op: "list", Err: err}
	}

	list := &FragmentList{Expanded: expand}
	if expand {
		list.Fragments = fragments
		return list, nil
	}
	list.IDs = make([]string, 0, len(fragments))
	for _, f := range fragments {
		list.IDs = append(list.IDs, f.ID)
	}
	return list, nil
}

// Delete removes bytes before metadata so a failed delete leaves the
// fragment listed and the call can be retried.
func (s *service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.ByID(ctx, ownerID, id); err != nil {
		return err
	}

	key := s.keys.GenerateKey(ownerID, id)
	if err := s.blobStore.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return &StorageError{Backend: s.backendName, Key: key, Op: "delete_bytes", Err: err}
	}
	if err := s.repository.DeleteFragment(ctx, ownerID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &FragmentError{OwnerID: ownerID, ID: id, Op: "delete", Err: ErrNotFound}
		}
		return &StorageError{Backend: "metadata", Key: id, Op: "delete_metadata", Err: err}
	}

	if err := s.eventSink.FragmentDeleted(ctx, ownerID, id); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "deleted", "id", id, "err", err)
	}
	return nil
}

func (s *service) Convert(ctx context.Context, fragment *Fragment, data []byte, ext string) (*convert.Result, error) {
	source := fragment.MediaType()
	target, ok := mediatype.FromExtension(ext)
	if !ok || !mediatype.CanConvert(source, target) {
		return nil, &FragmentError{
			OwnerID: fragment.OwnerID,
			ID:      fragment.ID,
			Op:      "convert",
			Err:     fmt.Errorf("%w: %s to %q", ErrUnsupportedConversion, fragment.MimeType(), ext),
		}
	}

	kind, err := convert.Plan(source, target)
	if err != nil {
		return nil, err
	}
	cacheable := s.cache != nil && (kind == convert.RenderMarkdown || kind == convert.ExtractText || kind == convert.EncodeImage)

	key := conversionKey(fragment, target)
	if cacheable {
		cached, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "conversion cache read failed", "key", key, "err", err)
		} else if hit {
			return &convert.Result{Data: cached, Type: target, Kind: kind}, nil
		}
	}

	res, err := s.converter.ConvertTo(data, source, target)
	if err != nil {
		return nil, &FragmentError{OwnerID: fragment.OwnerID, ID: fragment.ID, Op: "convert", Err: err}
	}

	if cacheable {
		if err := s.cache.Set(ctx, key, res.Data); err != nil {
			s.logger.WarnContext(ctx, "conversion cache write failed", "key", key, "err", err)
		}
	}
	return res, nil
}

// conversionKey changes whenever the fragment is rewritten.
func conversionKey(f *Fragment, target mediatype.MediaType) string {
	return fmt.Sprintf("%s/%s/%d/%s", f.OwnerID, f.ID, f.Updated.UnixNano(), target)
}
