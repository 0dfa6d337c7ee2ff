package fragments_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"

	"github.com/tendant/simple-fragments/pkg/fragments"
	"github.com/tendant/simple-fragments/pkg/fragments/convert"
	"github.com/tendant/simple-fragments/pkg/fragments/mediatype"
	"github.com/tendant/simple-fragments/pkg/fragments/repo/memory"
	memorystorage "github.com/tendant/simple-fragments/pkg/fragments/storage/memory"
)

// countingRepository records how often the metadata store is touched.
type countingRepository struct {
	fragments.Repository
	mu     sync.Mutex
	writes int
}

func (r *countingRepository) WriteFragment(ctx context.Context, f *fragments.Fragment) error {
	r.mu.Lock()
	r.writes++
	r.mu.Unlock()
	return r.Repository.WriteFragment(ctx, f)
}

// countingStore records uploads and can be told to fail them.
type countingStore struct {
	fragments.BlobStore
	uploads    int
	failUpload error
	failDelete error
}

func (s *countingStore) UploadWithParams(ctx context.Context, r io.Reader, p fragments.UploadParams) error {
	s.uploads++
	if s.failUpload != nil {
		return s.failUpload
	}
	return s.BlobStore.UploadWithParams(ctx, r, p)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	if s.failDelete != nil {
		return s.failDelete
	}
	return s.BlobStore.Delete(ctx, key)
}

type mapCache struct {
	data map[string][]byte
	gets int
	sets int
	err  error
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(ctx context.Context, key string, data []byte) error {
	c.sets++
	if c.err != nil {
		return c.err
	}
	c.data[key] = data
	return nil
}

type countingConverter struct {
	inner *convert.Engine
	calls int
}

func (c *countingConverter) ConvertTo(data []byte, source, target mediatype.MediaType) (*convert.Result, error) {
	c.calls++
	return c.inner.ConvertTo(data, source, target)
}

type recordingSink struct {
	fragments.NoopEventSink
	created, updated, deleted []string
}

func (s *recordingSink) FragmentCreated(ctx context.Context, f *fragments.Fragment) error {
	s.created = append(s.created, f.ID)
	return nil
}

func (s *recordingSink) FragmentUpdated(ctx context.Context, f *fragments.Fragment) error {
	s.updated = append(s.updated, f.ID)
	return nil
}

func (s *recordingSink) FragmentDeleted(ctx context.Context, ownerID, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type fixture struct {
	svc   fragments.Service
	repo  *countingRepository
	store *countingStore
}

func setupTestService(t *testing.T, opts ...fragments.Option) *fixture {
	t.Helper()
	repo := &countingRepository{Repository: memory.New()}
	store := &countingStore{BlobStore: memorystorage.New()}

	options := append([]fragments.Option{
		fragments.WithRepository(repo),
		fragments.WithBlobStore("memory", store),
	}, opts...)
	svc, err := fragments.New(options...)
	require.NoError(t, err)
	return &fixture{svc: svc, repo: repo, store: store}
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []fragments.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			expectError: true,
		},
		{
			name:        "repository without blob store should fail",
			options:     []fragments.Option{fragments.WithRepository(memory.New())},
			expectError: true,
		},
		{
			name: "with repository and blob store should succeed",
			options: []fragments.Option{
				fragments.WithRepository(memory.New()),
				fragments.WithBlobStore("memory", memorystorage.New()),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := fragments.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestMarkdownScenario(t *testing.T) {
	fx := setupTestService(t)
	ctx := context.Background()

	f, err := fragments.NewFragment(fragments.FragmentParams{OwnerID: "u1", Type: "text/markdown"})
	require.NoError(t, err)
	require.NoError(t, fx.svc.SetData(ctx, f, []byte("**bold**")))
	assert.Equal(t, int64(len("**bold**")), f.Size)

	data, err := fx.svc.GetData(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "**bold**", string(data))

	res, err := fx.svc.Convert(ctx, f, data, ".html")
	require.NoError(t, err)
	assert.Contains(t, string(res.Data), "<strong>bold</strong>")
	assert.Equal(t, mediatype.TextHTML, res.Type)

	_, err = fx.svc.Convert(ctx, f, data, ".json")
	assert.ErrorIs(t, err, fragments.ErrUnsupportedConversion)
	assert.NotErrorIs(t, err, fragments.ErrStorage)
}

func TestImageScenario(t *testing.T) {
	fx := setupTestService(t)
	ctx := context.Background()

	f, err := fx.svc.Create(ctx, fragments.CreateFragmentRequest{
		OwnerID: "u1",
		Type:    "image/png",
		Data:    samplePNG(t),
	})
	require.NoError(t, err)

	data, err := fx.svc.GetData(ctx, f)
	require.NoError(t, err)

	res, err := fx.svc.Convert(ctx, f, data, "webp")
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(res.Data[:4]))
	assert.Equal(t, "WEBP", string(res.Data[8:12]))

	img, err := webp.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
}

func TestConvert_Identity(t *testing.T) {
	fx := setupTestService(t)
	ctx := context.Background()

	f, err := fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u1", Type: "application/json", Data: []byte(`{"a":1}`)})
	require.NoError(t, err)

	res, err := fx.svc.Convert(ctx, f, []byte(`{"a":1}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), res.Data)
	assert.Equal(t, convert.Identity, res.Kind)

	res, err = fx.svc.Convert(ctx, f, []byte(`{"a":1}`), ".txt")
	require.NoError(t, err)
	assert.Equal(t, mediatype.TextPlain, res.Type)
}

func TestConvert_UnknownExtension(t *testing.T) {
	conv := &countingConverter{inner: convert.New()}
	fx := setupTestService(t, fragments.WithConverter(conv))

	f, err := fragments.NewFragment(fragments.FragmentParams{OwnerID: "u1", Type: "text/plain"})
	require.NoError(t, err)

	for _, ext := range []string{".exe", ".html", ".png", ""} {
		_, err := fx.svc.Convert(context.Background(), f, []byte("x"), ext)
		assert.ErrorIs(t, err, fragments.ErrUnsupportedConversion, ext)
	}
	assert.Zero(t, conv.calls)
}

func TestConvert_Cache(t *testing.T) {
	cache := &mapCache{data: map[string][]byte{}}
	conv := &countingConverter{inner: convert.New()}
	fx := setupTestService(t, fragments.WithConversionCache(cache), fragments.WithConverter(conv))
	ctx := context.Background()

	f, err := fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u1", Type: "text/markdown", Data: []byte("# Hi")})
	require.NoError(t, err)

	first, err := fx.svc.Convert(ctx, f, []byte("# Hi"), ".html")
	require.NoError(t, err)
	second, err := fx.svc.Convert(ctx, f, []byte("# Hi"), ".html")
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, 1, conv.calls)
	assert.Equal(t, 1, cache.sets)

	// Identity conversions bypass the cache.
	_, err = fx.svc.Convert(ctx, f, []byte("# Hi"), ".md")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 2, conv.calls)
}

func TestConvert_CacheInvalidatedByReplace(t *testing.T) {
	cache := &mapCache{data: map[string][]byte{}}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fx := setupTestService(t,
		fragments.WithConversionCache(cache),
		fragments.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	ctx := context.Background()

	f, err := fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u1", Type: "text/markdown", Data: []byte("# One")})
	require.NoError(t, err)
	res, err := fx.svc.Convert(ctx, f, []byte("# One"), ".html")
	require.NoError(t, err)
	assert.Contains(t, string(res.Data), "One")

	f, err = fx.svc.Replace(ctx, fragments.ReplaceFragmentRequest{OwnerID: "u1", ID: f.ID, Type: "text/markdown", Data: []byte("# Two")})
	require.NoError(t, err)
	res, err = fx.svc.Convert(ctx, f, []byte("# Two"), ".html")
	require.NoError(t, err)
	assert.Contains(t, string(res.Data), "Two")
}

func TestConvert_CacheFailureIsBypassed(t *testing.T) {
	cache := &mapCache{data: map[string][]byte{}, err: errors.New("connection refused")}
	fx := setupTestService(t, fragments.WithConversionCache(cache))
	ctx := context.Background()

	f, err := fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u1", Type: "text/markdown", Data: []byte("*x*")})
	require.NoError(t, err)

	res, err := fx.svc.Convert(ctx, f, []byte("*x*"), ".html")
	require.NoError(t, err)
	assert.Contains(t, string(res.Data), "<em>x</em>")
}

func TestSetData_NilInput(t *testing.T) {
	fx := setupTestService(t)

	f, err := fragments.NewFragment(fragments.FragmentParams{OwnerID: "u1", Type: "text/plain", Size: 5})
	require.NoError(t, err)
	updated := f.Updated

	err = fx.svc.SetData(context.Background(), f, nil)
	assert.ErrorIs(t, err, fragments.ErrInvalidInput)
	assert.Equal(t, int64(5), f.Size)
	assert.Equal(t, updated, f.Updated)
	assert.Zero(t, fx.repo.writes)
	assert.Zero(t, fx.store.uploads)
}

func TestSetData_EmptyContent(t *testing.T) {
	fx := setupTestService(t)
	ctx := context.Background()

	f, err := fragments.NewFragment(fragments.FragmentParams{OwnerID: "u1", Type: "text/plain"})
	require.NoError(t, err)
	require.NoError(t, fx.svc.SetData(ctx, f, []byte{}))

	data, err := fx.svc.GetData(ctx, f)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Equal(t, int64(0), f.Size)
}

func TestSetData_PartialWrite(t *testing.T) {
	fx := setupTestService(t)
	ctx := context.Background()
	fx.store.failUpload = errors.New("bucket unavailable")

	f, err := fragments.NewFragment(fragments.FragmentParams{OwnerID: "u1", Type: "text/plain"})
	require.NoError(t, err)

	err = fx.svc.SetData(ctx, f, []byte("hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fragments.ErrStorage)

	var storageErr *fragments.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "memory", storageErr.Backend)
	assert.Equal(t, "write_bytes", storageErr.Op)

	// Metadata was saved before the upload failed and is not rolled back.
	stored, err := fx.svc.ByID(ctx, "u1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.Size)

	_, err = fx.svc.GetData(ctx, f)
	assert.ErrorIs(t, err, fragments.ErrStorage)
	assert.ErrorIs(t, err, fragments.ErrObjectNotFound)
}

func TestSave_RefreshesUpdated(t *testing.T) {
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	fx := setupTestService(t, fragments.WithClock(func() time.Time { return at }))

	f, err := fragments.NewFragment(fragments.FragmentParams{OwnerID: "u1", Type: "text/plain"})
	require.NoError(t, err)
	created := f.Created

	require.NoError(t, fx.svc.Save(context.Background(), f))
	assert.Equal(t, at, f.Updated)
	assert.Equal(t, created, f.Created)

	stored, err := fx.svc.ByID(context.Background(), "u1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, at, stored.Updated)
}

func TestCreate(t *testing.T) {
	sink := &recordingSink{}
	fx := setupTestService(t, fragments.WithEventSink(sink))
	ctx := context.Background()

	f, err := fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u1", Type: "text/plain; charset=utf-8", Data: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.Size)
	assert.Equal(t, "text/plain; charset=utf-8", f.Type)
	assert.Equal(t, []string{f.ID}, sink.created)
	assert.Equal(t, 1, fx.repo.writes)

	_, err = fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u1", Type: "video/mp4", Data: []byte("x")})
	assert.ErrorIs(t, err, fragments.ErrInvalidFragment)

	_, err = fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u1", Type: "text/plain"})
	assert.ErrorIs(t, err, fragments.ErrInvalidInput)
	assert.Equal(t, 1, fx.store.uploads)
}

func TestReplace(t *testing.T) {
	sink := &recordingSink{}
	fx := setupTestService(t, fragments.WithEventSink(sink))
	ctx := context.Background()

	orig, err := fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u1", Type: "text/plain", Data: []byte("one")})
	require.NoError(t, err)

	t.Run("same type", func(t *testing.T) {
		f, err := fx.svc.Replace(ctx, fragments.ReplaceFragmentRequest{OwnerID: "u1", ID: orig.ID, Type: "text/plain", Data: []byte("three")})
		require.NoError(t, err)
		assert.Equal(t, orig.ID, f.ID)
		assert.Equal(t, orig.Created, f.Created)
		assert.Equal(t, int64(5), f.Size)
		assert.Equal(t, []string{orig.ID}, sink.updated)

		data, err := fx.svc.GetData(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, "three", string(data))
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := fx.svc.Replace(ctx, fragments.ReplaceFragmentRequest{OwnerID: "u1", ID: orig.ID, Type: "text/html", Data: []byte("<p>x</p>")})
		assert.ErrorIs(t, err, fragments.ErrTypeMismatch)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := fx.svc.Replace(ctx, fragments.ReplaceFragmentRequest{OwnerID: "u1", ID: "missing", Type: "text/plain", Data: []byte("x")})
		assert.ErrorIs(t, err, fragments.ErrNotFound)
	})

	t.Run("other owner", func(t *testing.T) {
		_, err := fx.svc.Replace(ctx, fragments.ReplaceFragmentRequest{OwnerID: "u2", ID: orig.ID, Type: "text/plain", Data: []byte("x")})
		assert.ErrorIs(t, err, fragments.ErrNotFound)
	})
}

func TestByUser(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fx := setupTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		f, err := fragments.NewFragment(fragments.FragmentParams{OwnerID: "u1", Type: "text/plain", Created: at.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
		require.NoError(t, fx.svc.SetData(ctx, f, []byte("x")))
		ids = append(ids, f.ID)
	}
	_, err := fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u2", Type: "text/plain", Data: []byte("y")})
	require.NoError(t, err)

	list, err := fx.svc.ByUser(ctx, "u1", false)
	require.NoError(t, err)
	assert.False(t, list.Expanded)
	assert.Equal(t, ids, list.IDs)

	list, err = fx.svc.ByUser(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, list.Fragments, 3)
	assert.Equal(t, ids[0], list.Fragments[0].ID)
	assert.Equal(t, int64(1), list.Fragments[0].Size)

	list, err = fx.svc.ByUser(ctx, "nobody", false)
	require.NoError(t, err)
	assert.Equal(t, 0, list.Len())
}

func TestDelete(t *testing.T) {
	sink := &recordingSink{}
	fx := setupTestService(t, fragments.WithEventSink(sink))
	ctx := context.Background()

	f, err := fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u1", Type: "text/plain", Data: []byte("bye")})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Delete(ctx, "u1", f.ID))
	assert.Equal(t, []string{f.ID}, sink.deleted)

	_, err = fx.svc.ByID(ctx, "u1", f.ID)
	assert.ErrorIs(t, err, fragments.ErrNotFound)
	_, err = fx.svc.GetData(ctx, f)
	assert.ErrorIs(t, err, fragments.ErrObjectNotFound)

	assert.ErrorIs(t, fx.svc.Delete(ctx, "u1", f.ID), fragments.ErrNotFound)
}

func TestDelete_ByteFailureKeepsMetadata(t *testing.T) {
	fx := setupTestService(t)
	ctx := context.Background()

	f, err := fx.svc.Create(ctx, fragments.CreateFragmentRequest{OwnerID: "u1", Type: "text/plain", Data: []byte("keep")})
	require.NoError(t, err)

	fx.store.failDelete = errors.New("permission denied")
	err = fx.svc.Delete(ctx, "u1", f.ID)
	assert.ErrorIs(t, err, fragments.ErrStorage)

	_, err = fx.svc.ByID(ctx, "u1", f.ID)
	require.NoError(t, err)

	fx.store.failDelete = nil
	require.NoError(t, fx.svc.Delete(ctx, "u1", f.ID))
}

func TestDelete_MissingBytes(t *testing.T) {
	fx := setupTestService(t)
	ctx := context.Background()

	fx.store.failUpload = errors.New("boom")
	f, err := fragments.NewFragment(fragments.FragmentParams{OwnerID: "u1", Type: "text/plain"})
	require.NoError(t, err)
	require.Error(t, fx.svc.SetData(ctx, f, []byte("x")))

	// Metadata without bytes can still be cleaned up.
	require.NoError(t, fx.svc.Delete(ctx, "u1", f.ID))
}
