package fs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-fragments/pkg/fragments"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)

	ctx := context.Background()
	key := "owner/parent/child"
	data := []byte("hello fs")

	require.NoError(t, backend.UploadWithParams(ctx, bytes.NewReader(data), fragments.UploadParams{
		ObjectKey: key,
		MimeType:  "text/markdown",
	}))

	meta, err := backend.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), meta.Size)
	assert.Equal(t, "text/markdown", meta.ContentType)

	rc, err := backend.Download(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	require.NoError(t, backend.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(tmp, dataDir, key))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(tmp, dataDir, "owner"))
	assert.True(t, os.IsNotExist(err), "empty directories are removed")

	_, err = backend.Download(ctx, key)
	assert.ErrorIs(t, err, fragments.ErrObjectNotFound)
	assert.ErrorIs(t, backend.Delete(ctx, key), fragments.ErrObjectNotFound)
}

func TestFSBackend_Compressed(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp, Compress: true})
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte(strings.Repeat("compressible text ", 500))
	require.NoError(t, backend.UploadWithParams(ctx, bytes.NewReader(data), fragments.UploadParams{
		ObjectKey: "owner/doc",
		MimeType:  "text/plain",
	}))

	info, err := os.Stat(filepath.Join(tmp, dataDir, "owner", "doc"))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(data)))

	meta, err := backend.GetObjectMeta(ctx, "owner/doc")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), meta.Size)
	assert.Equal(t, "true", meta.Metadata["compressed"])

	rc, err := backend.Download(ctx, "owner/doc")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// A backend opened without compression still reads compressed objects.
	plain, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)
	rc2, err := plain.Download(ctx, "owner/doc")
	require.NoError(t, err)
	defer rc2.Close()
	got, err = io.ReadAll(rc2)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFSBackend_EmptyContent(t *testing.T) {
	for _, compress := range []bool{false, true} {
		backend, err := New(Config{BaseDir: t.TempDir(), Compress: compress})
		require.NoError(t, err)
		ctx := context.Background()

		require.NoError(t, backend.Upload(ctx, "o/empty", bytes.NewReader(nil)))
		rc, err := backend.Download(ctx, "o/empty")
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		assert.Empty(t, got)
	}
}

func TestFSBackend_KeyStaysInsideBaseDir(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)

	require.NoError(t, backend.Upload(context.Background(), "../../escape", strings.NewReader("x")))
	_, err = os.Stat(filepath.Join(tmp, dataDir, "escape"))
	assert.NoError(t, err)

	assert.Error(t, backend.Upload(context.Background(), "", strings.NewReader("x")))
}

func TestFSBackend_SniffsWithoutSidecar(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(tmp, dataDir, "o"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, dataDir, "o", "raw"), []byte("<html><body>hi</body></html>"), 0644))

	meta, err := backend.GetObjectMeta(context.Background(), "o/raw")
	require.NoError(t, err)
	assert.Contains(t, meta.ContentType, "text/html")
}

func TestNew_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
