package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/tendant/simple-fragments/pkg/fragments"
)

const (
	dataDir = "data"
	metaDir = "meta"
)

// Backend is a filesystem implementation of the fragments.BlobStore interface.
//
// Bytes live under {BaseDir}/data/{key} and a JSON sidecar with the MIME
// type and original size under {BaseDir}/meta/{key}.json. Writes go to a
// temp file first and are renamed into place.
type Backend struct {
	mu       sync.RWMutex
	baseDir  string
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// Config options for the filesystem backend
type Config struct {
	BaseDir  string // Base directory for storing files
	Compress bool   // Store bytes zstd-compressed
}

type sidecar struct {
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Compressed  bool      `json:"compressed"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	for _, dir := range []string{dataDir, metaDir} {
		if err := os.MkdirAll(filepath.Join(config.BaseDir, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	b := &Backend{
		baseDir:  filepath.Clean(config.BaseDir),
		compress: config.Compress,
	}

	var err error
	b.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	// Objects written with compression enabled stay readable after it is
	// turned off, so the decoder is always available.
	b.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return b, nil
}

func (b *Backend) paths(objectKey string) (data, meta string, err error) {
	clean := filepath.Clean("/" + filepath.FromSlash(objectKey))
	if clean == string(filepath.Separator) {
		return "", "", fmt.Errorf("invalid object key %q", objectKey)
	}
	data = filepath.Join(b.baseDir, dataDir, clean)
	meta = filepath.Join(b.baseDir, metaDir, clean) + ".json"
	return data, meta, nil
}

// GetObjectMeta retrieves metadata for an object in the filesystem
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*fragments.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dataPath, metaPath, err := b.paths(objectKey)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dataPath)
	if os.IsNotExist(err) {
		return nil, fragments.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	sc, err := readSidecar(metaPath)
	if err != nil {
		// Files placed without a sidecar fall back to sniffing.
		sc = &sidecar{Size: info.Size(), ModifiedAt: info.ModTime()}
		sc.ContentType = b.sniff(dataPath)
	}

	return &fragments.ObjectMeta{
		Key:         objectKey,
		Size:        sc.Size,
		ContentType: sc.ContentType,
		UpdatedAt:   sc.ModifiedAt,
		Metadata: map[string]string{
			"content_type": sc.ContentType,
			"compressed":   fmt.Sprint(sc.Compressed),
		},
	}, nil
}

// Upload uploads content directly to the filesystem
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	return b.UploadWithParams(ctx, reader, fragments.UploadParams{ObjectKey: objectKey})
}

// UploadWithParams uploads content and records its MIME type in the sidecar
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params fragments.UploadParams) error {
	dataPath, metaPath, err := b.paths(params.ObjectKey)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	sc := sidecar{
		ContentType: params.MimeType,
		Size:        int64(len(data)),
		Compressed:  b.compress,
		ModifiedAt:  time.Now().UTC(),
	}
	if sc.ContentType == "" {
		sc.ContentType = http.DetectContentType(data)
	}
	payload := data
	if b.compress {
		payload = b.encoder.EncodeAll(data, nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := writeAtomic(dataPath, payload); err != nil {
		return err
	}
	encoded, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return writeAtomic(metaPath, encoded)
}

// Download downloads content directly from the filesystem
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dataPath, metaPath, err := b.paths(objectKey)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(dataPath)
	if os.IsNotExist(err) {
		return nil, fragments.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	sc, err := readSidecar(metaPath)
	if err != nil || !sc.Compressed {
		return file, nil
	}

	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	data, err := b.decoder.DecodeAll(raw, make([]byte, 0, sc.Size))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", objectKey, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete deletes content from the filesystem
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dataPath, metaPath, err := b.paths(objectKey)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		return fragments.ErrObjectNotFound
	}

	if err := os.Remove(dataPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Join(b.baseDir, dataDir), filepath.Dir(dataPath))
	b.cleanupEmptyDirectories(filepath.Join(b.baseDir, metaDir), filepath.Dir(metaPath))
	return nil
}

// cleanupEmptyDirectories recursively removes empty directories up to root
func (b *Backend) cleanupEmptyDirectories(root, dir string) {
	if dir == root || !strings.HasPrefix(dir, root) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(root, filepath.Dir(dir))
		}
	}
}

func (b *Backend) sniff(dataPath string) string {
	file, err := os.Open(dataPath)
	if err != nil {
		return "application/octet-stream"
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, _ := io.ReadFull(file, buffer)
	return http.DetectContentType(buffer[:n])
}

func readSidecar(path string) (*sidecar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// into place so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit file: %w", err)
	}
	return nil
}
