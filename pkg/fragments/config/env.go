package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Database kinds
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
)

// Storage kinds
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// DatabaseSpec is a parsed DATABASE_URL
type DatabaseSpec struct {
	Kind string
	URL  string
}

// StorageSpec is a parsed STORAGE_URL
type StorageSpec struct {
	Kind         string
	BaseDir      string // fs
	Bucket       string // s3
	Region       string // s3
	Endpoint     string // s3
	PathStyle    bool   // s3
	CreateBucket bool   // s3
}

// ParseDatabaseURL accepts "", "memory", "postgres://..." and "postgresql://...".
func ParseDatabaseURL(raw string) (DatabaseSpec, error) {
	switch {
	case raw == "" || raw == "memory":
		return DatabaseSpec{Kind: DatabaseMemory}, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DatabaseSpec{Kind: DatabasePostgres, URL: raw}, nil
	default:
		return DatabaseSpec{}, fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", raw)
	}
}

// ParseStorageURL accepts:
//
//	memory://
//	file:///path/to/data
//	s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true&create_bucket=true
func ParseStorageURL(raw string) (StorageSpec, error) {
	if raw == "" || raw == "memory" || raw == "memory://" {
		return StorageSpec{Kind: StorageMemory}, nil
	}

	switch {
	case strings.HasPrefix(raw, "file://"):
		path := strings.TrimPrefix(raw, "file://")
		if path == "" {
			return StorageSpec{}, fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		return StorageSpec{Kind: StorageFS, BaseDir: path}, nil

	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return StorageSpec{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
		if u.Host == "" {
			return StorageSpec{}, fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
		}
		q := u.Query()
		spec := StorageSpec{
			Kind:     StorageS3,
			Bucket:   u.Host,
			Region:   q.Get("region"),
			Endpoint: q.Get("endpoint"),
		}
		if spec.PathStyle, err = queryBool(q, "path_style", spec.Endpoint != ""); err != nil {
			return StorageSpec{}, err
		}
		if spec.CreateBucket, err = queryBool(q, "create_bucket", false); err != nil {
			return StorageSpec{}, err
		}
		return spec, nil
	}

	return StorageSpec{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
}

func queryBool(q url.Values, key string, def bool) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s in STORAGE_URL: %w", key, err)
	}
	return v, nil
}
