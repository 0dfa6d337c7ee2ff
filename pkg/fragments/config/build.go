package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-fragments/pkg/fragments"
	rediscache "github.com/tendant/simple-fragments/pkg/fragments/cache/redis"
	"github.com/tendant/simple-fragments/pkg/fragments/objectkey"
	memoryrepo "github.com/tendant/simple-fragments/pkg/fragments/repo/memory"
	"github.com/tendant/simple-fragments/pkg/fragments/repo/postgres"
	fsstorage "github.com/tendant/simple-fragments/pkg/fragments/storage/fs"
	memorystorage "github.com/tendant/simple-fragments/pkg/fragments/storage/memory"
	s3storage "github.com/tendant/simple-fragments/pkg/fragments/storage/s3"
)

// Cleanup releases resources opened by BuildService.
type Cleanup func()

// BuildService assembles the service described by the configuration. The
// returned Cleanup closes database and cache connections.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (fragments.Service, Cleanup, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (fragments.Service, Cleanup, error) {
		cleanup()
		return nil, nil, err
	}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return fail(err)
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	backendName, store, err := c.buildBlobStore()
	if err != nil {
		return fail(err)
	}

	keys, err := objectkey.New(c.ObjectKeyLayout)
	if err != nil {
		return fail(err)
	}

	opts := []fragments.Option{
		fragments.WithRepository(repo),
		fragments.WithBlobStore(backendName, store),
		fragments.WithKeyGenerator(keys),
		fragments.WithEventSink(fragments.NewLoggingEventSink(logger)),
		fragments.WithLogger(logger),
	}

	if c.RedisURL != "" {
		cache, err := rediscache.Open(ctx, rediscache.Config{URL: c.RedisURL, TTL: c.CacheTTL})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { cache.Close() })
		opts = append(opts, fragments.WithConversionCache(cache))
	}

	svc, err := fragments.New(opts...)
	if err != nil {
		return fail(err)
	}

	logger.Info("fragment service configured",
		"database", c.databaseKind(),
		"storage", backendName,
		"object_key_layout", c.ObjectKeyLayout,
		"cache", c.RedisURL != "")
	return svc, cleanup, nil
}

func (c *ServerConfig) databaseKind() string {
	spec, _ := ParseDatabaseURL(c.DatabaseURL)
	return spec.Kind
}

func (c *ServerConfig) buildRepository(ctx context.Context) (fragments.Repository, func(), error) {
	spec, err := ParseDatabaseURL(c.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	switch spec.Kind {
	case DatabaseMemory:
		return memoryrepo.New(), nil, nil
	case DatabasePostgres:
		pool, err := pgxpool.New(ctx, spec.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		repo := postgres.NewWithPool(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database kind: %s", spec.Kind)
	}
}

func (c *ServerConfig) buildBlobStore() (string, fragments.BlobStore, error) {
	spec, err := ParseStorageURL(c.StorageURL)
	if err != nil {
		return "", nil, err
	}

	switch spec.Kind {
	case StorageMemory:
		return StorageMemory, memorystorage.New(), nil
	case StorageFS:
		store, err := fsstorage.New(fsstorage.Config{BaseDir: spec.BaseDir, Compress: c.FSCompress})
		if err != nil {
			return "", nil, err
		}
		return StorageFS, store, nil
	case StorageS3:
		region := spec.Region
		if region == "" {
			region = c.S3.Region
		}
		store, err := s3storage.New(s3storage.Config{
			Region:                 region,
			Bucket:                 spec.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               spec.Endpoint,
			UsePathStyle:           spec.PathStyle,
			EnableSSE:              c.S3.SSEAlgorithm != "",
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: spec.CreateBucket,
		})
		if err != nil {
			return "", nil, err
		}
		return StorageS3, store, nil
	default:
		return "", nil, fmt.Errorf("unsupported storage kind: %s", spec.Kind)
	}
}
