package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/medtrack/backend/internal/config"
	"github.com/medtrack/backend/internal/objectstore"
	"github.com/medtrack/backend/internal/snapshot"
)

// OpenObjectStore builds the snapshot store selected by cfg.SnapshotBackend.
// The returned close func releases its connections and is never nil.
func OpenObjectStore(ctx context.Context, cfg config.Config, log *slog.Logger) (objectstore.Store, func(), error) {
	noop := func() {}
	switch cfg.SnapshotBackend {
	case config.BackendS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("app.OpenObjectStore: aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
				o.UsePathStyle = true
			}
		})
		log.Info("snapshot store", "backend", "s3", "bucket", cfg.BucketName)
		return objectstore.NewS3Store(client, cfg.BucketName), noop, nil

	case config.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("app.OpenObjectStore: redis ping: %w", err)
		}
		log.Info("snapshot store", "backend", "redis", "addr", cfg.RedisAddr)
		return objectstore.NewRedisStore(client, "medtrack"), func() { client.Close() }, nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.SnapshotDatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("app.OpenObjectStore: postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("app.OpenObjectStore: postgres ping: %w", err)
		}
		if err := objectstore.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("app.OpenObjectStore: %w", err)
		}
		log.Info("snapshot store", "backend", "postgres")
		return objectstore.NewPostgresStore(pool), pool.Close, nil

	case config.BackendMemory:
		log.Warn("snapshot store is in memory; data is lost on exit")
		return objectstore.NewMemoryStore(), noop, nil

	default:
		return nil, noop, fmt.Errorf("app.OpenObjectStore: unknown backend %q", cfg.SnapshotBackend)
	}
}

// NewFromConfig wires the snapshot store, runner and App described by cfg.
func NewFromConfig(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, func(), error) {
	store, closeStore, err := OpenObjectStore(ctx, cfg, log)
	if err != nil {
		return nil, closeStore, err
	}
	runner := snapshot.NewRunner(store, snapshot.Options{
		Path:                   cfg.DatabasePath,
		Key:                    cfg.SnapshotKey,
		AllowEmptyOnFetchError: cfg.AllowEmptyOnFetchError,
		Seed:                   Seeder(cfg.SeedRecipientName, cfg.DefaultTimezone),
		Logger:                 log,
	}, cfg.ConflictRetries)
	a := New(runner, Options{
		DefaultTimezone: cfg.DefaultTimezone,
		LookaheadDays:   cfg.LookaheadDays,
		Logger:          log,
	})
	return a, closeStore, nil
}
