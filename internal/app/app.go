// Package app assembles the services shared by the API server and filesctl.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobboard/internal/config"
	"jobboard/internal/database"
	"jobboard/internal/domain/account"
	"jobboard/internal/domain/upload"
	"jobboard/internal/pkg/logger"
	"jobboard/internal/storage"
)

type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Blobs    storage.BlobStore
	Redis    *redis.Client
	Uploads  *upload.Service
	Accounts *account.Service
}

// New connects to the database, blob store and (optionally) Redis and
// migrates the schema.
func New(cfg *config.Config) (*App, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db, &account.User{}, &upload.File{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	blobs, err := NewBlobStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: db, Blobs: blobs}

	locker, err := a.newLocker()
	if err != nil {
		return nil, err
	}

	a.Uploads = upload.NewService(
		upload.NewRepository(db),
		upload.NewBlobSink(blobs),
		blobs,
		locker,
		upload.Options{
			Rules:        RulesFromConfig(cfg.Upload),
			PublicPrefix: cfg.Storage.PublicPrefix,
			BatchLimit:   cfg.Upload.BatchLimit,
		},
	)
	a.Accounts = account.NewService(account.NewRepository(db), a.Uploads)
	return a, nil
}

func NewBlobStore(cfg config.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Type {
	case "s3":
		return storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		})
	default:
		logger.Info("using local blob storage", "base_path", cfg.BasePath)
		return storage.NewLocalStore(cfg.BasePath)
	}
}

func RulesFromConfig(cfg config.UploadConfig) upload.Rules {
	rules := upload.DefaultRules()
	rules.MaxImageSize = cfg.MaxImageSize
	rules.MaxDocumentSize = cfg.MaxDocumentSize
	rules.QuotaBytes = cfg.QuotaBytes
	return rules
}

func (a *App) newLocker() (upload.Locker, error) {
	if !a.Config.Upload.StrictQuota {
		logger.Warn("strict quota disabled, concurrent uploads may exceed the quota")
		return upload.NoopLocker{}, nil
	}
	if a.Config.Redis.URL == "" {
		return upload.NewLocalLocker(), nil
	}

	opts, err := redis.ParseURL(a.Config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	a.Redis = client
	logger.Info("using redis owner locks", "addr", opts.Addr)
	return upload.NewRedisLocker(client, a.Config.Upload.LockTTL), nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
