package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort            = "8080"
	defaultDatabaseURL     = "jobboard.db"
	defaultJWTSecret       = "change-me-jwt-secret"
	defaultJWTTTL          = "24h"
	defaultStorageType     = "local"
	defaultStorageBasePath = "public/uploads"
	defaultPublicPrefix    = "/uploads"
	defaultMaxImageSize    = 500000
	defaultMaxDocumentSize = 2005000
	defaultQuotaBytes      = 50000000
	defaultBatchLimit      = 4
	defaultLockTTL         = "2m"
	defaultMultipartMemory = 8 << 20
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	JWTTTL      time.Duration
	Storage     StorageConfig
	Upload      UploadConfig
	Redis       RedisConfig
	Log         LogConfig
}

type StorageConfig struct {
	Type         string // local, s3
	BasePath     string
	PublicPrefix string
	S3           S3Config
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type UploadConfig struct {
	MaxImageSize    int64
	MaxDocumentSize int64
	QuotaBytes      int64
	BatchLimit      int
	StrictQuota     bool
	LockTTL         time.Duration
	MultipartMemory int64
}

type RedisConfig struct {
	URL string
}

type LogConfig struct {
	Level      string
	Format     string
	Output     string
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)
	cfg.Port = strings.TrimSpace(getEnv("PORT", defaultPort))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))

	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}

	cfg.Storage = StorageConfig{
		Type:         strings.ToLower(strings.TrimSpace(getEnv("STORAGE_TYPE", defaultStorageType))),
		BasePath:     strings.TrimSpace(getEnv("STORAGE_BASE_PATH", defaultStorageBasePath)),
		PublicPrefix: strings.TrimRight(strings.TrimSpace(getEnv("STORAGE_PUBLIC_PREFIX", defaultPublicPrefix)), "/"),
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    getEnv("S3_BUCKET", "user-uploads"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			UseSSL:    parseBoolEnv("S3_USE_SSL", "false"),
		},
	}

	up := UploadConfig{StrictQuota: parseBoolEnv("UPLOAD_STRICT_QUOTA", "true")}
	if up.MaxImageSize, err = parseInt64Env("UPLOAD_MAX_IMAGE_SIZE", defaultMaxImageSize); err != nil {
		return nil, err
	}
	if up.MaxDocumentSize, err = parseInt64Env("UPLOAD_MAX_DOCUMENT_SIZE", defaultMaxDocumentSize); err != nil {
		return nil, err
	}
	if up.QuotaBytes, err = parseInt64Env("UPLOAD_QUOTA_BYTES", defaultQuotaBytes); err != nil {
		return nil, err
	}
	batch, err := parseInt64Env("UPLOAD_BATCH_LIMIT", defaultBatchLimit)
	if err != nil {
		return nil, err
	}
	up.BatchLimit = int(batch)
	if up.LockTTL, err = parseDurationEnv("UPLOAD_LOCK_TTL", defaultLockTTL); err != nil {
		return nil, err
	}
	if up.MultipartMemory, err = parseInt64Env("UPLOAD_MULTIPART_MEMORY", defaultMultipartMemory); err != nil {
		return nil, err
	}
	cfg.Upload = up

	cfg.Redis = RedisConfig{URL: strings.TrimSpace(os.Getenv("REDIS_URL"))}

	cfg.Log = LogConfig{
		Level:    getEnv("LOG_LEVEL", "info"),
		Format:   getEnv("LOG_FORMAT", "json"),
		Output:   getEnv("LOG_OUTPUT", "stdout"),
		FilePath: getEnv("LOG_FILE_PATH", "logs/app.log"),
		Compress: parseBoolEnv("LOG_COMPRESS", "true"),
	}
	cfg.Log.MaxSize, _ = strconv.Atoi(getEnv("LOG_MAX_SIZE", "100"))
	cfg.Log.MaxBackups, _ = strconv.Atoi(getEnv("LOG_MAX_BACKUPS", "5"))
	cfg.Log.MaxAge, _ = strconv.Atoi(getEnv("LOG_MAX_AGE", "30"))

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.Storage.Type != "local" && cfg.Storage.Type != "s3" {
		return fmt.Errorf("STORAGE_TYPE must be one of: local, s3")
	}
	if cfg.Storage.Type == "s3" && (cfg.Storage.S3.Endpoint == "" || cfg.Storage.S3.Bucket == "") {
		return fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required when STORAGE_TYPE=s3")
	}
	if cfg.Upload.MaxImageSize <= 0 || cfg.Upload.MaxDocumentSize <= 0 {
		return fmt.Errorf("upload size limits must be > 0")
	}
	if cfg.Upload.QuotaBytes <= 0 {
		return fmt.Errorf("UPLOAD_QUOTA_BYTES must be > 0")
	}
	if cfg.Upload.BatchLimit <= 0 {
		return fmt.Errorf("UPLOAD_BATCH_LIMIT must be > 0")
	}
	if cfg.Upload.LockTTL <= 0 {
		return fmt.Errorf("UPLOAD_LOCK_TTL must be > 0")
	}
	if isProdLike(cfg.AppEnv) && isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
		return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseInt64Env(name string, fallback int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
