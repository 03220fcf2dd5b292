// Package config loads and validates application configuration from
// environment variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Snapshot backends.
const (
	BackendS3       = "s3"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration values for the API server and the
// refresh job. Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	CORSOrigins []string

	// MaxBodyBytes limits request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// DatabasePath is the local cache file of the embedded database.
	DatabasePath string

	// SnapshotBackend selects where the database snapshot lives:
	// s3 (default), redis, postgres or memory.
	SnapshotBackend string
	SnapshotKey     string

	BucketName string
	// S3Endpoint overrides the S3 endpoint (MinIO, LocalStack). Optional.
	S3Endpoint string

	RedisAddr     string
	RedisPassword string

	SnapshotDatabaseURL string

	// AllowEmptyOnFetchError starts from an empty database instead of
	// failing when the snapshot cannot be fetched.
	AllowEmptyOnFetchError bool
	ConflictRetries        int

	DefaultTimezone   string
	LookaheadDays     int
	SeedRecipientName string

	// RefreshTimeout bounds one run of the refresh job. Defaults to 2m.
	RefreshTimeout time.Duration
}

// Load reads .env from the working directory if present, then the
// environment. Variables already set in the environment win over .env.
func Load() (Config, error) {
	return LoadWithEnvFile(".env")
}

// LoadWithEnvFile is Load with an explicit .env path. A missing file is not
// an error; an empty path skips the file.
func LoadWithEnvFile(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CORSOrigins:         splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		DatabasePath:        getEnv("DATABASE_PATH", filepath.Join(os.TempDir(), "medtrack.sqlite")),
		SnapshotBackend:     strings.ToLower(getEnv("SNAPSHOT_BACKEND", BackendS3)),
		SnapshotKey:         getEnv("SNAPSHOT_KEY", "database.sqlite"),
		BucketName:          os.Getenv("DATABASE_BUCKET_NAME"),
		S3Endpoint:          os.Getenv("S3_ENDPOINT"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		SnapshotDatabaseURL: os.Getenv("SNAPSHOT_DATABASE_URL"),
		DefaultTimezone:     getEnv("DEFAULT_TIMEZONE", "America/Denver"),
		SeedRecipientName:   getEnv("SEED_RECIPIENT_NAME", "Jane Doe"),
	}

	var problems []string
	var err error
	if cfg.MaxBodyBytes, err = getInt64("MAX_BODY_BYTES", 1<<20); err != nil {
		problems = append(problems, err.Error())
	}
	if cfg.ConflictRetries, err = getInt("SNAPSHOT_CONFLICT_RETRIES", 3); err != nil {
		problems = append(problems, err.Error())
	}
	if cfg.LookaheadDays, err = getInt("DOSE_LOOKAHEAD_DAYS", 7); err != nil {
		problems = append(problems, err.Error())
	}
	if cfg.RefreshTimeout, err = getDuration("REFRESH_TIMEOUT", 2*time.Minute); err != nil {
		problems = append(problems, err.Error())
	}
	if cfg.AllowEmptyOnFetchError, err = getBool("SNAPSHOT_ALLOW_EMPTY_ON_FETCH_ERROR", false); err != nil {
		problems = append(problems, err.Error())
	}

	var missing []string
	switch cfg.SnapshotBackend {
	case BackendS3:
		if cfg.BucketName == "" {
			missing = append(missing, "DATABASE_BUCKET_NAME")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	case BackendPostgres:
		if cfg.SnapshotDatabaseURL == "" {
			missing = append(missing, "SNAPSHOT_DATABASE_URL")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("SNAPSHOT_BACKEND %q is not one of s3, redis, postgres, memory", cfg.SnapshotBackend))
	}
	if len(missing) > 0 {
		problems = append(problems, "required environment variables not set: "+strings.Join(missing, ", "))
	}

	if len(problems) > 0 {
		return Config{}, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration such as 90s or 5m, got %q", key, v)
	}
	return d, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
