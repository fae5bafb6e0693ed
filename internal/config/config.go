package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Storage drivers
const (
	StorageLocal = "local"
	StorageR2    = "r2"
)

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DBHost         string `envconfig:"DB_HOST" default:"localhost"`
	DBPort         int    `envconfig:"DB_PORT" default:"5432"`
	DBUser         string `envconfig:"DB_USER" default:"geojungle"`
	DBPassword     string `envconfig:"DB_PASSWORD"`
	DBName         string `envconfig:"DB_NAME" default:"geojungle"`
	DBSSLMode      string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`

	ServerPort  string   `envconfig:"SERVER_PORT" default:"5000"`
	AdminPort   string   `envconfig:"ADMIN_PORT" default:"5001"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Seconds. Access tokens default to 24h.
	AccessTokenMaxAge  int `envconfig:"ACCESS_TOKEN_MAX_AGE" default:"86400"`
	RefreshTokenMaxAge int `envconfig:"REFRESH_TOKEN_MAX_AGE" default:"2592000"`

	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379"`

	StorageDriver     string `envconfig:"STORAGE_DRIVER" default:"local"`
	UploadDir         string `envconfig:"UPLOAD_DIR" default:"uploads"`
	PublicBaseURL     string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:5000"`
	MaxImageSizeBytes int64  `envconfig:"MAX_IMAGE_SIZE_BYTES" default:"5242880"`

	R2AccountID       string `envconfig:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `envconfig:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `envconfig:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `envconfig:"R2_BUCKET_NAME"`
	R2PublicURL       string `envconfig:"R2_PUBLIC_URL"`

	WorkerEnabled      bool          `envconfig:"WORKER_ENABLED" default:"true"`
	WorkerCount        int           `envconfig:"WORKER_COUNT" default:"2"`
	WorkerBatchSize    int64         `envconfig:"WORKER_BATCH_SIZE" default:"10"`
	WorkerBlockTimeout time.Duration `envconfig:"WORKER_BLOCK_TIMEOUT" default:"5s"`

	CronEnabled      bool   `envconfig:"CRON_ENABLED" default:"true"`
	CronReconcile    string `envconfig:"CRON_RECONCILE" default:"0 3 * * *"`
	CronLeaderboard  string `envconfig:"CRON_LEADERBOARD" default:"0 * * * *"`
	CronTokenCleanup string `envconfig:"CRON_TOKEN_CLEANUP" default:"30 4 * * *"`

	CascadeBatchSize   int `envconfig:"CASCADE_BATCH_SIZE" default:"500"`
	CascadeMaxAttempts int `envconfig:"CASCADE_MAX_ATTEMPTS" default:"5"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseDSN returns the lib/pq connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AccessTokenMaxAge <= 0 || c.RefreshTokenMaxAge <= 0 {
		return fmt.Errorf("token max ages must be > 0")
	}
	switch c.StorageDriver {
	case StorageLocal:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required for the local storage driver")
		}
	case StorageR2:
		if c.R2AccountID == "" || c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "" || c.R2PublicURL == "" {
			return fmt.Errorf("missing Cloudflare R2 configuration")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.MaxImageSizeBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE_BYTES must be > 0")
	}
	if c.WorkerCount <= 0 || c.WorkerBatchSize <= 0 {
		return fmt.Errorf("WORKER_COUNT and WORKER_BATCH_SIZE must be > 0")
	}
	if c.CascadeBatchSize <= 0 || c.CascadeMaxAttempts <= 0 {
		return fmt.Errorf("CASCADE_BATCH_SIZE and CASCADE_MAX_ATTEMPTS must be > 0")
	}
	for name, spec := range map[string]string{
		"CRON_RECONCILE":     c.CronReconcile,
		"CRON_LEADERBOARD":   c.CronLeaderboard,
		"CRON_TOKEN_CLEANUP": c.CronTokenCleanup,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found or error loading it, relying on environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
