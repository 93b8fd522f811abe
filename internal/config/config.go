package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Storage accounting
	DefaultQuotaBytes int64
	MaxUploadBytes    int64

	// Lifecycle sweeps (cron expressions, UTC)
	ProjectExpirySchedule     string
	FileSelfDestructSchedule  string
	AccountInactivitySchedule string

	// Security heuristic (rolling 24h delete counts)
	ThreatDeleteHigh   int
	ThreatDeleteMedium int

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Observability (optional)
	SentryDSN string

	// Activity fan-out (optional)
	NATSURL     string
	NATSSubject string

	// Storage backend: "s3", "minio" or "memory"
	StorageBackend string

	// Storage (S3-compatible: AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for S3-compatible services

	// Storage (MinIO native client)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Vaultgate"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envString("APP_URL", "http://localhost:8090"),
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/vaultgate.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Security
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		// Storage accounting
		DefaultQuotaBytes: envInt64("DEFAULT_QUOTA_BYTES", 5<<30),  // 5GB
		MaxUploadBytes:    envInt64("MAX_UPLOAD_BYTES", 100<<20), // 100MB per file

		// Lifecycle sweeps
		ProjectExpirySchedule:     envString("PROJECT_EXPIRY_SCHEDULE", "0 * * * *"),
		FileSelfDestructSchedule:  envString("FILE_SELF_DESTRUCT_SCHEDULE", "15 * * * *"),
		AccountInactivitySchedule: envString("ACCOUNT_INACTIVITY_SCHEDULE", "0 0 * * *"),

		// Security heuristic
		ThreatDeleteHigh:   int(envInt64("THREAT_DELETE_HIGH", 20)),
		ThreatDeleteMedium: int(envInt64("THREAT_DELETE_MEDIUM", 10)),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Activity fan-out
		NATSURL:     envString("NATS_URL", ""),
		NATSSubject: envString("NATS_SUBJECT", "vaultgate.activity"),

		StorageBackend: envString("STORAGE_BACKEND", "s3"),

		S3Region:    envString("S3_REGION", "us-east-1"),
		S3Bucket:    envString("S3_BUCKET", "vaultgate"),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""), // Optional: for non-AWS providers

		MinioEndpoint:  envString("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: envString("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: envString("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    envString("MINIO_BUCKET", "vaultgate"),
		MinioUseSSL:    envBool("MINIO_USE_SSL", false),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows the memory blob store and email log mode for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if cfg.StorageBackend == "memory" {
		slog.Error("production deployment cannot use the memory storage backend",
			"hint", "set STORAGE_BACKEND=s3 or STORAGE_BACKEND=minio")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		slog.Warn("config invalid integer, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
