package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	PublicBaseURL   string
	SigningSecret   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MinIO           MinIOConfig

	RedisURL       string
	RateLimitRPS   float64
	RateLimitBurst int

	OCRLanguage    string
	MaxUploadBytes int64
	SearchMinChars int
	ViewURLTTL     time.Duration
	DownloadURLTTL time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string

	LogLevel    string
	SweepEvery  time.Duration
	SweepGrace  time.Duration
	SweepPrefix string
}

// MinIOConfig holds MinIO connection settings.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

const (
	DefaultBucket         = "processo-documentos"
	DefaultMaxUploadBytes = 50 << 20
	DefaultSearchMinChars = 3
)

// Load reads configuration from .env files (best effort) and the environment.
func Load() Config {
	// Missing files are fine; real deployments set the environment directly.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	env := normalizeEnv(v.GetString("ENV"))
	dbURL := strings.TrimSpace(v.GetString("DATABASE_URL"))
	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            v.GetString("PORT"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(v.GetString("OBJECT_STORE")),
		LocalStoreDir:   v.GetString("LOCAL_STORE_DIR"),
		PublicBaseURL:   strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		SigningSecret:   v.GetString("STORAGE_SIGNING_SECRET"),
		AWSRegion:       v.GetString("AWS_REGION"),
		S3Bucket:        v.GetString("S3_BUCKET"),
		S3Prefix:        v.GetString("S3_PREFIX"),
		SSEKMSKeyID:     v.GetString("SSE_KMS_KEY_ID"),
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},

		RedisURL:       v.GetString("REDIS_URL"),
		RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),

		OCRLanguage:    v.GetString("OCR_LANGUAGE"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		SearchMinChars: v.GetInt("SEARCH_MIN_CHARS"),
		ViewURLTTL:     v.GetDuration("VIEW_URL_TTL"),
		DownloadURLTTL: v.GetDuration("DOWNLOAD_URL_TTL"),

		GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
		UIRedirectURL:      v.GetString("UI_REDIRECT_URL"),

		LogLevel:    v.GetString("LOG_LEVEL"),
		SweepEvery:  v.GetDuration("SWEEP_INTERVAL"),
		SweepGrace:  v.GetDuration("SWEEP_GRACE"),
		SweepPrefix: v.GetString("SWEEP_PREFIX"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "dev")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173")
	v.SetDefault("OBJECT_STORE", "local")
	v.SetDefault("LOCAL_STORE_DIR", "./data")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("S3_BUCKET", DefaultBucket)
	v.SetDefault("MINIO_BUCKET", DefaultBucket)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("OCR_LANGUAGE", "por")
	v.SetDefault("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)
	v.SetDefault("SEARCH_MIN_CHARS", DefaultSearchMinChars)
	v.SetDefault("VIEW_URL_TTL", "3600s")
	v.SetDefault("DOWNLOAD_URL_TTL", "60s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("SWEEP_GRACE", "15m")
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}
