package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds server configuration loaded from the environment.
type Config struct {
	Port           string
	LogLevel       string
	AllowedOrigins string
	DatabaseURL    string
	IdentitySecret string

	BlobBackend   string
	UploadDir     string
	PublicBaseURL string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string
	S3UseSSL      bool

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
	OTLPEndpoint string
	ServiceName  string

	ChatPageSize     int
	TypingDebounce   time.Duration
	TypingTTL        time.Duration
	ReadReceiptDelay time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		IdentitySecret: getEnv("IDENTITY_SECRET", "tripmate-dev-secret"),

		BlobBackend:   strings.ToLower(getEnv("BLOB_BACKEND", "local")),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		S3Endpoint:    getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:   getEnv("S3_ACCESS_KEY", "minio"),
		S3SecretKey:   getEnv("S3_SECRET_KEY", "minio123"),
		S3Bucket:      getEnv("S3_BUCKET", "tripmate-chat"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaTopic:   getEnv("KAFKA_PUSH_TOPIC", "trip.push"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "tripmate"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "tripmate"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.S3UseSSL, err = getBool("S3_USE_SSL", false); err != nil {
		return nil, err
	}
	if cfg.ChatPageSize, err = getInt("CHAT_PAGE_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.TypingDebounce, err = getDuration("TYPING_DEBOUNCE", 300*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.TypingTTL, err = getDuration("TYPING_TTL", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReadReceiptDelay, err = getDuration("READ_RECEIPT_DELAY", time.Second); err != nil {
		return nil, err
	}

	if cfg.BlobBackend != "local" && cfg.BlobBackend != "minio" {
		return nil, fmt.Errorf("BLOB_BACKEND must be local or minio, got %q", cfg.BlobBackend)
	}
	if cfg.ChatPageSize < 1 {
		return nil, fmt.Errorf("CHAT_PAGE_SIZE must be positive, got %d", cfg.ChatPageSize)
	}

	return cfg, nil
}

// PushEnabled reports whether a push transport is configured.
func (c *Config) PushEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) String() string {
	return fmt.Sprintf("Port=%s, Database=%t, BlobBackend=%s, Redis=%t, Push=%t, Tracing=%t",
		c.Port, c.DatabaseURL != "", c.BlobBackend, c.RedisAddr != "", c.PushEnabled(), c.OTLPEndpoint != "")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
