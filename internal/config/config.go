package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	Port     string
	DBPath   string
	DataDir  string
	BaseURL  string
	DevMode  bool

	// Storage backend: "local" or "s3"
	StorageBackend string
	S3Endpoint     string
	S3Bucket       string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3PathStyle    bool

	// NSFW classifier
	ClassifierURL     string
	ClassifierAPIKey  string
	ClassifierTimeout time.Duration

	// OTP challenge store: "memory" or "redis"
	OTPBackend string
	RedisAddr  string

	// Session cookie signing
	SessionSecret string
}

// Load reads configuration from environment variables with sane defaults.
// godotenv is expected to have been loaded by the caller.
func Load() *Config {
	return &Config{
		Port:    getEnv("PORT", "8080"),
		DBPath:  getEnv("DB_PATH", "./data/kachra.db"),
		DataDir: getEnv("DATA_DIR", "./data/uploads"),
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),
		DevMode: getEnvBool("DEV_MODE", true),

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3AccessKey:    getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:    getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),

		ClassifierURL:     getEnv("CLASSIFIER_URL", ""),
		ClassifierAPIKey:  getEnv("CLASSIFIER_API_KEY", ""),
		ClassifierTimeout: getEnvDuration("CLASSIFIER_TIMEOUT_SECONDS", 15*time.Second),

		OTPBackend: getEnv("OTP_BACKEND", "memory"),
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),

		SessionSecret: getEnv("SESSION_SECRET", "dev-only-session-secret"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
