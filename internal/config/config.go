package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string

	CacheBackend    string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTL        time.Duration
	CacheMaxEntries int

	MaxBiometricBytes int
	MaxClockSkew      time.Duration

	RateLimitPerMinute       int
	RateLimitBurst           int
	ClientRateLimitPerMinute int
	ClientRateLimitBurst     int

	AlertPollInterval  time.Duration
	AlertBatchSize     int
	AlertMaxAttempts   int
	AlertRetryDelay    time.Duration
	AlertMaxRetryDelay time.Duration
	AlertProvider      string
	AlertRecipient     string
	AlertWebhookURL    string
	AlertWebhookToken  string

	OTLPEndpoint     string
	OTLPInsecure     bool
	TraceSampleRatio float64
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	cacheBackend := os.Getenv("CACHE_BACKEND")
	if cacheBackend == "" {
		cacheBackend = "memory"
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DB_DSN"),
		LogLevel:    logLevel,

		CacheBackend:    cacheBackend,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         readInt("REDIS_DB", 0),
		CacheTTL:        readDurationSeconds("CHECKIN_CACHE_TTL_SECONDS", 30),
		CacheMaxEntries: readInt("CACHE_MAX_ENTRIES", 10000),

		MaxBiometricBytes: readInt("MAX_BIOMETRIC_BYTES", 2<<20),
		MaxClockSkew:      readDurationSeconds("CHECKIN_MAX_CLOCK_SKEW_SECONDS", 300),

		RateLimitPerMinute:       readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:           readInt("RATE_LIMIT_BURST", 30),
		ClientRateLimitPerMinute: readInt("CLIENT_RATE_LIMIT_PER_MIN", 30),
		ClientRateLimitBurst:     readInt("CLIENT_RATE_LIMIT_BURST", 10),

		AlertPollInterval:  readDurationSeconds("ALERT_POLL_SECONDS", 5),
		AlertBatchSize:     readInt("ALERT_BATCH_SIZE", 50),
		AlertMaxAttempts:   readInt("ALERT_MAX_ATTEMPTS", 3),
		AlertRetryDelay:    readDurationSeconds("ALERT_RETRY_SECONDS", 30),
		AlertMaxRetryDelay: readDurationSeconds("ALERT_MAX_RETRY_SECONDS", 900),
		AlertProvider:      os.Getenv("ALERT_PROVIDER"),
		AlertRecipient:     os.Getenv("ALERT_RECIPIENT"),
		AlertWebhookURL:    os.Getenv("ALERT_WEBHOOK_URL"),
		AlertWebhookToken:  os.Getenv("ALERT_WEBHOOK_TOKEN"),

		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:     readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSampleRatio: readFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}
