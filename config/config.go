package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type AppConfig struct {
	SeedPath      string
	Iterations    int
	SevenZipPath  string // empty means auto-discover from the oracle profile
	OutputDir     string
	CrashDir      string
	OracleProfile string // optional path to a YAML oracle profile
	OracleTimeout time.Duration

	DatabaseURL string // optional, enables crash record persistence
	RedisURL    string // optional, enables the stats mirror
	RabbitMQURL string // optional, enables crash notifications

	LogLevel    string
	Debug       bool
	OtelEnabled bool
	ServiceName string
}

func LoadConfig() *AppConfig {
	// use a temporary logger for now
	logger := zap.NewExample().Named("config")

	godotenv.Load()

	config := &AppConfig{
		SeedPath:      getEnv("SEED_PATH", "base.zip"),
		Iterations:    parseInt(os.Getenv("ITERATIONS"), 10000),
		SevenZipPath:  os.Getenv("SEVENZIP_PATH"),
		OutputDir:     getEnv("OUTPUT_DIR", "fuzzed_files"),
		CrashDir:      getEnv("CRASH_DIR", "crashes"),
		OracleProfile: os.Getenv("ORACLE_PROFILE"),
		OracleTimeout: parseDuration(os.Getenv("ORACLE_TIMEOUT"), 15*time.Second),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Debug:         parseBool(os.Getenv("DEBUG"), false),
		OtelEnabled:   parseBool(os.Getenv("OTEL_ENABLED"), false),
		ServiceName:   getEnv("SERVICE_NAME", "zipfuzz"),
	}

	if config.Debug {
		config.LogLevel = "debug"
	}

	if config.Iterations < 0 {
		logger.Fatal("ITERATIONS must not be negative")
	}

	return config
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func parseBool(val string, defaultVal bool) bool {
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
