package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string `validate:"required"`
	LogLevel string `validate:"oneof=debug info warn warning error"`

	HTTPPort        string        `validate:"required,numeric"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	RedisAddr     string `validate:"required,hostname_port"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	CatalogueURL     string        `validate:"required,url"`
	CatalogueTimeout time.Duration `validate:"gt=0"`

	CartTTL time.Duration `validate:"gt=0"`

	KafkaBrokers []string `validate:"dive,hostname_port"`
	KafkaTopic   string   `validate:"required"`
	KafkaGroupID string   `validate:"required"`
}

// Load reads configuration from the environment. Values from an optional
// .env file in the working directory fill in unset variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CatalogueURL:     getEnv("CATALOGUE_URL", "http://localhost:8080"),
		CatalogueTimeout: getEnvDuration("CATALOGUE_TIMEOUT", 5*time.Second),

		CartTTL: getEnvDuration("CART_TTL", time.Hour),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "checkout-outbox"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "cart-service-consumer"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
