package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	IngestInterval time.Duration
	BatchSize      int
	IngestToken    string

	FetchTimeout     time.Duration
	FetchMaxAttempts int

	PGHost     string
	PGPort     int
	PGUser     string
	PGPassword string
	PGDatabase string

	ControlAddr string
}

func Load() Config {
	return Config{
		IngestInterval:   parseDurationEnv("INGEST_INTERVAL", 30*time.Minute),
		BatchSize:        parseIntEnv("INGEST_BATCH_SIZE", 0),
		IngestToken:      os.Getenv("INGEST_TOKEN"),
		FetchTimeout:     parseDurationEnv("FETCH_TIMEOUT", 45*time.Second),
		FetchMaxAttempts: parseIntEnv("FETCH_MAX_ATTEMPTS", 3),
		PGHost:           getenv("POSTGRES_HOST", "localhost"),
		PGPort:           parseIntEnv("POSTGRES_PORT", 5432),
		PGUser:           getenv("POSTGRES_USER", "postgres"),
		PGPassword:       getenv("POSTGRES_PASSWORD", "changeme"),
		PGDatabase:       getenv("POSTGRES_DBNAME", "newswire"),
		ControlAddr:      getenv("CONTROL_ADDR", "127.0.0.1:8090"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
