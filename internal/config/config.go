// Package config reads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Database  DatabaseConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type DatabaseConfig struct {
	Path         string
	MaxOpenConns int
	BusyTimeout  time.Duration
}

type TelemetryConfig struct {
	// OTLPEndpoint is host:port of an OTLP/HTTP collector. Empty disables
	// export.
	OTLPEndpoint string
	ServiceName  string
}

// Load reads a .env file from the working directory if one exists, then
// builds the config from the environment.
func Load() *Config {
	_ = godotenv.Load()
	return LoadEnv()
}

// LoadEnv builds the config from the environment alone.
func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        getEnv("STOCKLINE_HTTP_ADDR", ":8080"),
			ShutdownTimeout: time.Duration(getEnvInt("STOCKLINE_SHUTDOWN_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Database: DatabaseConfig{
			Path:         getEnv("STOCKLINE_DB", "stockline.db"),
			MaxOpenConns: getEnvInt("STOCKLINE_DB_MAX_OPEN_CONNS", 1),
			BusyTimeout:  time.Duration(getEnvInt("STOCKLINE_BUSY_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  getEnv("SERVICE_NAME", "stockline"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
