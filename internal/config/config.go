// Package config validates and loads process-wide environment configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Config holds validated environment configuration for the party server.
type Config struct {
	// Required variables
	JWTSecret     string
	Port          string
	PublicWSURL   string
	PublicHTTPURL string
	ServerName    string

	// Optional variables with defaults
	ServerID       string
	GoEnv          string
	LogLevel       string
	AllowedOrigins string
}

// ValidateEnv validates all required environment variables and returns a
// Config. Returns an error joining every problem found, rather than
// failing on the first one, so a misconfigured deploy can be fixed in a
// single pass.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWTSecret) < 32 {
		errs = append(errs, fmt.Sprintf("JWT_SECRET must be at least 32 characters (got %d)", len(cfg.JWTSecret)))
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errs = append(errs, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.PublicWSURL = os.Getenv("PUBLIC_WS_URL")
	if cfg.PublicWSURL == "" {
		errs = append(errs, "PUBLIC_WS_URL is required")
	}

	cfg.PublicHTTPURL = os.Getenv("PUBLIC_HTTP_URL")
	if cfg.PublicHTTPURL == "" {
		errs = append(errs, "PUBLIC_HTTP_URL is required")
	} else if !strings.HasSuffix(cfg.PublicHTTPURL, "/") {
		cfg.PublicHTTPURL += "/"
	}

	cfg.ServerName = os.Getenv("SERVER_NAME")
	if cfg.ServerName == "" {
		errs = append(errs, "SERVER_NAME is required")
	}

	cfg.ServerID = os.Getenv("SERVER_ID")
	if cfg.ServerID == "" {
		cfg.ServerID = uuid.NewString()
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.AllowedOrigins = getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

// AllowedOriginsList splits AllowedOrigins on commas.
func (c *Config) AllowedOriginsList() []string {
	return strings.Split(c.AllowedOrigins, ",")
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"jwt_secret", redactSecret(cfg.JWTSecret),
		"port", cfg.Port,
		"public_ws_url", cfg.PublicWSURL,
		"public_http_url", cfg.PublicHTTPURL,
		"server_name", cfg.ServerName,
		"server_id", cfg.ServerID,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
