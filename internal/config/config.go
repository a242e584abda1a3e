// Package config provides configuration management for the calendar chat
// assistant. Values are loaded from environment variables with sensible
// defaults and validated before the application starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./calendar_chat.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE: PostgreSQL connection settings
//
// Redis (optional, enables single-flight token refresh):
//   - REDIS_ADDRESS: Redis server address (empty disables Redis)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number (default: 0)
//
// Security:
//   - JWT_SECRET: Session JWT signing secret (required, min 32 chars)
//   - TOKEN_ENCRYPTION_KEY: Key for encrypting stored OAuth tokens (required)
//
// Google OAuth:
//   - GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET: OAuth client credentials (required)
//   - GOOGLE_REDIRECT_URL: OAuth callback URL
//   - GOOGLE_TOKEN_URL: Token endpoint override (default: Google's endpoint)
//   - GOOGLE_CALENDAR_BASE_URL: Calendar API base override (default: Google's)
//
// LLM Backend:
//   - LLM_BASE_URL: Chat-completions endpoint base URL
//   - LLM_API_KEY: API key for the LLM backend
//   - LLM_MODEL: Model identifier (default: gpt-4o-mini)
package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	// DefaultGoogleTokenURL is Google's OAuth2 token endpoint
	DefaultGoogleTokenURL = "https://oauth2.googleapis.com/token"
	// DefaultCalendarBaseURL is the Google Calendar v3 REST base
	DefaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"
)

// Config holds all configuration values for the application
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration (optional)
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Security
	JWTSecret          string
	TokenEncryptionKey string

	// Google OAuth client credentials (process-wide, never user input)
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleTokenURL     string
	CalendarBaseURL    string

	// LLM backend
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
}

// Load creates a Config with values from environment variables. Call
// Validate() on the result before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./calendar_chat.db"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenEncryptionKey: os.Getenv("TOKEN_ENCRYPTION_KEY"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		GoogleTokenURL:     getEnv("GOOGLE_TOKEN_URL", DefaultGoogleTokenURL),
		CalendarBaseURL:    getEnv("GOOGLE_CALENDAR_BASE_URL", DefaultCalendarBaseURL),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4o-mini"),
	}
}

// Validate ensures required values are present and consistent
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.JWTSecret))
	}
	if c.TokenEncryptionKey == "" {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY is required")
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	switch c.DatabaseType {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for sqlite")
		}
	case "postgres":
		if c.PostgresHost == "" || c.PostgresDB == "" || c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_TYPE %q (want sqlite or postgres)", c.DatabaseType)
	}

	return nil
}

// PostgresDSN builds the connection string for the postgres backend
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser, c.PostgresPassword, c.PostgresSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
