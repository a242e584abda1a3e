package config

import (
	"testing"
)

func validConfig() *Config {
	return &Config{
		Port:               "8080",
		DatabaseType:       "sqlite",
		DatabasePath:       "./test.db",
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		TokenEncryptionKey: "token-key",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid sqlite", func(c *Config) {}, false},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"missing encryption key", func(c *Config) { c.TokenEncryptionKey = "" }, true},
		{"missing google client", func(c *Config) { c.GoogleClientID = "" }, true},
		{"missing sqlite path", func(c *Config) { c.DatabasePath = "" }, true},
		{"unknown database type", func(c *Config) { c.DatabaseType = "oracle" }, true},
		{"postgres missing host", func(c *Config) {
			c.DatabaseType = "postgres"
			c.PostgresDB = "app"
			c.PostgresUser = "app"
		}, true},
		{"valid postgres", func(c *Config) {
			c.DatabaseType = "postgres"
			c.PostgresHost = "localhost"
			c.PostgresDB = "app"
			c.PostgresUser = "app"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("default port = %s, want 8080", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("default database type = %s, want sqlite", cfg.DatabaseType)
	}
	if cfg.GoogleTokenURL != DefaultGoogleTokenURL {
		t.Errorf("default token URL = %s", cfg.GoogleTokenURL)
	}
	if cfg.CalendarBaseURL != DefaultCalendarBaseURL {
		t.Errorf("default calendar base = %s", cfg.CalendarBaseURL)
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresHost = "db.internal"
	cfg.PostgresPort = "5433"
	cfg.PostgresDB = "chat"
	cfg.PostgresUser = "svc"
	cfg.PostgresPassword = "pw"
	cfg.PostgresSSLMode = "require"

	want := "host=db.internal port=5433 dbname=chat user=svc password=pw sslmode=require"
	if got := cfg.PostgresDSN(); got != want {
		t.Errorf("PostgresDSN() = %q, want %q", got, want)
	}
}
