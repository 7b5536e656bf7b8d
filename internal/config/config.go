package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Download DownloadConfig `mapstructure:"download" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig selects and locates the chapter-state store.
type DatabaseConfig struct {
	// Driver is either "sqlite" (URL is a file path) or "postgres" (URL is a DSN)
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	URL    string `mapstructure:"url" validate:"required"`
}

// DownloadConfig controls the HTTP chapter downloader.
type DownloadConfig struct {
	OutputDir    string        `mapstructure:"output_dir" validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent    string        `mapstructure:"user_agent" validate:"required"`
	MaxPageBytes int64         `mapstructure:"max_page_bytes" validate:"gt=0"`
}

// AuthConfig contains operator authentication settings. An empty JWTSecret
// disables authentication on the API.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}
