package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/chapterq/internal/config"
	"github.com/phrazzld/chapterq/internal/platform/logger"
)

// loadAppConfig loads configuration from path, or from the default search
// locations and the environment when path is empty.
func loadAppConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setupAppLogger configures the process-wide logger from cfg and logs the
// shape of the loaded configuration without secrets.
func setupAppLogger(cfg *config.Config) (*slog.Logger, error) {
	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver,
		"output_dir", cfg.Download.OutputDir)
	l.Debug("Auth configuration", "jwt_secret_present", cfg.Auth.JWTSecret != "")

	return l, nil
}
