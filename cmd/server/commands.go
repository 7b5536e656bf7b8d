package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/chapterq/internal/config"
	"github.com/phrazzld/chapterq/internal/platform/migrations"
	"github.com/phrazzld/chapterq/internal/service/auth"
	"github.com/spf13/cobra"
)

// Version is set via ldflags during build.
var Version = "dev"

// errAuthDisabled is returned by the token command without a signing secret.
var errAuthDisabled = errors.New("auth.jwt_secret is not set; tokens cannot be issued")

// newRootCommand builds the chapterq command tree.
func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "chapterq",
		Short:         "A single-flight chapter download queue",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (default: ./chapterq.yaml)")

	root.AddCommand(
		newServeCommand(&configPath),
		newMigrateCommand(&configPath),
		newTokenCommand(&configPath),
	)
	return root
}

// bootstrap loads configuration and sets up the logger for a command.
func bootstrap(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := loadAppConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := setupAppLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newServeCommand(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the download queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
			if err != nil {
				return fmt.Errorf("failed to listen on port %d: %w", cfg.Server.Port, err)
			}

			return runServer(ctx, cfg, logger, listener)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override server.port")
	return cmd
}

// runServer opens and migrates the database, then serves on listener until
// ctx is done.
func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, listener net.Listener) error {
	db, err := setupAppDatabase(ctx, cfg.Database, logger)
	if err != nil {
		_ = listener.Close()
		return err
	}

	if err := migrations.Run(ctx, db, cfg.Database.Driver, migrations.CommandUp, logger); err != nil {
		_ = db.Close()
		_ = listener.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app, err := newApplication(cfg, logger, db, nil)
	if err != nil {
		_ = db.Close()
		_ = listener.Close()
		return err
	}

	return app.serve(ctx, listener)
}

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <command>",
		Short:     "Run database migrations (up, down, reset, status, version)",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrations.Commands(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}

			db, err := setupAppDatabase(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := db.Close(); cerr != nil {
					logger.Error("Error closing database connection", "error", cerr)
				}
			}()

			return migrations.Run(cmd.Context(), db, cfg.Database.Driver, args[0], logger)
		},
	}
}

func newTokenCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "token <operator>",
		Short: "Issue an API access token for an operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errAuthDisabled
			}

			svc, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
}
