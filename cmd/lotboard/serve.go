package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/lotboard/config"
	"github.com/jpalmerr/lotboard/dashboard"
	"github.com/jpalmerr/lotboard/internal/server"
	"github.com/jpalmerr/lotboard/internal/store"
)

// serveCmd starts the tracker server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tracker server",
	Long: `Start the LotBoard tracker server.

The server will:
  - Open (and if needed initialise) the sensors record store
  - Accept sensor readings on POST /api/sensors
  - Serve the full snapshot on GET /api/sensors
  - Serve the dashboard UI at the root path

The listening port comes from the config file; the PORT environment
variable, when set, takes precedence. The server runs until interrupted
(Ctrl+C) or receives SIGTERM.

Example:
  lotboard serve
  lotboard serve -c config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (optional)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"port", cfg.Port,
		"driver", cfg.Database.Driver,
	)

	// storage init failure is fatal: serving with broken storage is worse
	// than not serving at all
	st, err := store.Open(store.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close record store", "error", err)
		}
	}()

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(st, cfg.Port, dashboard.Assets, logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))

	<-ctx.Done()
	logger.Info("shutdown complete")
	return nil
}
