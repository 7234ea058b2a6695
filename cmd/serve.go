package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/showtrack/internal/api"
	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/engine"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the showtrack server",
	Long:  `Start the HTTP API, the websocket endpoint and the background jobs.`,
	Example: `showtrack serve --config config.yml
showtrack serve -c /path/to/config.yml --log-level debug
`,
	Run: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	e, err := engine.New(cfg, db)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	defer e.Close() //nolint:errcheck

	server, err := api.New(cfg, e)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	log.Info("showtrack started successfully")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("showtrack stopped with error", "error", err)
		return
	}
	log.Info("shutting down gracefully...")
}
