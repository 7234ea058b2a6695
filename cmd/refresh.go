package cmd

import (
	"fmt"

	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/engine"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh all favorited shows in production once",
	Long:  `Fetch new seasons and episodes of every favorited show that is still in production and recompute the affected seasons, without starting the server.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint: errcheck

		e, err := engine.New(cfg, db)
		if err != nil {
			return fmt.Errorf("failed to create engine: %w", err)
		}
		defer e.Close() //nolint: errcheck

		return e.RefreshShows(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
