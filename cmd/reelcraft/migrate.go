package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/reelcraft/api/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.URL == "" {
			return errors.New("DATABASE_URL is required")
		}

		ctx := cmd.Context()
		db, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := postgres.Migrate(ctx, db, log)
		if err != nil {
			return err
		}
		log.Info().Strs("applied", applied).Msg("migrations done")
		return nil
	},
}
