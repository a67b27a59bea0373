package main

import (
	"errors"

	"github.com/phrazzld/slidegen/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|reset|status|version",
		Short:     "Run database migrations against database.url",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "reset", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.cfg.Database.URL == "" {
				return errors.New("database.url is not set")
			}
			db, err := postgres.Open(cmd.Context(), g.cfg.Database.URL, g.logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return postgres.Migrate(cmd.Context(), db, args[0], g.cfg.Database.MigrationsTable, g.logger)
		},
	}
}
