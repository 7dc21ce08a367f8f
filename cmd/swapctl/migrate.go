package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"vaultswap.backend/internal/infrastructure/models"
)

func newMigrateCmd(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(state.cfg.Database.URL())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			all := models.All()
			if err := db.WithContext(cmd.Context()).AutoMigrate(all...); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(all))
			return nil
		},
	}
}
