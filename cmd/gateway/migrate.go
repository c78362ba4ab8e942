package main

import (
	"fmt"

	"github.com/DanielPopoola/chargecore/internal/infrastructure/persistence/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOrBackground(cmd.Context())

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := postgres.Migrate(ctx, a.db); err != nil {
				return err
			}
			version, err := postgres.MigrationVersion(ctx, a.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}
