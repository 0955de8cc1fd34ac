package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.Storage != config.StorageMySQL {
				return fmt.Errorf("migrate needs STORAGE_DRIVER=%s", config.StorageMySQL)
			}

			ctx := context.Background()
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.Migrate(ctx, db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(os.Stdout, "schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(os.Stdout, "applied %s\n", name)
			}
			return nil
		},
	}
}
