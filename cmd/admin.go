package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

func newCreateAdminCmd() *cobra.Command {
	var email, password string

	c := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a back-office account with the ADMIN role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.Storage != config.StorageMySQL {
				return fmt.Errorf("create-admin needs STORAGE_DRIVER=%s; use ADMIN_EMAIL/ADMIN_PASSWORD with the memory store", config.StorageMySQL)
			}
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}

			ctx := context.Background()
			st, err := openStores(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer st.Close()

			id, err := st.Users.Create(ctx, email, password, model.RoleAdmin, cfg.BcryptCost)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created admin %q (id %d)\n", email, id)
			return nil
		},
	}

	c.Flags().StringVar(&email, "email", "", "login e-mail")
	c.Flags().StringVar(&password, "password", "", "password")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}
