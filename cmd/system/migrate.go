package system

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/simorq_settlement/internal/store"
	"github.com/Alijeyrad/simorq_settlement/pkg/database"
)

func NewMigrateCommand() *cobra.Command {
	var safe bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger and rate tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}

			drv, err := database.NewDriver(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer drv.Close()

			timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
			if timeout <= 0 {
				timeout = time.Minute
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			safeMode := safe || cfg.Database.Migrations.SafeMode
			fmt.Printf("Running migrations (safe mode: %v).\n", safeMode)
			if err := store.Migrate(ctx, drv, store.MigrateOptions{SafeMode: safeMode}); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			fmt.Println("Migrations executed successfully.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&safe, "safe", false, "never drop columns or indexes")

	return cmd
}
