package admin

import (
	"github.com/cloo-solutions/ragdocs/internal/database"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(migrateDirectionCmd(database.Up, "Apply all pending migrations"))
	cmd.AddCommand(migrateDirectionCmd(database.Down, "Roll back all migrations"))

	return cmd
}

func migrateDirectionCmd(direction database.Direction, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(direction),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrateDir
			}
			return database.Migrate(cfg.DatabaseURL, dir, direction, log)
		},
	}

	cmd.Flags().String("dir", "", "Migrations directory (overrides RAGDOCS_MIGRATE_DIR)")

	return cmd
}
