package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fastygo/questlog/internal/config"
	pgInfra "github.com/fastygo/questlog/internal/infrastructure/postgres"
	sqliteInfra "github.com/fastygo/questlog/internal/infrastructure/sqlite"
)

func newMigrateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *rt.cfg
			switch cfg.Store.Driver {
			case config.DriverPostgres:
				cfg.Migrations.Enabled = true
				if err := pgInfra.RunMigrations(&cfg, rt.logger); err != nil {
					return err
				}
			case config.DriverSQLite:
				db, err := sqliteInfra.Open(cmd.Context(), cfg.SQLite.Path, rt.logger)
				if err != nil {
					return err
				}
				if err := db.Close(); err != nil {
					return err
				}
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "store %q has no schema\n", cfg.Store.Driver)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Store.Driver)
			return nil
		},
	}
}
