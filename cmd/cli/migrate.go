package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/301redirect/redirector/cmd"
	"github.com/301redirect/redirector/internal/repository"
)

// MigrateCmd creates or updates the redirects table.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Executes database migrations to create or update the redirects table.",
	Long: `This command connects to the configured store (a SQLite file, or Postgres when
database.dsn is a postgres:// URL) and runs GORM automatic migrations for the
redirects table.`,
	RunE: func(c *cobra.Command, args []string) error {
		db, err := repository.OpenDatabase(cmd.Cfg.Database.DSN, cmd.Log)
		if err != nil {
			return err
		}
		defer repository.Close(db)

		if err := repository.Migrate(db); err != nil {
			return err
		}

		fmt.Fprintln(c.OutOrStdout(), "Database migrations executed successfully.")
		return nil
	},
}

func init() {
	cmd.RootCmd.AddCommand(MigrateCmd)
}
