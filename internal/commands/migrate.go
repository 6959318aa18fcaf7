package commands

import (
	"github.com/Skarath13/cards/internal/infra"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: withDB(func(cmd *cobra.Command, _ []string, e *env) error {
		if err := infra.RunMigrations(e.db); err != nil {
			return err
		}
		cmd.Printf("Schema up to date (%s)\n", e.cfg.DatabaseDriver)
		return nil
	}),
}
