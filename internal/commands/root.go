// Package commands implements cardsctl, the admin CLI.
package commands

import (
	"fmt"

	"github.com/Skarath13/cards/internal/config"
	"github.com/Skarath13/cards/internal/infra"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "cardsctl",
	Short: "Admin tool for the cards turn ledger",
	Long: `cardsctl manages the cards ledger database: schema migrations,
user seeding and manual runs of the nightly archive.
Configuration comes from the same environment variables as the server.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("cardsctl %s (%s)\n", version, commit)
	},
}

// env is what a command gets once config and database are up.
type env struct {
	cfg *config.Config
	db  *gorm.DB
}

// withDB wraps a command function to load config and open the database first.
func withDB(fn func(*cobra.Command, []string, *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		return fn(cmd, args, &env{cfg: cfg, db: db})
	}
}

// SetVersion sets the version information
func SetVersion(v, c string) {
	version = v
	commit = c
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedUserCmd)
	rootCmd.AddCommand(listUsersCmd)
	rootCmd.AddCommand(resetDailyCmd)
	rootCmd.AddCommand(versionCmd)
}
