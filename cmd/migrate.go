package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-skip/internal/config"
	"github.com/Taichi-iskw/yt-skip/internal/repository"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
	Long:  `Apply or roll back the kv_store schema used by the postgres storage driver.`,
}

func runMigrations(cmd *cobra.Command, direction repository.MigrateDirection) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := cfg.ParseDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to parse database config: %w", err)
	}

	dir, _ := cmd.Flags().GetString("dir")
	if err := repository.RunMigrations(dir, dbConfig.URL(), direction); err != nil {
		return err
	}

	fmt.Println("Migrations applied successfully.")
	return nil
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(cmd, repository.MigrateUp)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(cmd, repository.MigrateDown)
	},
}

func init() {
	migrateCmd.PersistentFlags().String("dir", "migrations", "Directory containing the SQL migrations")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
