package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Creates the vendors, categories, user_roles and revoked_tokens tables
and (re)creates the salesperson_earnings view.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer syncLogger(logger)

	repo, err := connect(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	logger.Info("migrations applied", zap.String("database", cfg.DBName))
	return nil
}
