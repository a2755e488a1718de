// Package cmd implements the onboard command line: serving the API, running
// migrations and managing user roles.
package cmd

import (
	"fmt"
	"os"

	"github.com/gartstein/onboard/internal/onboarding/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Vendor onboarding service",
	Long: `onboard runs the vendor onboarding API: salespeople submit vendors,
administrators approve or reject them and earnings are tracked per salesperson.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (default $ONBOARD_CONFIG or internal/onboarding/config/config.yaml)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// initLogger initializes a Zap production logger at the configured level.
func initLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// bootstrap loads the config and builds the logger every command starts with.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func syncLogger(logger *zap.Logger) {
	// Syncing stderr fails on some platforms; nothing useful can be done.
	_ = logger.Sync()
}
