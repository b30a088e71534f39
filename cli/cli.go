// Package cli implements the command-line interface for retail-metrics.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/shelfsight/retail-metrics/config"
	"github.com/shelfsight/retail-metrics/logging"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

var (
	// Global flags
	cfgFile  string
	dbPath   string
	logLevel string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "retail-metrics",
		Short: "Retail metrics computation engine",
		Long: `retail-metrics turns raw sales, catalog and competitor price facts
into derived metric tables: data-quality health scores, promotion
performance, promotion trends and a competitor price index.

Every compute command is a deterministic read-compute-write cycle
against an embedded SQLite store; the serve command exposes the same
engines over HTTP for dashboards and integrations.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./retail-metrics.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "",
		"SQLite database path (use \":memory:\" for in-memory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(seedCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	return cfg.Validate()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("retail-metrics " + Version)
	},
}
