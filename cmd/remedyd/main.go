// Package main implements the remedyd CLI for running checks and automated
// remediation against a project tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/config"
	"github.com/fyrsmithlabs/remedyd/internal/logging"
	"github.com/fyrsmithlabs/remedyd/internal/orchestrator"
)

var (
	configPath  string
	projectRoot string
	verbose     bool
	jsonOutput  bool

	// version information, overridden at build time
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remedyd",
	Short: "Detect and automatically fix code issues",
	Long: `remedyd runs a project's configured checks, routes every failure to the
fixer agent best suited to it, and reverifies until the tree is clean or
the iteration budget runs out. Fix outcomes are remembered so future runs
can prefer strategies that worked before.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default .remedyd.yaml in the project root)")
	rootCmd.PersistentFlags().StringVarP(&projectRoot, "root", "r", "", "project root to operate on (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit reports as JSON")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(statsCmd)
}

// newPipeline loads configuration, builds the logger, and assembles the
// orchestrator. The caller owns Close.
func newPipeline() (*orchestrator.Orchestrator, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if projectRoot != "" {
		cfg.Project.Root = projectRoot
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	orch, err := orchestrator.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return orch, logger, nil
}
