package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// checkCmd runs all configured checks once without fixing anything.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run all configured checks without fixing",
	Long: `Run every enabled check against the project and report the results.
No fixer agents are invoked; the exit code is nonzero when any check fails.

Examples:
  # Run checks with the default config
  remedyd check

  # Run checks against another tree
  remedyd check --root ../service`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	orch, logger, err := newPipeline()
	if err != nil {
		return err
	}
	defer orch.Close()
	defer logger.Sync() //nolint:errcheck

	report, err := orch.RunChecks(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
	} else {
		renderRunReport(cmd, report)
	}

	if !report.Success() {
		return fmt.Errorf("%d check(s) failed", report.Summary.Failed+report.Summary.Errored)
	}
	return nil
}
