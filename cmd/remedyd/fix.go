package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// fixCmd runs the full detect, delegate, reverify loop.
var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Detect issues and fix them automatically",
	Long: `Run the configured checks, delegate each failure to a fixer agent, and
rerun the checks until the tree is clean or the iteration budget runs out.

The loop stops early when failures point at a broken environment, for
example unresolvable modules, since rerunning fixers cannot help there.

Examples:
  # Fix the current project
  remedyd fix

  # Fix with a custom iteration budget from a config file
  remedyd fix --config ci/.remedyd.yaml`,
	Args: cobra.NoArgs,
	RunE: runFix,
}

func runFix(cmd *cobra.Command, args []string) error {
	orch, logger, err := newPipeline()
	if err != nil {
		return err
	}
	defer orch.Close()
	defer logger.Sync() //nolint:errcheck

	report, err := orch.Remediate(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
	} else {
		renderFixReport(cmd, report)
	}

	switch {
	case report.EnvironmentFault:
		return fmt.Errorf("environment fault: %s", report.Fault)
	case !report.Clean:
		return fmt.Errorf("%d issue(s) remain after %d iteration(s)", len(report.Remaining), report.Iterations)
	}
	return nil
}
