package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/remedyd/internal/checks"
	"github.com/fyrsmithlabs/remedyd/internal/fixloop"
)

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func statusGlyph(status checks.Status) string {
	switch status {
	case checks.StatusSuccess:
		return "ok"
	case checks.StatusSkipped:
		return "skip"
	case checks.StatusWarning:
		return "warn"
	default:
		return "FAIL"
	}
}

func renderRunReport(cmd *cobra.Command, report *checks.RunReport) {
	for _, stage := range report.Stages {
		if len(stage.Results) == 0 {
			continue
		}
		cmd.Printf("%s stage:\n", stage.Stage)
		for _, result := range stage.Results {
			cmd.Printf("  [%-4s] %-12s %dms", statusGlyph(result.Status), result.CheckID, result.ExecutionTimeMs)
			if result.IssuesFound > 0 {
				cmd.Printf("  %d issue(s), %d fixed", result.IssuesFound, result.IssuesFixed)
			}
			cmd.Println()
			for _, finding := range result.Findings {
				if finding.FilePath != "" {
					cmd.Printf("         %s:%d: %s\n", finding.FilePath, finding.Line, finding.Message)
				} else {
					cmd.Printf("         %s\n", finding.Message)
				}
			}
		}
	}

	s := report.Summary
	cmd.Printf("\n%d checks: %d passed, %d failed, %d errored, %d skipped\n",
		s.Total, s.Passed, s.Failed, s.Errored, s.Skipped)
}

func renderFixReport(cmd *cobra.Command, report *fixloop.Report) {
	switch {
	case report.EnvironmentFault:
		cmd.Printf("Stopped: environment fault, fixers cannot help.\n  %s\n", report.Fault)
	case report.Clean && report.Iterations == 0:
		cmd.Println("Already clean, nothing to fix.")
	case report.Clean:
		cmd.Printf("Clean after %d iteration(s).\n", report.Iterations)
	default:
		cmd.Printf("Gave up after %d iteration(s), %d issue(s) remain:\n",
			report.Iterations, len(report.Remaining))
		for _, iss := range report.Remaining {
			if iss.FilePath != "" {
				cmd.Printf("  [%s] %s:%d: %s\n", iss.Kind, iss.FilePath, iss.LineNumber, iss.Message)
			} else {
				cmd.Printf("  [%s] %s\n", iss.Kind, iss.Message)
			}
		}
	}

	for _, applied := range report.Fixed.FixesApplied {
		cmd.Printf("  fixed: %s\n", applied)
	}
	for _, rec := range report.Fixed.Recommendations {
		cmd.Printf("  recommend: %s\n", rec)
	}

	if report.Final != nil {
		cmd.Println()
		renderRunReport(cmd, report.Final)
	}
}
