package tools

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/remedyd/internal/agent"
	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

// FormatterFixer is the one fully mechanical fixer agent: it resolves
// formatting issues by running gofmt in rewrite mode on the offending file.
type FormatterFixer struct {
	dir string
	run CommandRunner
}

// NewFormatterFixer creates the formatter agent rooted at dir.
func NewFormatterFixer(dir string, run CommandRunner) *FormatterFixer {
	if run == nil {
		run = ExecRunner
	}
	return &FormatterFixer{dir: dir, run: run}
}

// Name identifies the agent.
func (f *FormatterFixer) Name() string { return agent.AgentFormatter }

// CanHandle accepts formatting issues with a named Go file and nothing else.
func (f *FormatterFixer) CanHandle(iss issue.Issue) float64 {
	if iss.Kind != issue.KindFormatting {
		return 0
	}
	if iss.FilePath == "" {
		return 0.4
	}
	return 0.95
}

// SupportedKinds lists the issue kinds the agent knows how to fix.
func (f *FormatterFixer) SupportedKinds() []issue.Kind {
	return []issue.Kind{issue.KindFormatting}
}

// Fix rewrites the file with gofmt.
func (f *FormatterFixer) Fix(ctx context.Context, iss issue.Issue) (issue.FixResult, error) {
	argv := []string{"gofmt", "-l", "-w"}
	if iss.FilePath != "" {
		argv = append(argv, iss.FilePath)
	} else {
		argv = append(argv, ".")
	}

	stdout, stderr, exitCode, err := f.run(ctx, f.dir, argv)
	if err != nil {
		return issue.FixResult{}, fmt.Errorf("running gofmt: %w", err)
	}
	if exitCode != 0 {
		return issue.FixResult{
			Success:         false,
			RemainingIssues: []string{fmt.Sprintf("gofmt failed: %s", stderr)},
		}, nil
	}

	var modified []string
	for _, finding := range (&GofmtAdapter{}).ParseOutput(stdout) {
		modified = append(modified, finding.FilePath)
	}

	return issue.FixResult{
		Success:       true,
		Confidence:    0.95,
		FixesApplied:  []string{"reformatted " + iss.FilePath},
		FilesModified: modified,
	}, nil
}
