package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/checks"
	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

var (
	// failedTestPattern matches "--- FAIL: TestName (0.00s)" lines.
	failedTestPattern = regexp.MustCompile(`^\s*--- FAIL: (\S+)`)

	// failedPackagePattern matches "FAIL\tpkg/path\t0.01s" summary lines.
	failedPackagePattern = regexp.MustCompile(`^FAIL\s+(\S+)`)
)

// GoTestAdapter wraps go test over the whole module.
type GoTestAdapter struct {
	dir string
	run CommandRunner
}

// NewGoTestAdapter creates a go test adapter rooted at dir.
func NewGoTestAdapter(dir string, run CommandRunner) *GoTestAdapter {
	if run == nil {
		run = ExecRunner
	}
	return &GoTestAdapter{dir: dir, run: run}
}

// Name identifies the adapter.
func (a *GoTestAdapter) Name() string { return "gotest" }

// BuildCommand returns the go test invocation.
func (a *GoTestAdapter) BuildCommand(_ []string, _ checks.CheckConfig) []string {
	return []string{"go", "test", "./..."}
}

// ParseOutput extracts one finding per failed test, annotated with the
// failing package from the trailing summary lines.
func (a *GoTestAdapter) ParseOutput(raw string) []checks.Finding {
	var findings []checks.Finding
	var failedPackages []string

	for _, line := range strings.Split(raw, "\n") {
		if m := failedTestPattern.FindStringSubmatch(line); m != nil {
			findings = append(findings, checks.Finding{
				Message:  "test failed: " + m[1],
				Kind:     issue.KindTestFailure,
				Severity: issue.SeverityHigh,
			})
			continue
		}
		if m := failedPackagePattern.FindStringSubmatch(line); m != nil {
			failedPackages = append(failedPackages, m[1])
		}
	}

	// A package that failed to build produces no per-test lines.
	if len(findings) == 0 {
		for _, pkg := range failedPackages {
			findings = append(findings, checks.Finding{
				Message:  "package failed: " + pkg,
				Kind:     issue.KindTestFailure,
				Severity: issue.SeverityHigh,
			})
		}
	}
	return findings
}

// Check runs the test suite and classifies the outcome by exit code.
func (a *GoTestAdapter) Check(ctx context.Context, files []string, cfg checks.CheckConfig) (checks.CheckResult, error) {
	start := time.Now()

	stdout, stderr, exitCode, err := a.run(ctx, a.dir, a.BuildCommand(files, cfg))
	if err != nil {
		return checks.CheckResult{}, fmt.Errorf("running go test: %w", err)
	}

	elapsed := time.Since(start).Milliseconds()
	if exitCode == 0 {
		return checks.CheckResult{
			CheckID:         cfg.ID,
			Status:          checks.StatusSuccess,
			ExecutionTimeMs: elapsed,
		}, nil
	}

	findings := a.ParseOutput(stdout + "\n" + stderr)
	return checks.CheckResult{
		CheckID:         cfg.ID,
		Status:          checks.StatusFailure,
		Message:         fmt.Sprintf("%d test failures", len(findings)),
		IssuesFound:     len(findings),
		ExecutionTimeMs: elapsed,
		Findings:        findings,
	}, nil
}
