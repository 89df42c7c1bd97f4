package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/checks"
	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

// vetLinePattern matches "file.go:12:3: message" diagnostics.
var vetLinePattern = regexp.MustCompile(`^(.+\.go):(\d+)(?::\d+)?:\s*(.+)$`)

// GoVetAdapter wraps go vet over the whole module.
type GoVetAdapter struct {
	dir string
	run CommandRunner
}

// NewGoVetAdapter creates a go vet adapter rooted at dir.
func NewGoVetAdapter(dir string, run CommandRunner) *GoVetAdapter {
	if run == nil {
		run = ExecRunner
	}
	return &GoVetAdapter{dir: dir, run: run}
}

// Name identifies the adapter.
func (a *GoVetAdapter) Name() string { return "govet" }

// BuildCommand returns the go vet invocation. Vet works on packages, not
// files, so the file list only gates whether there is Go code to check.
func (a *GoVetAdapter) BuildCommand(files []string, _ checks.CheckConfig) []string {
	if len(files) > 0 && len(filterGoFiles(files)) == 0 {
		return nil
	}
	return []string{"go", "vet", "./..."}
}

// ParseOutput converts vet diagnostics into findings. Lines that are not
// diagnostics (package headers, notes) are folded into the preceding
// finding's details.
func (a *GoVetAdapter) ParseOutput(raw string) []checks.Finding {
	var findings []checks.Finding
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		m := vetLinePattern.FindStringSubmatch(line)
		if m == nil {
			if n := len(findings); n > 0 {
				findings[n-1].Details = append(findings[n-1].Details, strings.TrimSpace(line))
			}
			continue
		}

		lineNo, _ := strconv.Atoi(m[2])
		findings = append(findings, checks.Finding{
			Message:  m[3],
			FilePath: m[1],
			Line:     lineNo,
			Kind:     issue.KindTypeError,
			Severity: issue.SeverityHigh,
		})
	}
	return findings
}

// Check runs go vet and classifies the outcome by exit code.
func (a *GoVetAdapter) Check(ctx context.Context, files []string, cfg checks.CheckConfig) (checks.CheckResult, error) {
	start := time.Now()

	argv := a.BuildCommand(files, cfg)
	if argv == nil {
		return checks.CheckResult{CheckID: cfg.ID, Status: checks.StatusSkipped, Message: "no Go files to vet"}, nil
	}

	_, stderr, exitCode, err := a.run(ctx, a.dir, argv)
	if err != nil {
		return checks.CheckResult{}, fmt.Errorf("running go vet: %w", err)
	}

	elapsed := time.Since(start).Milliseconds()
	if exitCode == 0 {
		return checks.CheckResult{
			CheckID:         cfg.ID,
			Status:          checks.StatusSuccess,
			FilesChecked:    files,
			ExecutionTimeMs: elapsed,
		}, nil
	}

	findings := a.ParseOutput(stderr)
	return checks.CheckResult{
		CheckID:         cfg.ID,
		Status:          checks.StatusFailure,
		Message:         fmt.Sprintf("go vet reported %d diagnostics", len(findings)),
		FilesChecked:    files,
		IssuesFound:     len(findings),
		ExecutionTimeMs: elapsed,
		Findings:        findings,
	}, nil
}
