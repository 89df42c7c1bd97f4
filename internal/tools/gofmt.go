package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/checks"
	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

// GofmtAdapter wraps gofmt in rewrite mode: files are reformatted in place
// and the ones that needed it are reported as modified.
type GofmtAdapter struct {
	dir string
	run CommandRunner
}

// NewGofmtAdapter creates a gofmt adapter rooted at dir.
func NewGofmtAdapter(dir string, run CommandRunner) *GofmtAdapter {
	if run == nil {
		run = ExecRunner
	}
	return &GofmtAdapter{dir: dir, run: run}
}

// Name identifies the adapter.
func (a *GofmtAdapter) Name() string { return "gofmt" }

// BuildCommand returns the gofmt invocation for the given files. With no
// file list it formats the whole tree.
func (a *GofmtAdapter) BuildCommand(files []string, _ checks.CheckConfig) []string {
	argv := []string{"gofmt", "-l", "-w"}
	if len(files) == 0 {
		return append(argv, ".")
	}
	goFiles := filterGoFiles(files)
	if len(goFiles) == 0 {
		return nil
	}
	return append(argv, goFiles...)
}

// ParseOutput converts gofmt -l output, one path per line, into findings.
func (a *GofmtAdapter) ParseOutput(raw string) []checks.Finding {
	var findings []checks.Finding
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		findings = append(findings, checks.Finding{
			Message:  "file was not gofmt-formatted",
			FilePath: line,
			Kind:     issue.KindFormatting,
			Severity: issue.SeverityLow,
		})
	}
	return findings
}

// Check runs gofmt and reports the rewritten files. A formatter that fixes
// everything it finds still succeeds.
func (a *GofmtAdapter) Check(ctx context.Context, files []string, cfg checks.CheckConfig) (checks.CheckResult, error) {
	start := time.Now()

	argv := a.BuildCommand(files, cfg)
	if argv == nil {
		return checks.CheckResult{CheckID: cfg.ID, Status: checks.StatusSkipped, Message: "no Go files to format"}, nil
	}

	stdout, stderr, exitCode, err := a.run(ctx, a.dir, argv)
	if err != nil {
		return checks.CheckResult{}, fmt.Errorf("running gofmt: %w", err)
	}
	if exitCode != 0 {
		return checks.CheckResult{
			CheckID:         cfg.ID,
			Status:          checks.StatusError,
			Message:         strings.TrimSpace(stderr),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	findings := a.ParseOutput(stdout)
	modified := make([]string, 0, len(findings))
	for _, f := range findings {
		modified = append(modified, f.FilePath)
	}

	return checks.CheckResult{
		CheckID:         cfg.ID,
		Status:          checks.StatusSuccess,
		Message:         fmt.Sprintf("reformatted %d files", len(modified)),
		FilesChecked:    files,
		FilesModified:   modified,
		IssuesFound:     len(findings),
		IssuesFixed:     len(findings),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Findings:        findings,
	}, nil
}

func filterGoFiles(files []string) []string {
	var out []string
	for _, f := range files {
		if strings.HasSuffix(f, ".go") {
			out = append(out, f)
		}
	}
	return out
}
