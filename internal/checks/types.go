package checks

import (
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

// Stage groups checks by cost. Fast checks are pre-commit speed; the
// comprehensive stage holds the deep, slow ones.
type Stage string

const (
	StageFast          Stage = "fast"
	StageComprehensive Stage = "comprehensive"
)

// Status is the outcome classification of one check execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusWarning Status = "warning"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// CheckConfig is the static description of one configured check. It is
// constructed at orchestrator setup and read-only thereafter.
type CheckConfig struct {
	// ID uniquely identifies the check and selects its adapter.
	ID string `json:"id" koanf:"id"`

	// Name is the human-readable check name.
	Name string `json:"name" koanf:"name"`

	// Kind is the issue kind this check's findings map to by default.
	Kind issue.Kind `json:"kind" koanf:"kind"`

	// Enabled gates whether the scheduler runs this check at all.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// FilePatterns restricts the check to matching files (glob syntax).
	FilePatterns []string `json:"file_patterns,omitempty" koanf:"file_patterns"`

	// ExcludePatterns removes matching files from the check's input.
	ExcludePatterns []string `json:"exclude_patterns,omitempty" koanf:"exclude_patterns"`

	// Timeout bounds one execution of the check. Zero means the scheduler
	// default.
	Timeout time.Duration `json:"timeout,omitempty" koanf:"timeout"`

	// Stage assigns the check to the fast or comprehensive stage.
	Stage Stage `json:"stage" koanf:"stage"`

	// IsFormatter marks checks that rewrite files; with RunFormattersFirst
	// set they are sorted ahead of all other checks in their stage.
	IsFormatter bool `json:"is_formatter,omitempty" koanf:"is_formatter"`

	// ParallelSafe marks checks that may run concurrently with others.
	ParallelSafe bool `json:"parallel_safe,omitempty" koanf:"parallel_safe"`

	// RetryOnFailure re-executes the check exactly once on a non-success
	// first result.
	RetryOnFailure bool `json:"retry_on_failure,omitempty" koanf:"retry_on_failure"`

	// Settings is an opaque per-adapter settings map.
	Settings map[string]string `json:"settings,omitempty" koanf:"settings"`
}

// Finding is one raw entry parsed from a tool's output by its adapter. The
// fix-verify loop converts findings into normalized issues.
type Finding struct {
	Message  string         `json:"message"`
	FilePath string         `json:"file_path,omitempty"`
	Line     int            `json:"line,omitempty"`
	Kind     issue.Kind     `json:"kind,omitempty"`
	Severity issue.Severity `json:"severity,omitempty"`
	Details  []string       `json:"details,omitempty"`
}

// CheckResult is the outcome of one check execution.
type CheckResult struct {
	CheckID         string    `json:"check_id"`
	Status          Status    `json:"status"`
	Message         string    `json:"message,omitempty"`
	FilesChecked    []string  `json:"files_checked,omitempty"`
	FilesModified   []string  `json:"files_modified,omitempty"`
	IssuesFound     int       `json:"issues_found"`
	IssuesFixed     int       `json:"issues_fixed"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Findings        []Finding `json:"findings,omitempty"`
}

// Passed reports whether the result counts as passing for summary purposes.
// Warnings and skips pass; failures and errors do not.
func (r CheckResult) Passed() bool {
	return r.Status == StatusSuccess || r.Status == StatusSkipped || r.Status == StatusWarning
}

// Summary aggregates a list of check results post-hoc.
type Summary struct {
	Total       int     `json:"total"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Errored     int     `json:"errored"`
	Warnings    int     `json:"warnings"`
	Skipped     int     `json:"skipped"`
	IssuesFound int     `json:"issues_found"`
	IssuesFixed int     `json:"issues_fixed"`
	PassRate    float64 `json:"pass_rate"`
}

// Summarize computes pass/fail totals over a full result list.
func Summarize(results []CheckResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Passed++
		case StatusSkipped:
			s.Skipped++
			s.Passed++
		case StatusWarning:
			s.Warnings++
			s.Passed++
		case StatusFailure:
			s.Failed++
		case StatusError:
			s.Errored++
		}
		s.IssuesFound += r.IssuesFound
		s.IssuesFixed += r.IssuesFixed
	}
	if s.Total > 0 {
		s.PassRate = float64(s.Passed) / float64(s.Total)
	}
	return s
}
