package issue

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind categorizes what class of defect a finding represents.
type Kind string

const (
	// KindFormatting represents style and formatting violations.
	KindFormatting Kind = "formatting"
	// KindTypeError represents type-checker failures.
	KindTypeError Kind = "type-error"
	// KindSecurity represents security scanner findings.
	KindSecurity Kind = "security"
	// KindTestFailure represents failing tests.
	KindTestFailure Kind = "test-failure"
	// KindImportError represents unresolved imports or module resolution failures.
	KindImportError Kind = "import-error"
	// KindComplexity represents excessive cyclomatic or cognitive complexity.
	KindComplexity Kind = "complexity"
	// KindDeadCode represents unused or unreachable code.
	KindDeadCode Kind = "dead-code"
	// KindDependency represents dependency problems (missing, vulnerable, outdated).
	KindDependency Kind = "dependency"
	// KindPerformance represents benchmark regressions and hot spots.
	KindPerformance Kind = "performance"
	// KindDocumentation represents missing or stale documentation.
	KindDocumentation Kind = "documentation"
	// KindOther is the fallback for findings no specific kind describes.
	KindOther Kind = "other"
)

// Severity ranks how urgent a finding is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Issue is a single normalized finding. It is immutable once created and
// lives only for the duration of one remediation batch.
type Issue struct {
	// ID is stable per occurrence.
	ID string `json:"id"`

	// Kind categorizes the finding.
	Kind Kind `json:"kind"`

	// Severity ranks the finding.
	Severity Severity `json:"severity"`

	// Message is the human-readable description from the originating tool.
	Message string `json:"message"`

	// FilePath is the affected file, if the tool reported one.
	FilePath string `json:"file_path,omitempty"`

	// LineNumber is the affected line, 0 when unknown.
	LineNumber int `json:"line_number,omitempty"`

	// Details carries supplemental context lines in tool order.
	Details []string `json:"details,omitempty"`

	// OriginStage names the check that produced this finding.
	OriginStage string `json:"origin_stage,omitempty"`
}

// New creates an issue with a generated ID.
func New(kind Kind, severity Severity, message string) Issue {
	return Issue{
		ID:       uuid.New().String(),
		Kind:     kind,
		Severity: severity,
		Message:  message,
	}
}

// String renders the issue for logs and reports.
func (i Issue) String() string {
	if i.FilePath != "" && i.LineNumber > 0 {
		return fmt.Sprintf("[%s/%s] %s:%d: %s", i.Kind, i.Severity, i.FilePath, i.LineNumber, i.Message)
	}
	if i.FilePath != "" {
		return fmt.Sprintf("[%s/%s] %s: %s", i.Kind, i.Severity, i.FilePath, i.Message)
	}
	return fmt.Sprintf("[%s/%s] %s", i.Kind, i.Severity, i.Message)
}

// IsEnvironmentFault reports whether the issue indicates the checks
// themselves could not run meaningfully (broken imports or unresolvable
// dependencies) rather than a code-quality defect. Remediation against such
// a state is presumed futile and the fix-verify loop short-circuits on it.
func (i Issue) IsEnvironmentFault() bool {
	return i.Kind == KindImportError
}
