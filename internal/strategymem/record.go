package strategymem

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

// Errors returned by the strategy store.
var (
	ErrInvalidRecord     = errors.New("strategymem: invalid record")
	ErrNoRecommendation  = errors.New("strategymem: no strategy recommendation available")
	ErrStoreClosed       = errors.New("strategymem: store is closed")
	ErrEmbeddingMismatch = errors.New("strategymem: embedding dimension mismatch")
)

// FixStrategyRecord is one remembered fix attempt: the issue signature, the
// agent and strategy that were tried, and how it went.
type FixStrategyRecord struct {
	ID         string     `json:"id"`
	IssueKind  issue.Kind `json:"issue_kind"`
	ErrorCode  string     `json:"error_code,omitempty"`
	Message    string     `json:"message"`
	FilePath   string     `json:"file_path,omitempty"`
	AgentUsed  string     `json:"agent_used"`
	Strategy   string     `json:"strategy"`
	Success    bool       `json:"success"`
	Confidence float64    `json:"confidence"`
	Timestamp  time.Time  `json:"timestamp"`

	// Embedding is the signature embedding captured at record time, kept in
	// the log so the index rebuilds without re-embedding.
	Embedding []float32 `json:"embedding,omitempty"`
}

// errorCodePattern matches tool diagnostic codes like E0425, TS2304, or
// SA1019 inside a message.
var errorCodePattern = regexp.MustCompile(`\b[A-Z]{1,2}[0-9]{3,5}\b`)

// ExtractErrorCode pulls the first tool diagnostic code out of a message,
// empty when the tool reported none.
func ExtractErrorCode(message string) string {
	return errorCodePattern.FindString(message)
}

// NewRecord builds a record for one fix attempt on an issue.
func NewRecord(iss issue.Issue, agentUsed, strategy string, result issue.FixResult) FixStrategyRecord {
	return FixStrategyRecord{
		ID:         uuid.New().String(),
		IssueKind:  iss.Kind,
		ErrorCode:  ExtractErrorCode(iss.Message),
		Message:    iss.Message,
		FilePath:   iss.FilePath,
		AgentUsed:  agentUsed,
		Strategy:   strategy,
		Success:    result.Success,
		Confidence: result.Confidence,
		Timestamp:  time.Now().UTC(),
	}
}

// Validate checks the fields the store depends on.
func (r FixStrategyRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if r.IssueKind == "" {
		return fmt.Errorf("%w: missing issue kind", ErrInvalidRecord)
	}
	if r.AgentUsed == "" {
		return fmt.Errorf("%w: missing agent", ErrInvalidRecord)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f outside [0,1]", ErrInvalidRecord, r.Confidence)
	}
	return nil
}

// SignatureText is the text that gets embedded: kind, error code, and the
// normalized message. File paths and line numbers are left out so the same
// mistake in different files clusters together.
func (r FixStrategyRecord) SignatureText() string {
	parts := []string{string(r.IssueKind)}
	if r.ErrorCode != "" {
		parts = append(parts, r.ErrorCode)
	}
	if r.Message != "" {
		parts = append(parts, r.Message)
	}
	return strings.Join(parts, " ")
}

// IssueSignature is the query-side counterpart of SignatureText.
func IssueSignature(iss issue.Issue) string {
	parts := []string{string(iss.Kind)}
	if code := ExtractErrorCode(iss.Message); code != "" {
		parts = append(parts, code)
	}
	if iss.Message != "" {
		parts = append(parts, iss.Message)
	}
	return strings.Join(parts, " ")
}
