package agent

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

// mockFixer is a scriptable agent for coordinator tests.
type mockFixer struct {
	name     string
	score    float64
	kinds    []issue.Kind
	result   issue.FixResult
	err      error
	panicMsg string
	fixFn    func(ctx context.Context, iss issue.Issue) (issue.FixResult, error)
	calls    atomic.Int64
}

func (m *mockFixer) Name() string                     { return m.name }
func (m *mockFixer) CanHandle(issue.Issue) float64    { return m.score }
func (m *mockFixer) SupportedKinds() []issue.Kind     { return m.kinds }
func (m *mockFixer) Fix(ctx context.Context, iss issue.Issue) (issue.FixResult, error) {
	m.calls.Add(1)
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.fixFn != nil {
		return m.fixFn(ctx, iss)
	}
	return m.result, m.err
}

type captureNotifier struct {
	messages []string
}

func (n *captureNotifier) Notify(msg string) {
	n.messages = append(n.messages, msg)
}

func newTestCoordinator(t *testing.T, fixers ...*mockFixer) *Coordinator {
	t.Helper()

	reg := NewRegistry()
	for _, f := range fixers {
		require.NoError(t, reg.Register(f))
	}
	c, err := NewCoordinator(reg, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewCoordinator_RequiresRegistry(t *testing.T) {
	_, err := NewCoordinator(nil, zap.NewNop())
	require.Error(t, err)
}

func TestHandleIssue_BelowThresholdNeverInvoked(t *testing.T) {
	timid := &mockFixer{name: "timid", score: 0.29, result: issue.FixResult{Success: true}}
	c := newTestCoordinator(t, timid)

	result := c.HandleIssue(context.Background(), issue.New(issue.KindTypeError, issue.SeverityHigh, "boom"))

	assert.False(t, result.Success)
	assert.Equal(t, int64(0), timid.calls.Load(), "agent below threshold must not be invoked")
	require.Len(t, result.RemainingIssues, 1)
	assert.Contains(t, result.RemainingIssues[0], "below threshold")
	assert.InDelta(t, 0.29, result.Confidence, 1e-9)
}

func TestHandleIssue_SelectsHighestScore(t *testing.T) {
	low := &mockFixer{name: "low", score: 0.5, result: issue.FixResult{Success: true, Confidence: 0.5}}
	high := &mockFixer{name: "high", score: 0.9, result: issue.FixResult{Success: true, Confidence: 0.9}}
	c := newTestCoordinator(t, low, high)

	result := c.HandleIssue(context.Background(), issue.New(issue.KindTypeError, issue.SeverityHigh, "boom"))

	assert.True(t, result.Success)
	assert.Equal(t, int64(0), low.calls.Load())
	assert.Equal(t, int64(1), high.calls.Load())
}

func TestHandleWith_UnknownAgent(t *testing.T) {
	c := newTestCoordinator(t)

	_, err := c.HandleWith(context.Background(), "missing", issue.New(issue.KindOther, issue.SeverityMedium, "x"))
	require.ErrorIs(t, err, ErrAgentNotFound)
}

func TestHandleWith_NamedAgentStillThresholdGated(t *testing.T) {
	timid := &mockFixer{name: "timid", score: 0.1, result: issue.FixResult{Success: true}}
	c := newTestCoordinator(t, timid)

	result, err := c.HandleWith(context.Background(), "timid", issue.New(issue.KindOther, issue.SeverityMedium, "x"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, int64(0), timid.calls.Load())
}

func TestInvoke_ErrorBoundary(t *testing.T) {
	tests := []struct {
		name  string
		fixer *mockFixer
		want  string
	}{
		{
			name:  "returned error becomes failed result",
			fixer: &mockFixer{name: "erratic", score: 0.8, err: assert.AnError},
			want:  assert.AnError.Error(),
		},
		{
			name:  "panic becomes failed result",
			fixer: &mockFixer{name: "panicky", score: 0.8, panicMsg: "nil map write"},
			want:  "panic: nil map write",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoordinator(t, tt.fixer)
			notifier := &captureNotifier{}
			c.SetNotifier(notifier)

			iss := issue.New(issue.KindTypeError, issue.SeverityHigh, "boom")
			result := c.HandleIssue(context.Background(), iss)

			assert.False(t, result.Success)
			assert.Zero(t, result.Confidence)
			require.Len(t, result.RemainingIssues, 1)
			assert.Contains(t, result.RemainingIssues[0], tt.fixer.name)
			assert.Contains(t, result.RemainingIssues[0], iss.ID)
			assert.Contains(t, result.RemainingIssues[0], tt.want)

			require.Len(t, notifier.messages, 1)
			assert.Contains(t, notifier.messages[0], tt.want)
		})
	}
}

func TestInvoke_LieDetection_UnchangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.go")
	require.NoError(t, os.WriteFile(path, []byte("package target\n"), 0o644))

	// Claims to have modified the file without touching it.
	liar := &mockFixer{name: "liar", score: 0.9, result: issue.FixResult{
		Success:       true,
		Confidence:    0.95,
		FixesApplied:  []string{"rewrote target"},
		FilesModified: []string{path},
	}}
	c := newTestCoordinator(t, liar)

	iss := issue.New(issue.KindTypeError, issue.SeverityHigh, "boom")
	iss.FilePath = path
	result := c.HandleIssue(context.Background(), iss)

	assert.False(t, result.Success, "claimed modification with unchanged content must be downgraded")
	require.NotEmpty(t, result.RemainingIssues)
	assert.Contains(t, result.RemainingIssues[len(result.RemainingIssues)-1], "unchanged")
}

func TestInvoke_LieDetection_RealChangeAccepted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.go")
	require.NoError(t, os.WriteFile(path, []byte("package target\n"), 0o644))

	honest := &mockFixer{name: "honest", score: 0.9, fixFn: func(_ context.Context, iss issue.Issue) (issue.FixResult, error) {
		if err := os.WriteFile(iss.FilePath, []byte("package target // fixed\n"), 0o644); err != nil {
			return issue.FixResult{}, err
		}
		return issue.FixResult{
			Success:       true,
			Confidence:    0.9,
			FixesApplied:  []string{"fixed target"},
			FilesModified: []string{iss.FilePath},
		}, nil
	}}
	c := newTestCoordinator(t, honest)

	iss := issue.New(issue.KindTypeError, issue.SeverityHigh, "boom")
	iss.FilePath = path
	result := c.HandleIssue(context.Background(), iss)

	assert.True(t, result.Success)
	assert.Empty(t, result.RemainingIssues)
}

func TestInvoke_LieDetection_NewFileAccepted(t *testing.T) {
	dir := t.TempDir()
	created := filepath.Join(dir, "created.go")

	creator := &mockFixer{name: "creator", score: 0.9, fixFn: func(context.Context, issue.Issue) (issue.FixResult, error) {
		if err := os.WriteFile(created, []byte("package created\n"), 0o644); err != nil {
			return issue.FixResult{}, err
		}
		return issue.FixResult{
			Success:       true,
			Confidence:    0.8,
			FilesModified: []string{created},
		}, nil
	}}
	c := newTestCoordinator(t, creator)

	result := c.HandleIssue(context.Background(), issue.New(issue.KindTypeError, issue.SeverityHigh, "boom"))

	assert.True(t, result.Success, "a file created during the call is evidence of change")
}

func TestInvoke_NoClaimNoVerification(t *testing.T) {
	// Success with an empty FilesModified needs no on-disk evidence.
	advisory := &mockFixer{name: "advisory", score: 0.9, result: issue.FixResult{
		Success:         true,
		Confidence:      0.6,
		Recommendations: []string{"run the formatter"},
	}}
	c := newTestCoordinator(t, advisory)

	result := c.HandleIssue(context.Background(), issue.New(issue.KindFormatting, issue.SeverityLow, "style"))
	assert.True(t, result.Success)
}

func TestHandleIssues_MergesResults(t *testing.T) {
	mixed := &mockFixer{name: "mixed", score: 0.9, fixFn: func(_ context.Context, iss issue.Issue) (issue.FixResult, error) {
		if iss.Kind == issue.KindSecurity {
			return issue.FixResult{Success: false, Confidence: 0.4, RemainingIssues: []string{"cannot fix secret"}}, nil
		}
		return issue.FixResult{Success: true, Confidence: 0.8, FixesApplied: []string{"fixed " + string(iss.Kind)}}, nil
	}}
	c := newTestCoordinator(t, mixed)

	issues := []issue.Issue{
		issue.New(issue.KindTypeError, issue.SeverityHigh, "a"),
		issue.New(issue.KindSecurity, issue.SeverityCritical, "b"),
		issue.New(issue.KindFormatting, issue.SeverityLow, "c"),
	}
	result := c.HandleIssues(context.Background(), issues)

	assert.False(t, result.Success, "one failed issue fails the batch aggregate")
	assert.InDelta(t, 0.8, result.Confidence, 1e-9, "aggregate confidence is the max")
	assert.Equal(t, []string{"cannot fix secret"}, result.RemainingIssues)
	assert.Len(t, result.FixesApplied, 2)
}
