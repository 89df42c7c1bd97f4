package fixloop

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/agent"
	"github.com/fyrsmithlabs/remedyd/internal/checks"
	"github.com/fyrsmithlabs/remedyd/internal/embeddings"
	"github.com/fyrsmithlabs/remedyd/internal/issue"
	"github.com/fyrsmithlabs/remedyd/internal/strategymem"
)

// brokenAdapter reports one finding until fixed is set, then passes.
type brokenAdapter struct {
	name    string
	finding checks.Finding
	fixed   atomic.Bool
	runs    atomic.Int64
}

func (a *brokenAdapter) Name() string { return a.name }

func (a *brokenAdapter) BuildCommand(files []string, cfg checks.CheckConfig) []string {
	return []string{a.name}
}

func (a *brokenAdapter) ParseOutput(raw string) []checks.Finding { return nil }

func (a *brokenAdapter) Check(ctx context.Context, files []string, cfg checks.CheckConfig) (checks.CheckResult, error) {
	a.runs.Add(1)
	if a.fixed.Load() {
		return checks.CheckResult{CheckID: cfg.ID, Status: checks.StatusSuccess}, nil
	}
	return checks.CheckResult{
		CheckID:     cfg.ID,
		Status:      checks.StatusFailure,
		Message:     a.finding.Message,
		IssuesFound: 1,
		Findings:    []checks.Finding{a.finding},
	}, nil
}

// repairFixer flips the adapter to fixed and reports success.
type repairFixer struct {
	name    string
	adapter *brokenAdapter
	succeed bool
	calls   atomic.Int64
}

func (f *repairFixer) Name() string                  { return f.name }
func (f *repairFixer) CanHandle(issue.Issue) float64 { return 0.9 }
func (f *repairFixer) SupportedKinds() []issue.Kind  { return nil }

func (f *repairFixer) Fix(ctx context.Context, iss issue.Issue) (issue.FixResult, error) {
	f.calls.Add(1)
	if !f.succeed {
		return issue.FixResult{Success: false, RemainingIssues: []string{iss.Message}}, nil
	}
	f.adapter.fixed.Store(true)
	return issue.FixResult{Success: true, Confidence: 0.9, FixesApplied: []string{"repaired " + iss.Message}}, nil
}

type loopFixture struct {
	loop    *Loop
	adapter *brokenAdapter
	fixer   *repairFixer
	configs []checks.CheckConfig
	memory  *strategymem.Store
}

func newLoopFixture(t *testing.T, cfg Config, finding checks.Finding, fixerSucceeds, withMemory bool) *loopFixture {
	t.Helper()

	adapter := &brokenAdapter{name: "lint", finding: finding}
	adapterReg := checks.NewRegistry()
	require.NoError(t, adapterReg.Register(adapter))

	scheduler, err := checks.NewScheduler(checks.SchedulerConfig{}, adapterReg, zap.NewNop())
	require.NoError(t, err)

	fixer := &repairFixer{name: agent.AgentForKind(finding.Kind), adapter: adapter, succeed: fixerSucceeds}
	agentReg := agent.NewRegistry()
	require.NoError(t, agentReg.Register(fixer))
	coordinator, err := agent.NewCoordinator(agentReg, zap.NewNop())
	require.NoError(t, err)
	delegator, err := agent.NewDelegator(coordinator, zap.NewNop())
	require.NoError(t, err)

	var memory *strategymem.Store
	if withMemory {
		memory, err = strategymem.Open(strategymem.Config{Dir: t.TempDir()},
			embeddings.NewHashProvider(embeddings.DefaultDimension), zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { memory.Close() })
	}

	loop, err := New(cfg, scheduler, delegator, memory, zap.NewNop())
	require.NoError(t, err)

	return &loopFixture{
		loop:    loop,
		adapter: adapter,
		fixer:   fixer,
		memory:  memory,
		configs: []checks.CheckConfig{{
			ID:           "lint",
			Name:         "Lint",
			Kind:         finding.Kind,
			Enabled:      true,
			Stage:        checks.StageFast,
			ParallelSafe: true,
		}},
	}
}

func typeErrorFinding() checks.Finding {
	return checks.Finding{
		Message:  "undefined: foo",
		FilePath: "handler.go",
		Line:     12,
		Kind:     issue.KindTypeError,
	}
}

func TestLoop_CleanAtIterationZero(t *testing.T) {
	fx := newLoopFixture(t, Config{}, typeErrorFinding(), true, false)
	fx.adapter.fixed.Store(true)

	report, err := fx.loop.Run(context.Background(), fx.configs, []string{"handler.go"})
	require.NoError(t, err)

	assert.True(t, report.Clean)
	assert.Zero(t, report.Iterations)
	assert.Equal(t, int64(0), fx.fixer.calls.Load())
	assert.Equal(t, StateIdle, fx.loop.State())
}

func TestLoop_FixesInOneIteration(t *testing.T) {
	fx := newLoopFixture(t, Config{}, typeErrorFinding(), true, false)

	report, err := fx.loop.Run(context.Background(), fx.configs, []string{"handler.go"})
	require.NoError(t, err)

	assert.True(t, report.Clean)
	assert.Equal(t, 1, report.Iterations)
	assert.False(t, report.Exhausted)
	assert.Equal(t, int64(1), fx.fixer.calls.Load())
	assert.True(t, report.Fixed.Success)
	assert.Contains(t, report.Fixed.FixesApplied, "repaired undefined: foo")
	assert.Equal(t, StateIdle, fx.loop.State())
}

func TestLoop_ExhaustsIterationBudget(t *testing.T) {
	fx := newLoopFixture(t, Config{MaxIterations: 2}, typeErrorFinding(), false, false)

	report, err := fx.loop.Run(context.Background(), fx.configs, []string{"handler.go"})
	require.NoError(t, err)

	assert.False(t, report.Clean)
	assert.True(t, report.Exhausted)
	assert.Equal(t, 2, report.Iterations)
	assert.Equal(t, int64(2), fx.fixer.calls.Load())
	require.NotEmpty(t, report.Remaining)
	assert.Equal(t, "undefined: foo", report.Remaining[0].Message)
	assert.False(t, report.Fixed.Success)
}

func TestLoop_EnvironmentFaultShortCircuits(t *testing.T) {
	finding := checks.Finding{
		Message: `cannot find package "github.com/gone/dep"`,
		Kind:    issue.KindImportError,
	}
	fx := newLoopFixture(t, Config{}, finding, true, false)

	report, err := fx.loop.Run(context.Background(), fx.configs, nil)
	require.NoError(t, err)

	assert.False(t, report.Clean)
	assert.True(t, report.EnvironmentFault)
	assert.Contains(t, report.Fault, "cannot find package")
	assert.Equal(t, int64(0), fx.fixer.calls.Load(), "no delegation against a broken environment")
	assert.False(t, report.Exhausted)
}

func TestLoop_RecordsAttemptsInMemory(t *testing.T) {
	fx := newLoopFixture(t, Config{}, typeErrorFinding(), true, true)

	report, err := fx.loop.Run(context.Background(), fx.configs, []string{"handler.go"})
	require.NoError(t, err)

	assert.True(t, report.Clean)
	assert.Equal(t, 1, fx.memory.Len(), "each delegation leaves one strategy record")
}

func TestLoop_CancelledContext(t *testing.T) {
	fx := newLoopFixture(t, Config{}, typeErrorFinding(), false, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.loop.Run(ctx, fx.configs, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil, zap.NewNop())
	assert.Error(t, err)
}
