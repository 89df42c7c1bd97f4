package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

func newTestDelegator(t *testing.T, fixers ...*mockFixer) *Delegator {
	t.Helper()

	d, err := NewDelegator(newTestCoordinator(t, fixers...), zap.NewNop())
	require.NoError(t, err)
	return d
}

func TestDelegationCacheKey_Deterministic(t *testing.T) {
	iss := issue.Issue{Kind: issue.KindTypeError, Message: "undefined: foo", FilePath: "a.go", LineNumber: 12}
	params := map[string]string{"mode": "strict", "lang": "go"}

	k1 := DelegationCacheKey(AgentTypeFixer, iss, params)
	k2 := DelegationCacheKey(AgentTypeFixer, iss, map[string]string{"lang": "go", "mode": "strict"})
	assert.Equal(t, k1, k2, "key must not depend on map iteration order")
}

func TestDelegationCacheKey_FieldSensitivity(t *testing.T) {
	base := issue.Issue{Kind: issue.KindTypeError, Message: "undefined: foo", FilePath: "a.go", LineNumber: 12}
	baseKey := DelegationCacheKey(AgentTypeFixer, base, nil)

	tests := []struct {
		name   string
		agent  string
		mutate func(iss *issue.Issue)
		params map[string]string
	}{
		{name: "agent name", agent: AgentGeneralist},
		{name: "kind", agent: AgentTypeFixer, mutate: func(iss *issue.Issue) { iss.Kind = issue.KindSecurity }},
		{name: "message", agent: AgentTypeFixer, mutate: func(iss *issue.Issue) { iss.Message = "undefined: bar" }},
		{name: "file path", agent: AgentTypeFixer, mutate: func(iss *issue.Issue) { iss.FilePath = "b.go" }},
		{name: "line number", agent: AgentTypeFixer, mutate: func(iss *issue.Issue) { iss.LineNumber = 13 }},
		{name: "extra params", agent: AgentTypeFixer, params: map[string]string{"mode": "strict"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss := base
			if tt.mutate != nil {
				tt.mutate(&iss)
			}
			assert.NotEqual(t, baseKey, DelegationCacheKey(tt.agent, iss, tt.params),
				"changing any one field must change the key")
		})
	}
}

func TestDelegate_CachesConfidentSuccess(t *testing.T) {
	f := &mockFixer{name: AgentTypeFixer, score: 0.9, result: issue.FixResult{Success: true, Confidence: 0.85}}
	d := newTestDelegator(t, f)
	iss := issue.New(issue.KindTypeError, issue.SeverityHigh, "undefined: foo")

	first := d.Delegate(context.Background(), AgentTypeFixer, iss, nil)
	second := d.Delegate(context.Background(), AgentTypeFixer, iss, nil)

	assert.True(t, first.Success)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), f.calls.Load(), "cache hit must not invoke the agent again")

	stats := d.Stats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.InDelta(t, 0.5, stats.CacheHitRate(), 1e-9)
}

func TestDelegate_NeverCachesLowConfidenceOrFailure(t *testing.T) {
	tests := []struct {
		name   string
		result issue.FixResult
	}{
		{name: "failure", result: issue.FixResult{Success: false, Confidence: 0.9}},
		{name: "low confidence success", result: issue.FixResult{Success: true, Confidence: 0.5}},
		{name: "confidence at threshold", result: issue.FixResult{Success: true, Confidence: CacheConfidenceThreshold}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFixer{name: AgentTypeFixer, score: 0.9, result: tt.result}
			d := newTestDelegator(t, f)
			iss := issue.New(issue.KindTypeError, issue.SeverityHigh, "undefined: foo")

			d.Delegate(context.Background(), AgentTypeFixer, iss, nil)
			d.Delegate(context.Background(), AgentTypeFixer, iss, nil)

			assert.Equal(t, int64(2), f.calls.Load(), "uncached results must stay retryable")
			assert.Equal(t, int64(0), d.Stats().CacheHits)
		})
	}
}

func TestDelegate_UnknownAgentIsFailedResult(t *testing.T) {
	d := newTestDelegator(t)

	result := d.Delegate(context.Background(), "missing", issue.New(issue.KindOther, issue.SeverityMedium, "x"), nil)

	assert.False(t, result.Success)
	require.Len(t, result.RemainingIssues, 1)
	assert.Contains(t, result.RemainingIssues[0], "missing")
}

func TestDelegateAuto_DispatchTable(t *testing.T) {
	typeFixer := &mockFixer{name: AgentTypeFixer, score: 0.9, result: issue.FixResult{Success: true, Confidence: 0.6}}
	generalist := &mockFixer{name: AgentGeneralist, score: 0.5, result: issue.FixResult{Success: true, Confidence: 0.4}}
	d := newTestDelegator(t, typeFixer, generalist)

	d.DelegateAuto(context.Background(), issue.New(issue.KindTypeError, issue.SeverityHigh, "a"))
	assert.Equal(t, int64(1), typeFixer.calls.Load())

	d.DelegateAuto(context.Background(), issue.New(issue.KindComplexity, issue.SeverityMedium, "b"))
	assert.Equal(t, int64(1), generalist.calls.Load(), "kinds without a specialist fall back to the generalist")
}

func TestDelegateBatch_FaultIsolation(t *testing.T) {
	generalist := &mockFixer{name: AgentGeneralist, score: 0.9, fixFn: func(_ context.Context, iss issue.Issue) (issue.FixResult, error) {
		if iss.Message == "second" {
			panic("agent exploded on the second issue")
		}
		return issue.FixResult{Success: true, Confidence: 0.5, FixesApplied: []string{"fixed " + iss.Message}}, nil
	}}
	d := newTestDelegator(t, generalist)

	issues := []issue.Issue{
		issue.New(issue.KindComplexity, issue.SeverityMedium, "first"),
		issue.New(issue.KindComplexity, issue.SeverityMedium, "second"),
		issue.New(issue.KindComplexity, issue.SeverityMedium, "third"),
	}
	results := d.DelegateBatch(context.Background(), issues)

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.Equal(t, []string{"fixed first"}, results[0].FixesApplied)
	assert.False(t, results[1].Success)
	require.Len(t, results[1].RemainingIssues, 1)
	assert.Contains(t, results[1].RemainingIssues[0], "agent exploded on the second issue")
	assert.True(t, results[2].Success)
	assert.Equal(t, []string{"fixed third"}, results[2].FixesApplied)
}

func TestStats_Counters(t *testing.T) {
	good := &mockFixer{name: AgentTypeFixer, score: 0.9, result: issue.FixResult{Success: true, Confidence: 0.4}}
	bad := &mockFixer{name: AgentGeneralist, score: 0.9, result: issue.FixResult{Success: false}}
	d := newTestDelegator(t, good, bad)

	d.Delegate(context.Background(), AgentTypeFixer, issue.New(issue.KindTypeError, issue.SeverityHigh, "a"), nil)
	d.Delegate(context.Background(), AgentGeneralist, issue.New(issue.KindOther, issue.SeverityMedium, "b"), nil)

	stats := d.Stats()
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Successful)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.PerAgent[AgentTypeFixer])
	assert.Equal(t, int64(1), stats.PerAgent[AgentGeneralist])
	assert.Equal(t, int64(2), stats.CacheMisses)
}

func TestAverageLatency_Empty(t *testing.T) {
	var s DelegationStats
	assert.Zero(t, s.AverageLatency())
	assert.Zero(t, s.CacheHitRate())
}
