package strategymem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/embeddings"
	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()

	s, err := Open(Config{Dir: dir}, embeddings.NewHashProvider(embeddings.DefaultDimension), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(kind issue.Kind, message, agent, strategy string, success bool, confidence float64) FixStrategyRecord {
	return FixStrategyRecord{
		ID:         uuid.New().String(),
		IssueKind:  kind,
		Message:    message,
		AgentUsed:  agent,
		Strategy:   strategy,
		Success:    success,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}
}

func TestStore_RecordAndFindSimilar(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	ctx := context.Background()

	rec := testRecord(issue.KindTypeError, "undefined: foo in handler", "type-fixer", "add-declaration", true, 0.9)
	require.NoError(t, s.Record(ctx, rec))
	assert.Equal(t, 1, s.Len())

	iss := issue.New(issue.KindTypeError, issue.SeverityHigh, "undefined: foo in handler")
	similar, err := s.FindSimilarIssues(ctx, iss, DefaultTopK, DefaultMinSimilarity)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, rec.ID, similar[0].Record.ID)
	assert.InDelta(t, 1.0, similar[0].Similarity, 1e-4, "identical signatures embed identically")
}

func TestStore_FindSimilar_FiltersByKind(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, testRecord(issue.KindSecurity, "undefined: foo in handler", "security-fixer", "redact", true, 0.8)))

	iss := issue.New(issue.KindTypeError, issue.SeverityHigh, "undefined: foo in handler")
	similar, err := s.FindSimilarIssues(ctx, iss, DefaultTopK, 0)
	require.NoError(t, err)
	assert.Empty(t, similar, "attempts of a different kind must not surface")
}

func TestStore_FindSimilar_SimilarityFloor(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, testRecord(issue.KindTypeError, "hardcoded credential detected in loader", "type-fixer", "noop", true, 0.9)))

	iss := issue.New(issue.KindTypeError, issue.SeverityHigh, "undefined: foo in handler")
	similar, err := s.FindSimilarIssues(ctx, iss, DefaultTopK, DefaultMinSimilarity)
	require.NoError(t, err)
	assert.Empty(t, similar, "unrelated messages stay below the similarity floor")
}

func TestStore_FindSimilar_EmptyStore(t *testing.T) {
	s := openTestStore(t, t.TempDir())

	similar, err := s.FindSimilarIssues(context.Background(),
		issue.New(issue.KindTypeError, issue.SeverityHigh, "anything"), DefaultTopK, 0)
	require.NoError(t, err)
	assert.Empty(t, similar)
}

func TestRecommendStrategy_PrefersProvenStrategy(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	ctx := context.Background()

	msg := "undefined: foo in handler"
	require.NoError(t, s.Record(ctx, testRecord(issue.KindTypeError, msg, "type-fixer", "add-declaration", true, 0.9)))
	require.NoError(t, s.Record(ctx, testRecord(issue.KindTypeError, msg, "type-fixer", "add-declaration", true, 0.7)))
	require.NoError(t, s.Record(ctx, testRecord(issue.KindTypeError, msg, "generalist", "rewrite", false, 0.2)))

	rec, err := s.RecommendStrategy(ctx, issue.New(issue.KindTypeError, issue.SeverityHigh, msg))
	require.NoError(t, err)
	assert.Equal(t, "type-fixer", rec.Agent)
	assert.Equal(t, "add-declaration", rec.Strategy)
	assert.Equal(t, 2, rec.SuccessCount)
	assert.InDelta(t, 0.8, rec.MeanConfidence, 1e-9)
}

func TestRecommendStrategy_RequiresASuccess(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	ctx := context.Background()

	msg := "undefined: foo in handler"
	require.NoError(t, s.Record(ctx, testRecord(issue.KindTypeError, msg, "generalist", "rewrite", false, 0.2)))

	_, err := s.RecommendStrategy(ctx, issue.New(issue.KindTypeError, issue.SeverityHigh, msg))
	assert.ErrorIs(t, err, ErrNoRecommendation)
}

func TestRecommendStrategy_EmptyStore(t *testing.T) {
	s := openTestStore(t, t.TempDir())

	_, err := s.RecommendStrategy(context.Background(),
		issue.New(issue.KindTypeError, issue.SeverityHigh, "anything"))
	assert.ErrorIs(t, err, ErrNoRecommendation)
}

func TestStore_ReopenReplaysLog(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openTestStore(t, dir)
	rec := testRecord(issue.KindTestFailure, "assert failed in TestCheckout", "test-repairer", "fix-assertion", true, 0.85)
	require.NoError(t, s.Record(ctx, rec))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, dir)
	assert.Equal(t, 1, reopened.Len())

	iss := issue.New(issue.KindTestFailure, issue.SeverityHigh, "assert failed in TestCheckout")
	similar, err := reopened.FindSimilarIssues(ctx, iss, DefaultTopK, DefaultMinSimilarity)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, rec.ID, similar[0].Record.ID)
}

func TestStore_ReplaySkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openTestStore(t, dir)
	require.NoError(t, s.Record(ctx, testRecord(issue.KindFormatting, "line too long", "formatter", "wrap", true, 0.9)))
	require.NoError(t, s.Close())

	logPath := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json at all\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened := openTestStore(t, dir)
	assert.Equal(t, 1, reopened.Len(), "one corrupt line must not lose the valid ones")
}

func TestStore_RecordAfterClose(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	require.NoError(t, s.Close())

	err := s.Record(context.Background(), testRecord(issue.KindOther, "x", "generalist", "rewrite", true, 0.5))
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *FixStrategyRecord)
	}{
		{name: "missing id", mutate: func(r *FixStrategyRecord) { r.ID = "" }},
		{name: "missing kind", mutate: func(r *FixStrategyRecord) { r.IssueKind = "" }},
		{name: "missing agent", mutate: func(r *FixStrategyRecord) { r.AgentUsed = "" }},
		{name: "confidence above one", mutate: func(r *FixStrategyRecord) { r.Confidence = 1.5 }},
		{name: "negative confidence", mutate: func(r *FixStrategyRecord) { r.Confidence = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord(issue.KindOther, "x", "generalist", "rewrite", true, 0.5)
			tt.mutate(&rec)
			assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)
		})
	}
}

func TestNewRecord_FromIssueAndResult(t *testing.T) {
	iss := issue.New(issue.KindTypeError, issue.SeverityHigh, "error[E0425]: undefined: foo")
	iss.FilePath = "internal/handler.go"

	rec := NewRecord(iss, "type-fixer", "add-declaration", issue.FixResult{Success: true, Confidence: 0.9})

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, issue.KindTypeError, rec.IssueKind)
	assert.Equal(t, "E0425", rec.ErrorCode)
	assert.Equal(t, "error[E0425]: undefined: foo", rec.Message)
	assert.Equal(t, "internal/handler.go", rec.FilePath)
	assert.True(t, rec.Success)
	assert.Contains(t, rec.SignatureText(), "E0425")
}
