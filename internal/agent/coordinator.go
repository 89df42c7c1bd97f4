package agent

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

const instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/agent"

// Notifier receives human-readable remediation events. Attached optionally
// so a CLI can echo agent faults without the coordinator knowing about
// terminals.
type Notifier interface {
	Notify(message string)
}

// Coordinator selects, invokes, and verifies fixer agents.
type Coordinator struct {
	registry *Registry
	logger   *zap.Logger
	notifier Notifier
	tracer   trace.Tracer
}

// NewCoordinator creates a coordinator over the given agent registry.
func NewCoordinator(registry *Registry, logger *zap.Logger) (*Coordinator, error) {
	if registry == nil {
		return nil, fmt.Errorf("agent registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		registry: registry,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
	}, nil
}

// SetNotifier attaches a console sink for agent fault messages.
func (c *Coordinator) SetNotifier(n Notifier) {
	c.notifier = n
}

// HandleIssues routes each issue to its best-scoring agent and merges the
// per-issue results into one batch aggregate.
func (c *Coordinator) HandleIssues(ctx context.Context, issues []issue.Issue) issue.FixResult {
	ctx, span := c.tracer.Start(ctx, "coordinator.handle_issues")
	defer span.End()
	span.SetAttributes(attribute.Int("issue_count", len(issues)))

	results := make([]issue.FixResult, 0, len(issues))
	for _, iss := range issues {
		results = append(results, c.HandleIssue(ctx, iss))
	}
	return issue.MergeAll(results)
}

// HandleIssue selects the strictly highest-confidence agent for the issue
// and invokes it. When no agent clears the delegation threshold the issue is
// recorded as unresolved with a synthesized low-confidence result.
func (c *Coordinator) HandleIssue(ctx context.Context, iss issue.Issue) issue.FixResult {
	best, score := c.selectAgent(iss)
	if best == nil {
		c.logger.Info("no agent cleared delegation threshold",
			zap.String("issue_id", iss.ID),
			zap.String("kind", string(iss.Kind)),
			zap.Float64("best_score", score),
		)
		return declinedResult(iss, score)
	}
	return c.Invoke(ctx, best, iss)
}

// HandleWith routes the issue to a named agent, still subject to the
// delegation threshold: an agent that scores the issue below it is never
// invoked.
func (c *Coordinator) HandleWith(ctx context.Context, agentName string, iss issue.Issue) (issue.FixResult, error) {
	f, err := c.registry.Get(agentName)
	if err != nil {
		return issue.FixResult{}, err
	}
	if score := f.CanHandle(iss); score < DelegationThreshold {
		return declinedResult(iss, score), nil
	}
	return c.Invoke(ctx, f, iss), nil
}

// selectAgent returns the agent with the strictly highest CanHandle score at
// or above the delegation threshold, and the best score seen either way.
func (c *Coordinator) selectAgent(iss issue.Issue) (Fixer, float64) {
	var best Fixer
	bestScore := 0.0
	for _, f := range c.registry.All() {
		score := f.CanHandle(iss)
		if score > bestScore {
			bestScore = score
			best = f
		}
	}
	if bestScore < DelegationThreshold {
		return nil, bestScore
	}
	return best, bestScore
}

// Invoke runs one agent against one issue under the error boundary and
// verifies any claimed file modifications before trusting the result.
func (c *Coordinator) Invoke(ctx context.Context, f Fixer, iss issue.Issue) issue.FixResult {
	ctx, span := c.tracer.Start(ctx, "coordinator.invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent", f.Name()),
		attribute.String("issue_id", iss.ID),
		attribute.String("kind", string(iss.Kind)),
	)

	pre := snapshotFiles(issueFiles(iss))
	callStart := time.Now()

	result := c.invokeGuarded(ctx, f, iss)

	if result.Success && len(result.FilesModified) > 0 {
		if !c.verifyModifications(pre, callStart, result.FilesModified) {
			c.logger.Warn("lie detected: claimed modifications not found on disk",
				zap.String("agent", f.Name()),
				zap.String("issue_id", iss.ID),
				zap.Strings("claimed", result.FilesModified),
			)
			result.Success = false
			result.RemainingIssues = append(result.RemainingIssues,
				fmt.Sprintf("agent %s claimed modifications to %v but on-disk content is unchanged", f.Name(), result.FilesModified))
		}
	}

	return result
}

// invokeGuarded is the error boundary: a panic or error inside Fix becomes a
// failed FixResult carrying the agent name, issue id, and fault text. It
// never lets a fault escape to the batch loop.
func (c *Coordinator) invokeGuarded(ctx context.Context, f Fixer, iss issue.Issue) (result issue.FixResult) {
	defer func() {
		if r := recover(); r != nil {
			result = c.faultResult(f, iss, fmt.Sprintf("panic: %v", r))
		}
	}()

	result, err := f.Fix(ctx, iss)
	if err != nil {
		return c.faultResult(f, iss, err.Error())
	}
	return result
}

// faultResult converts an agent fault into data and reports it.
func (c *Coordinator) faultResult(f Fixer, iss issue.Issue, fault string) issue.FixResult {
	msg := fmt.Sprintf("agent %s failed on issue %s: %s", f.Name(), iss.ID, fault)

	c.logger.Error("agent fault",
		zap.String("agent", f.Name()),
		zap.String("issue_id", iss.ID),
		zap.String("fault", fault),
	)
	if c.notifier != nil {
		c.notifier.Notify(msg)
	}

	return issue.FixResult{
		Success:         false,
		Confidence:      0,
		RemainingIssues: []string{msg},
	}
}

// declinedResult synthesizes the unresolved outcome for an issue no agent
// would take.
func declinedResult(iss issue.Issue, bestScore float64) issue.FixResult {
	return issue.FixResult{
		Success:    false,
		Confidence: bestScore,
		RemainingIssues: []string{
			fmt.Sprintf("no agent accepted issue %s (%s): best score %.2f below threshold %.2f",
				iss.ID, iss.Kind, bestScore, DelegationThreshold),
		},
	}
}

// fileState captures one file's pre-invocation identity for lie detection.
type fileState struct {
	exists  bool
	sum     [sha256.Size]byte
	modTime time.Time
}

// issueFiles lists the paths an agent is expected to touch for the issue.
func issueFiles(iss issue.Issue) []string {
	if iss.FilePath == "" {
		return nil
	}
	return []string{iss.FilePath}
}

// snapshotFiles records content hash and mtime for each path.
func snapshotFiles(paths []string) map[string]fileState {
	snaps := make(map[string]fileState, len(paths))
	for _, p := range paths {
		snaps[p] = snapshotFile(p)
	}
	return snaps
}

func snapshotFile(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileState{exists: true, modTime: info.ModTime()}
	}
	return fileState{exists: true, sum: sha256.Sum256(data), modTime: info.ModTime()}
}

// verifyModifications reports whether at least one claimed path shows
// evidence of change: different content than its pre-call snapshot, or for
// paths with no snapshot, an mtime no older than the call start. A claim
// with no changed file at all is a lie.
func (c *Coordinator) verifyModifications(pre map[string]fileState, callStart time.Time, claimed []string) bool {
	for _, p := range claimed {
		if before, ok := pre[p]; ok {
			after := snapshotFile(p)
			if before.exists != after.exists {
				return true
			}
			if after.exists && !bytes.Equal(before.sum[:], after.sum[:]) {
				return true
			}
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.ModTime().Before(callStart) {
			return true
		}
	}
	return false
}
