package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

// Well-known specialist agent names the typed entry points dispatch to.
const (
	AgentTypeFixer       = "type-fixer"
	AgentFormatter       = "formatter"
	AgentDeadCodeRemover = "dead-code-remover"
	AgentSecurityFixer   = "security-fixer"
	AgentTestRepairer    = "test-repairer"
	AgentGeneralist      = "generalist"
)

// kindAgents is the fixed dispatch table for DelegateAuto.
var kindAgents = map[issue.Kind]string{
	issue.KindTypeError:   AgentTypeFixer,
	issue.KindFormatting:  AgentFormatter,
	issue.KindDeadCode:    AgentDeadCodeRemover,
	issue.KindSecurity:    AgentSecurityFixer,
	issue.KindTestFailure: AgentTestRepairer,
}

// AgentForKind returns the specialist agent name for an issue kind, or the
// generalist when no specialist exists.
func AgentForKind(kind issue.Kind) string {
	if name, ok := kindAgents[kind]; ok {
		return name
	}
	return AgentGeneralist
}

// Delegator is a caching, metrics-keeping façade over the Coordinator.
type Delegator struct {
	coordinator *Coordinator
	logger      *zap.Logger
	stats       *statsRecorder

	mu    sync.Mutex
	cache map[string]issue.FixResult

	delegationCounter metric.Int64Counter
}

// NewDelegator creates a delegator over the given coordinator.
func NewDelegator(coordinator *Coordinator, logger *zap.Logger) (*Delegator, error) {
	if coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Delegator{
		coordinator: coordinator,
		logger:      logger,
		stats:       newStatsRecorder(),
		cache:       make(map[string]issue.FixResult),
	}

	meter := otel.Meter(instrumentationName)
	var err error
	d.delegationCounter, err = meter.Int64Counter(
		"remedyd.delegations_total",
		metric.WithDescription("Total number of fixer delegations"),
		metric.WithUnit("{delegation}"),
	)
	if err != nil {
		logger.Warn("failed to create delegation counter", zap.Error(err))
	}

	return d, nil
}

// Stats returns a snapshot of the running delegation counters.
func (d *Delegator) Stats() DelegationStats {
	return d.stats.snapshot()
}

// DelegateTypeError routes an issue to the type-error specialist.
func (d *Delegator) DelegateTypeError(ctx context.Context, iss issue.Issue) issue.FixResult {
	return d.Delegate(ctx, AgentTypeFixer, iss, nil)
}

// DelegateFormatting routes an issue to the formatter agent.
func (d *Delegator) DelegateFormatting(ctx context.Context, iss issue.Issue) issue.FixResult {
	return d.Delegate(ctx, AgentFormatter, iss, nil)
}

// DelegateDeadCode routes an issue to the dead-code remover.
func (d *Delegator) DelegateDeadCode(ctx context.Context, iss issue.Issue) issue.FixResult {
	return d.Delegate(ctx, AgentDeadCodeRemover, iss, nil)
}

// DelegateSecurity routes an issue to the security specialist.
func (d *Delegator) DelegateSecurity(ctx context.Context, iss issue.Issue) issue.FixResult {
	return d.Delegate(ctx, AgentSecurityFixer, iss, nil)
}

// DelegateAuto dispatches by issue kind through the fixed lookup table,
// falling back to the generalist agent for kinds with no specialist.
func (d *Delegator) DelegateAuto(ctx context.Context, iss issue.Issue) issue.FixResult {
	return d.Delegate(ctx, AgentForKind(iss.Kind), iss, nil)
}

// Delegate routes one issue to a named agent through the cache. A cache hit
// short-circuits invocation entirely; only confident successes are written
// back, so low-confidence and failed attempts stay retryable on the next
// pass. Every call, hit or miss, updates the running stats.
func (d *Delegator) Delegate(ctx context.Context, agentName string, iss issue.Issue, extraParams map[string]string) issue.FixResult {
	key := DelegationCacheKey(agentName, iss, extraParams)

	if cached, ok := d.cacheGet(key); ok {
		d.stats.recordCacheHit()
		d.stats.recordDelegation(agentName, cached.Success, 0)
		d.count(ctx, agentName, cached.Success, true)
		d.logger.Debug("delegation cache hit",
			zap.String("agent", agentName),
			zap.String("issue_id", iss.ID),
		)
		return cached
	}
	d.stats.recordCacheMiss()

	start := time.Now()
	result, err := d.coordinator.HandleWith(ctx, agentName, iss)
	if err != nil {
		// Unknown agent is a delegation failure, not a fault to propagate.
		result = issue.FixResult{
			Success:         false,
			RemainingIssues: []string{fmt.Sprintf("delegation to %s failed: %v", agentName, err)},
		}
	}
	latency := time.Since(start)

	d.stats.recordDelegation(agentName, result.Success, latency)
	d.count(ctx, agentName, result.Success, false)

	if result.Success && result.Confidence > CacheConfidenceThreshold {
		d.cachePut(key, result)
	}
	return result
}

// DelegateBatch fans out independently per issue. One issue's failure
// becomes that issue's failed FixResult and never cancels its siblings; the
// returned slice is index-aligned with the input.
func (d *Delegator) DelegateBatch(ctx context.Context, issues []issue.Issue) []issue.FixResult {
	results := make([]issue.FixResult, len(issues))

	g, ctx := errgroup.WithContext(ctx)
	for i, iss := range issues {
		i, iss := i, iss
		g.Go(func() error {
			// Coordinator's boundary guarantees no error or panic escapes;
			// always return nil so siblings keep running.
			results[i] = d.DelegateAuto(ctx, iss)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// DelegationCacheKey derives the deterministic content key for one
// delegation: agent name, issue kind, message, file, line, and any extra
// parameters, hashed.
func DelegationCacheKey(agentName string, iss issue.Issue, extraParams map[string]string) string {
	h := sha256.New()
	for _, part := range []string{
		agentName,
		string(iss.Kind),
		iss.Message,
		iss.FilePath,
		strconv.Itoa(iss.LineNumber),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}

	keys := make([]string, 0, len(extraParams))
	for k := range extraParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(extraParams[k]))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func (d *Delegator) cacheGet(key string) (issue.FixResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.cache[key]
	return r, ok
}

func (d *Delegator) cachePut(key string, result issue.FixResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[key] = result
}

func (d *Delegator) count(ctx context.Context, agentName string, success, cacheHit bool) {
	if d.delegationCounter == nil {
		return
	}
	d.delegationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agentName),
		attribute.Bool("success", success),
		attribute.Bool("cache_hit", cacheHit),
	))
}
