package fixloop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/agent"
	"github.com/fyrsmithlabs/remedyd/internal/checks"
	"github.com/fyrsmithlabs/remedyd/internal/issue"
	"github.com/fyrsmithlabs/remedyd/internal/strategymem"
)

const instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/fixloop"

// State names the phase the loop is currently in.
type State string

const (
	StateIdle        State = "idle"
	StateExtracting  State = "extracting"
	StateDelegating  State = "delegating"
	StateReverifying State = "reverifying"
	StateExhausted   State = "exhausted"
)

// DefaultMaxIterations bounds how many fix-and-reverify rounds one run may
// spend before giving up.
const DefaultMaxIterations = 3

// Config holds the loop's execution policy.
type Config struct {
	// MaxIterations caps fix-and-reverify rounds. Zero means the default.
	MaxIterations int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
}

// Report is the outcome of one full loop run.
type Report struct {
	// Clean is true when the final check run passed.
	Clean bool `json:"clean"`

	// Iterations is how many fix rounds ran. Zero means the initial check
	// run was already clean.
	Iterations int `json:"iterations"`

	// Exhausted is true when the iteration budget ran out with failures
	// still present.
	Exhausted bool `json:"exhausted"`

	// EnvironmentFault is true when the loop stopped because the failures
	// indicate a broken environment rather than fixable code.
	EnvironmentFault bool `json:"environment_fault"`

	// Fault describes the environment fault when EnvironmentFault is set.
	Fault string `json:"fault,omitempty"`

	// Fixed merges every delegation result across all iterations.
	Fixed issue.FixResult `json:"fixed"`

	// Remaining holds the issues still present after the final check run.
	Remaining []issue.Issue `json:"remaining,omitempty"`

	// Final is the last check run report.
	Final *checks.RunReport `json:"final,omitempty"`
}

// Loop owns one detect, delegate, reverify cycle.
type Loop struct {
	config    Config
	scheduler *checks.Scheduler
	delegator *agent.Delegator
	memory    *strategymem.Store
	logger    *zap.Logger
	tracer    trace.Tracer

	mu    sync.RWMutex
	state State
}

// New creates a fix loop. The strategy store is optional; without it the
// loop dispatches purely by issue kind.
func New(cfg Config, scheduler *checks.Scheduler, delegator *agent.Delegator, memory *strategymem.Store, logger *zap.Logger) (*Loop, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if delegator == nil {
		return nil, fmt.Errorf("delegator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	return &Loop{
		config:    cfg,
		scheduler: scheduler,
		delegator: delegator,
		memory:    memory,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		state:     StateIdle,
	}, nil
}

// State returns the loop's current phase.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run executes checks and fixes failures until the run is clean, the
// environment is found broken, or the iteration budget is spent.
func (l *Loop) Run(ctx context.Context, configs []checks.CheckConfig, files []string) (*Report, error) {
	ctx, span := l.tracer.Start(ctx, "fixloop.run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("checks", len(configs)),
		attribute.Int("files", len(files)),
	)

	defer l.setState(StateIdle)

	current := l.scheduler.RunAll(ctx, configs, files)
	if current.Success() {
		l.logger.Info("initial check run clean, nothing to fix")
		return &Report{Clean: true, Final: current}, nil
	}

	var merged []issue.FixResult
	report := &Report{}

	for i := 1; i <= l.config.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Iterations = i

		l.setState(StateExtracting)
		issues := Extract(flatten(current), configs)

		if fault, ok := IsEnvironmentFault(issues); ok {
			l.logger.Warn("environment fault detected, remediation would be futile",
				zap.String("kind", string(fault.Kind)),
				zap.String("message", fault.Message),
			)
			report.EnvironmentFault = true
			report.Fault = fault.String()
			report.Remaining = issues
			report.Final = current
			report.Fixed = issue.MergeAll(merged)
			return report, nil
		}

		l.logger.Info("fix iteration starting",
			zap.Int("iteration", i),
			zap.Int("issues", len(issues)),
		)

		l.setState(StateDelegating)
		merged = append(merged, l.delegate(ctx, issues)...)

		l.setState(StateReverifying)
		current = l.scheduler.RunAll(ctx, configs, files)
		if current.Success() {
			l.logger.Info("check run clean after fixes", zap.Int("iterations", i))
			report.Clean = true
			report.Final = current
			report.Fixed = issue.MergeAll(merged)
			return report, nil
		}
	}

	l.setState(StateExhausted)
	l.logger.Warn("iteration budget exhausted with failures remaining",
		zap.Int("iterations", report.Iterations),
	)
	report.Exhausted = true
	report.Remaining = Extract(flatten(current), configs)
	report.Final = current
	report.Fixed = issue.MergeAll(merged)
	return report, nil
}

// delegate routes each issue to an agent, consulting strategy memory for a
// proven agent first and recording every attempt back into it.
func (l *Loop) delegate(ctx context.Context, issues []issue.Issue) []issue.FixResult {
	results := make([]issue.FixResult, 0, len(issues))
	for _, iss := range issues {
		agentName := agent.AgentForKind(iss.Kind)
		strategy := "auto"

		if l.memory != nil {
			rec, err := l.memory.RecommendStrategy(ctx, iss)
			switch {
			case err == nil:
				agentName = rec.Agent
				strategy = rec.Strategy
				l.logger.Debug("using remembered strategy",
					zap.String("issue_id", iss.ID),
					zap.String("agent", agentName),
					zap.String("strategy", strategy),
				)
			case errors.Is(err, strategymem.ErrNoRecommendation):
				// First encounter with this kind of issue.
			default:
				l.logger.Warn("strategy lookup failed", zap.Error(err))
			}
		}

		result := l.delegator.Delegate(ctx, agentName, iss, nil)
		results = append(results, result)

		if l.memory != nil {
			rec := strategymem.NewRecord(iss, agentName, strategy, result)
			if err := l.memory.Record(ctx, rec); err != nil {
				l.logger.Warn("recording fix attempt failed", zap.Error(err))
			}
		}
	}
	return results
}

func flatten(report *checks.RunReport) []checks.CheckResult {
	var all []checks.CheckResult
	for _, stage := range report.Stages {
		all = append(all, stage.Results...)
	}
	return all
}
