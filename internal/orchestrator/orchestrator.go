package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/agent"
	"github.com/fyrsmithlabs/remedyd/internal/checks"
	"github.com/fyrsmithlabs/remedyd/internal/config"
	"github.com/fyrsmithlabs/remedyd/internal/embeddings"
	"github.com/fyrsmithlabs/remedyd/internal/fixloop"
	"github.com/fyrsmithlabs/remedyd/internal/gitfiles"
	"github.com/fyrsmithlabs/remedyd/internal/logging"
	"github.com/fyrsmithlabs/remedyd/internal/strategymem"
	"github.com/fyrsmithlabs/remedyd/internal/tools"
)

// Orchestrator owns the assembled remediation pipeline.
type Orchestrator struct {
	config    *config.Config
	logger    *zap.Logger
	adapters  *checks.Registry
	agents    *agent.Registry
	scheduler *checks.Scheduler
	delegator *agent.Delegator
	memory    *strategymem.Store
	provider  embeddings.Provider
	loop      *fixloop.Loop
	baselines *checks.BaselineStore
}

// New assembles the pipeline from configuration. Strategy memory is best
// effort: if it cannot open, remediation still runs, just without learned
// strategies.
func New(cfg *config.Config, logger *zap.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	root := cfg.Project.Root

	adapters := checks.NewRegistry()
	for _, a := range []checks.Adapter{
		tools.NewGofmtAdapter(root, nil),
		tools.NewGoVetAdapter(root, nil),
		tools.NewGoTestAdapter(root, nil),
	} {
		if err := adapters.Register(a); err != nil {
			return nil, fmt.Errorf("registering adapter %s: %w", a.Name(), err)
		}
	}

	scheduler, err := checks.NewScheduler(checks.SchedulerConfig{
		MaxParallelChecks:  cfg.Runner.MaxParallelChecks,
		FailFast:           cfg.Runner.FailFast,
		RunFormattersFirst: cfg.Runner.RunFormattersFirst,
		EnableCaching:      cfg.Runner.EnableCaching,
		CacheTTL:           cfg.Runner.CacheTTL,
		DefaultTimeout:     cfg.Runner.DefaultTimeout,
	}, adapters, logger.Named("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	agents := agent.NewRegistry()
	if err := agents.Register(tools.NewFormatterFixer(root, nil)); err != nil {
		return nil, fmt.Errorf("registering formatter agent: %w", err)
	}

	coordinator, err := agent.NewCoordinator(agents, logger.Named("coordinator"))
	if err != nil {
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}
	delegator, err := agent.NewDelegator(coordinator, logger.Named("delegator"))
	if err != nil {
		return nil, fmt.Errorf("creating delegator: %w", err)
	}

	o := &Orchestrator{
		config:    cfg,
		logger:    logger,
		adapters:  adapters,
		agents:    agents,
		scheduler: scheduler,
		delegator: delegator,
	}

	cacheDir, err := cfg.ExpandedCacheDir()
	if err != nil {
		return nil, err
	}

	o.provider, err = embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		CacheDir: filepath.Join(cacheDir, "models"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	strategyDir, err := cfg.StrategyDir()
	if err != nil {
		return nil, err
	}
	o.memory, err = strategymem.Open(strategymem.Config{Dir: strategyDir}, o.provider, logger.Named("strategymem"))
	if err != nil {
		logger.Warn("strategy memory unavailable, continuing without it", zap.Error(err))
		o.memory = nil
	}

	o.loop, err = fixloop.New(fixloop.Config{MaxIterations: cfg.Loop.MaxIterations},
		scheduler, delegator, o.memory, logger.Named("fixloop"))
	if err != nil {
		return nil, fmt.Errorf("creating fix loop: %w", err)
	}

	baselineDir, err := cfg.BaselineDir()
	if err != nil {
		return nil, err
	}
	o.baselines, err = checks.NewBaselineStore(baselineDir)
	if err != nil {
		return nil, fmt.Errorf("opening baseline store: %w", err)
	}

	return o, nil
}

// RegisterAdapter adds a tool adapter beyond the built-in set.
func (o *Orchestrator) RegisterAdapter(a checks.Adapter) error {
	return o.adapters.Register(a)
}

// RegisterFixer adds a fixer agent beyond the built-in set.
func (o *Orchestrator) RegisterFixer(f agent.Fixer) error {
	return o.agents.Register(f)
}

// Files resolves the file set checks run against. With incremental mode on
// it is the files changed since HEAD; a project outside git falls back to a
// full-tree run.
func (o *Orchestrator) Files() ([]string, error) {
	if !o.config.Runner.Incremental {
		return nil, nil
	}

	files, err := gitfiles.ChangedFiles(o.config.Project.Root)
	if err != nil {
		if errors.Is(err, gitfiles.ErrNoRepository) {
			o.logger.Debug("not a git repository, running full-tree checks")
			return nil, nil
		}
		return nil, err
	}

	o.logger.Info("incremental run", zap.Int("changed_files", len(files)))
	return files, nil
}

// RunChecks executes all configured checks once, without fixing anything.
func (o *Orchestrator) RunChecks(ctx context.Context) (*checks.RunReport, error) {
	files, err := o.Files()
	if err != nil {
		return nil, err
	}

	ctx = logging.WithFields(ctx, zap.String("run_id", uuid.New().String()))
	logging.FromContext(ctx, o.logger).Info("check run starting",
		zap.Int("checks", len(o.config.Checks)),
		zap.String("branch", gitfiles.Branch(o.config.Project.Root)),
	)

	return o.scheduler.RunAll(ctx, o.config.Checks, files), nil
}

// Remediate runs the full detect, delegate, reverify loop.
func (o *Orchestrator) Remediate(ctx context.Context) (*fixloop.Report, error) {
	files, err := o.Files()
	if err != nil {
		return nil, err
	}

	ctx = logging.WithFields(ctx, zap.String("run_id", uuid.New().String()))
	logging.FromContext(ctx, o.logger).Info("remediation starting",
		zap.Int("checks", len(o.config.Checks)),
		zap.Int("max_iterations", o.config.Loop.MaxIterations),
	)

	return o.loop.Run(ctx, o.config.Checks, files)
}

// Stats returns the running delegation counters.
func (o *Orchestrator) Stats() agent.DelegationStats {
	return o.delegator.Stats()
}

// Baselines exposes the performance baseline store.
func (o *Orchestrator) Baselines() *checks.BaselineStore {
	return o.baselines
}

// LoopState reports the fix loop's current phase.
func (o *Orchestrator) LoopState() fixloop.State {
	return o.loop.State()
}

// Close releases strategy memory and the embedding provider.
func (o *Orchestrator) Close() error {
	var errs []error
	if o.memory != nil {
		if err := o.memory.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.provider != nil {
		if err := o.provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
