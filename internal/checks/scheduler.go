package checks

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/checks"

// SchedulerConfig holds execution policy for the check scheduler.
type SchedulerConfig struct {
	// MaxParallelChecks caps concurrently outstanding adapter calls.
	MaxParallelChecks int

	// FailFast cancels all in-flight checks as soon as the first check to
	// complete reports non-success, returning only that result.
	FailFast bool

	// RunFormattersFirst sorts formatter checks ahead of all others.
	RunFormattersFirst bool

	// EnableCaching turns the TTL result cache on.
	EnableCaching bool

	// CacheTTL overrides the default one hour cache TTL.
	CacheTTL time.Duration

	// DefaultTimeout bounds checks that set no timeout of their own.
	DefaultTimeout time.Duration
}

// ApplyDefaults sets defaults for unset fields.
func (c *SchedulerConfig) ApplyDefaults() {
	if c.MaxParallelChecks <= 0 {
		c.MaxParallelChecks = 4
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 2 * time.Minute
	}
}

// Scheduler runs configured checks through registered adapters.
type Scheduler struct {
	config   SchedulerConfig
	registry *Registry
	cache    *ResultCache
	logger   *zap.Logger

	runCounter      metric.Int64Counter
	cacheHitCounter metric.Int64Counter
}

// NewScheduler creates a scheduler over the given adapter registry.
func NewScheduler(cfg SchedulerConfig, registry *Registry, logger *zap.Logger) (*Scheduler, error) {
	if registry == nil {
		return nil, fmt.Errorf("adapter registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	s := &Scheduler{
		config:   cfg,
		registry: registry,
		cache:    NewResultCache(cfg.CacheTTL),
		logger:   logger,
	}

	meter := otel.Meter(instrumentationName)
	var err error
	s.runCounter, err = meter.Int64Counter(
		"remedyd.checks.runs_total",
		metric.WithDescription("Total number of check executions"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		logger.Warn("failed to create run counter", zap.Error(err))
	}
	s.cacheHitCounter, err = meter.Int64Counter(
		"remedyd.checks.cache_hits_total",
		metric.WithDescription("Total number of check result cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		logger.Warn("failed to create cache hit counter", zap.Error(err))
	}

	return s, nil
}

// RunStage executes the enabled checks of one stage against files and
// returns their results. In fail-fast mode the returned slice holds exactly
// one element when any check completes non-success.
func (s *Scheduler) RunStage(ctx context.Context, stage Stage, configs []CheckConfig, files []string) []CheckResult {
	selected := s.selectChecks(stage, configs)
	if len(selected) == 0 {
		return nil
	}

	if s.config.FailFast {
		return s.runFailFast(ctx, selected, files)
	}
	return s.runBounded(ctx, selected, files)
}

// StageReport pairs a stage with its results and summary.
type StageReport struct {
	Stage   Stage         `json:"stage"`
	Results []CheckResult `json:"results"`
	Summary Summary       `json:"summary"`
}

// RunReport is the outcome of running all stages.
type RunReport struct {
	Stages  []StageReport `json:"stages"`
	Summary Summary       `json:"summary"`
}

// Success reports whether every executed check passed.
func (r *RunReport) Success() bool {
	return r.Summary.Failed == 0 && r.Summary.Errored == 0
}

// RunAll executes the fast stage followed by the comprehensive stage and
// aggregates per-stage and overall summaries.
func (s *Scheduler) RunAll(ctx context.Context, configs []CheckConfig, files []string) *RunReport {
	report := &RunReport{}
	var all []CheckResult

	for _, stage := range []Stage{StageFast, StageComprehensive} {
		results := s.RunStage(ctx, stage, configs, files)
		report.Stages = append(report.Stages, StageReport{
			Stage:   stage,
			Results: results,
			Summary: Summarize(results),
		})
		all = append(all, results...)
	}

	report.Summary = Summarize(all)
	return report
}

// selectChecks filters configs to the enabled checks of stage and applies
// the scheduling order.
func (s *Scheduler) selectChecks(stage Stage, configs []CheckConfig) []CheckConfig {
	var selected []CheckConfig
	for _, cfg := range configs {
		if cfg.Enabled && cfg.Stage == stage {
			selected = append(selected, cfg)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if s.config.RunFormattersFirst && selected[i].IsFormatter != selected[j].IsFormatter {
			return selected[i].IsFormatter
		}
		return selected[i].Name < selected[j].Name
	})
	return selected
}

// runBounded executes checks under the concurrency limiter. Checks not
// marked parallel-safe run first, one at a time, before the parallel batch
// launches.
func (s *Scheduler) runBounded(ctx context.Context, configs []CheckConfig, files []string) []CheckResult {
	var serial, parallel []CheckConfig
	for _, cfg := range configs {
		if cfg.ParallelSafe {
			parallel = append(parallel, cfg)
		} else {
			serial = append(serial, cfg)
		}
	}

	results := make([]CheckResult, 0, len(configs))
	for _, cfg := range serial {
		results = append(results, s.execute(ctx, cfg, files))
	}

	if len(parallel) == 0 {
		return results
	}

	sem := semaphore.NewWeighted(int64(s.config.MaxParallelChecks))
	slots := make([]CheckResult, len(parallel))
	done := make(chan int, len(parallel))

	for i, cfg := range parallel {
		if err := sem.Acquire(ctx, 1); err != nil {
			slots[i] = errorResult(cfg.ID, fmt.Sprintf("cancelled before launch: %v", err), 0)
			done <- i
			continue
		}
		go func(i int, cfg CheckConfig) {
			defer sem.Release(1)
			slots[i] = s.execute(ctx, cfg, files)
			done <- i
		}(i, cfg)
	}

	for range parallel {
		<-done
	}
	return append(results, slots...)
}

// runFailFast launches every check concurrently and races completions: the
// first completed non-success result cancels the rest and is returned alone.
// Completion order, not launch order, is authoritative.
func (s *Scheduler) runFailFast(ctx context.Context, configs []CheckConfig, files []string) []CheckResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type indexed struct {
		idx    int
		result CheckResult
	}

	sem := semaphore.NewWeighted(int64(s.config.MaxParallelChecks))
	completions := make(chan indexed, len(configs))

	for i, cfg := range configs {
		go func(i int, cfg CheckConfig) {
			if err := sem.Acquire(ctx, 1); err != nil {
				completions <- indexed{i, errorResult(cfg.ID, fmt.Sprintf("cancelled before launch: %v", err), 0)}
				return
			}
			defer sem.Release(1)
			completions <- indexed{i, s.execute(ctx, cfg, files)}
		}(i, cfg)
	}

	slots := make([]CheckResult, len(configs))
	for range configs {
		c := <-completions
		if ctx.Err() != nil {
			// Already cancelled; drain without inspecting.
			continue
		}
		if !c.result.Passed() {
			cancel()
			s.logger.Info("fail-fast triggered",
				zap.String("check_id", c.result.CheckID),
				zap.String("status", string(c.result.Status)),
			)
			return []CheckResult{c.result}
		}
		slots[c.idx] = c.result
	}
	return slots
}

// execute runs a single check end to end: adapter lookup, file filtering,
// cache lookup, bounded execution with fault recovery, and the single
// opt-in retry.
func (s *Scheduler) execute(ctx context.Context, cfg CheckConfig, files []string) CheckResult {
	adapter, err := s.registry.Lookup(cfg.ID)
	if err != nil {
		// Unknown adapter is a silent skip, not an error.
		s.logger.Debug("no adapter registered, skipping check", zap.String("check_id", cfg.ID))
		return CheckResult{CheckID: cfg.ID, Status: StatusSkipped, Message: "no adapter registered"}
	}

	filtered := filterFiles(files, cfg.FilePatterns, cfg.ExcludePatterns)

	var key string
	if s.config.EnableCaching {
		key = CacheKey(adapter.Name(), cfg.ID, filtered)
		if cached, ok := s.cache.Get(key); ok {
			s.logger.Debug("check cache hit", zap.String("check_id", cfg.ID))
			s.addCacheHit(ctx, cfg)
			return cached
		}
	}

	result := s.runOnce(ctx, adapter, cfg, filtered)

	if !result.Passed() && cfg.RetryOnFailure {
		s.logger.Info("retrying failed check once",
			zap.String("check_id", cfg.ID),
			zap.String("status", string(result.Status)),
		)
		result = s.runOnce(ctx, adapter, cfg, filtered)
	}

	// Failures are never cached: the fix-verify loop must observe fresh
	// state when it re-runs the originating check after remediation.
	if s.config.EnableCaching && result.Passed() {
		s.cache.Put(key, result)
	}
	return result
}

// runOnce performs one bounded adapter call with panic and error recovery.
func (s *Scheduler) runOnce(ctx context.Context, adapter Adapter, cfg CheckConfig, files []string) CheckResult {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = s.config.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := s.callAdapter(callCtx, adapter, cfg, files)
	elapsed := time.Since(start).Milliseconds()

	s.addRun(ctx, cfg, err == nil)

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			// Timeouts are failures of the check, not system faults.
			return CheckResult{
				CheckID:         cfg.ID,
				Status:          StatusFailure,
				Message:         fmt.Sprintf("timeout after %s", timeout),
				ExecutionTimeMs: elapsed,
			}
		}
		s.logger.Error("check adapter fault",
			zap.String("check_id", cfg.ID),
			zap.String("adapter", adapter.Name()),
			zap.Error(err),
		)
		return errorResult(cfg.ID, err.Error(), elapsed)
	}

	result.CheckID = cfg.ID
	if result.ExecutionTimeMs == 0 {
		result.ExecutionTimeMs = elapsed
	}
	if result.FilesChecked == nil {
		result.FilesChecked = files
	}
	return result
}

// callAdapter invokes the adapter under a recover boundary so a panicking
// adapter surfaces as an error, never as a crashed scheduler.
func (s *Scheduler) callAdapter(ctx context.Context, adapter Adapter, cfg CheckConfig, files []string) (result CheckResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter %s panicked: %v", adapter.Name(), r)
		}
	}()
	return adapter.Check(ctx, files, cfg)
}

func (s *Scheduler) addRun(ctx context.Context, cfg CheckConfig, ok bool) {
	if s.runCounter == nil {
		return
	}
	s.runCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check_id", cfg.ID),
		attribute.Bool("adapter_ok", ok),
	))
}

func (s *Scheduler) addCacheHit(ctx context.Context, cfg CheckConfig) {
	if s.cacheHitCounter == nil {
		return
	}
	s.cacheHitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check_id", cfg.ID),
	))
}

// errorResult synthesizes a StatusError result carrying the fault text.
func errorResult(checkID, message string, elapsedMs int64) CheckResult {
	return CheckResult{
		CheckID:         checkID,
		Status:          StatusError,
		Message:         message,
		ExecutionTimeMs: elapsedMs,
	}
}

// filterFiles applies include then exclude glob patterns. Patterns match
// either the full path or its base name. Empty include patterns admit all.
func filterFiles(files, include, exclude []string) []string {
	if len(files) == 0 {
		return nil
	}

	matches := func(patterns []string, file string) bool {
		for _, p := range patterns {
			if ok, _ := path.Match(p, file); ok {
				return true
			}
			if ok, _ := path.Match(p, filepath.Base(file)); ok {
				return true
			}
		}
		return false
	}

	var out []string
	for _, f := range files {
		if len(include) > 0 && !matches(include, f) {
			continue
		}
		if matches(exclude, f) {
			continue
		}
		out = append(out, f)
	}
	return out
}
