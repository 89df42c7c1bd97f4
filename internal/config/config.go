// Package config provides configuration loading for remedyd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/checks"
)

// Config is the full remedyd configuration tree.
type Config struct {
	Project    ProjectConfig        `koanf:"project"`
	Runner     RunnerConfig         `koanf:"runner"`
	Loop       LoopConfig           `koanf:"loop"`
	Logging    LoggingConfig        `koanf:"logging"`
	Embeddings EmbeddingsConfig     `koanf:"embeddings"`
	Checks     []checks.CheckConfig `koanf:"checks"`
}

// ProjectConfig locates the code under remediation and remedyd's own state.
type ProjectConfig struct {
	// Root is the project directory checks run against.
	Root string `koanf:"root"`

	// CacheDir holds check caches, strategy memory, and baselines.
	// Default: ~/.cache/remedyd
	CacheDir string `koanf:"cache_dir"`
}

// RunnerConfig holds check scheduler policy.
type RunnerConfig struct {
	// MaxParallelChecks caps concurrently running checks.
	MaxParallelChecks int `koanf:"max_parallel_checks"`

	// FailFast stops a stage at the first non-passing check.
	FailFast bool `koanf:"fail_fast"`

	// RunFormattersFirst orders file-rewriting checks ahead of analyzers.
	RunFormattersFirst bool `koanf:"run_formatters_first"`

	// EnableCaching reuses passing check results within the TTL.
	EnableCaching bool `koanf:"enable_caching"`

	// CacheTTL bounds how long a cached result stays valid.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// DefaultTimeout applies to checks without their own timeout.
	DefaultTimeout time.Duration `koanf:"default_timeout"`

	// Incremental restricts checks to files changed since HEAD.
	Incremental bool `koanf:"incremental"`
}

// LoopConfig holds fix-verify loop policy.
type LoopConfig struct {
	// MaxIterations caps fix-and-reverify rounds per run.
	MaxIterations int `koanf:"max_iterations"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// EmbeddingsConfig selects the strategy-memory embedding provider.
type EmbeddingsConfig struct {
	// Provider is fastembed, hash, or empty for fastembed with fallback.
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	Model string `koanf:"model"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = "."
	}
	if cfg.Project.CacheDir == "" {
		cfg.Project.CacheDir = "~/.cache/remedyd"
	}

	if cfg.Runner.MaxParallelChecks == 0 {
		cfg.Runner.MaxParallelChecks = 4
	}
	if cfg.Runner.CacheTTL == 0 {
		cfg.Runner.CacheTTL = time.Hour
	}
	if cfg.Runner.DefaultTimeout == 0 {
		cfg.Runner.DefaultTimeout = 2 * time.Minute
	}

	if cfg.Loop.MaxIterations == 0 {
		cfg.Loop.MaxIterations = 3
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	for i := range cfg.Checks {
		if cfg.Checks[i].Stage == "" {
			cfg.Checks[i].Stage = checks.StageFast
		}
	}
}

// Validate checks the configuration for contradictions and bad values.
func (c *Config) Validate() error {
	if c.Runner.MaxParallelChecks < 1 {
		return fmt.Errorf("runner.max_parallel_checks must be at least 1, got %d", c.Runner.MaxParallelChecks)
	}
	if c.Runner.CacheTTL < 0 {
		return fmt.Errorf("runner.cache_ttl cannot be negative")
	}
	if c.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop.max_iterations must be at least 1, got %d", c.Loop.MaxIterations)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	seen := make(map[string]bool, len(c.Checks))
	for _, check := range c.Checks {
		if check.ID == "" {
			return fmt.Errorf("check without an id")
		}
		if seen[check.ID] {
			return fmt.Errorf("duplicate check id %q", check.ID)
		}
		seen[check.ID] = true

		switch check.Stage {
		case checks.StageFast, checks.StageComprehensive:
		default:
			return fmt.Errorf("check %q has unknown stage %q", check.ID, check.Stage)
		}
	}

	return nil
}

// ExpandedCacheDir resolves ~ in the cache directory.
func (c *Config) ExpandedCacheDir() (string, error) {
	return expandPath(c.Project.CacheDir)
}

// StrategyDir is where the fix-strategy memory lives.
func (c *Config) StrategyDir() (string, error) {
	dir, err := c.ExpandedCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "strategy"), nil
}

// BaselineDir is where performance baselines live.
func (c *Config) BaselineDir() (string, error) {
	dir, err := c.ExpandedCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "baselines"), nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
