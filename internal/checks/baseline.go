package checks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Baseline is a stored prior benchmark result used for regression
// comparison.
type Baseline struct {
	// Name identifies the benchmark.
	Name string `json:"name"`

	// MedianSeconds is the recorded median runtime.
	MedianSeconds float64 `json:"median_seconds"`

	// RecordedAt is when the baseline was captured.
	RecordedAt time.Time `json:"recorded_at"`
}

// BaselineComparison is the outcome of comparing a current benchmark median
// against a stored baseline.
type BaselineComparison struct {
	// ChangePercent is the relative change, in percent, of current over
	// baseline. Positive means slower.
	ChangePercent float64 `json:"change_percent"`

	// IsRegression is true when the slowdown exceeds the threshold.
	IsRegression bool `json:"is_regression"`

	// IsImprovement is true when the speedup exceeds the threshold.
	IsImprovement bool `json:"is_improvement"`
}

// CompareBaseline compares current against baseline medians. The threshold
// is a fraction: 0.15 flags changes beyond ±15%.
func CompareBaseline(baselineMedian, currentMedian, threshold float64) (BaselineComparison, error) {
	if baselineMedian <= 0 {
		return BaselineComparison{}, fmt.Errorf("baseline median must be positive, got %v", baselineMedian)
	}

	change := (currentMedian - baselineMedian) / baselineMedian * 100
	return BaselineComparison{
		ChangePercent: change,
		IsRegression:  change > threshold*100,
		IsImprovement: change < -threshold*100,
	}, nil
}

// BaselineStore persists benchmark baselines as JSON files in a directory,
// one file per benchmark name.
type BaselineStore struct {
	dir string
}

// NewBaselineStore creates a store rooted at dir, creating it if needed.
func NewBaselineStore(dir string) (*BaselineStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("baseline directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating baseline directory: %w", err)
	}
	return &BaselineStore{dir: dir}, nil
}

// Save records a baseline, overwriting any prior one of the same name.
func (s *BaselineStore) Save(b Baseline) error {
	if b.Name == "" {
		return fmt.Errorf("baseline name is required")
	}
	if b.RecordedAt.IsZero() {
		b.RecordedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}

	// Write atomically.
	target := s.path(b.Name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing baseline: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming baseline: %w", err)
	}
	return nil
}

// Load reads the baseline stored under name.
func (s *BaselineStore) Load(name string) (Baseline, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return Baseline{}, fmt.Errorf("reading baseline %s: %w", name, err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return Baseline{}, fmt.Errorf("decoding baseline %s: %w", name, err)
	}
	return b, nil
}

func (s *BaselineStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
