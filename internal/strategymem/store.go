package strategymem

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/embeddings"
	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/strategymem"

	// logFileName is the append-only attempt log inside the store directory.
	logFileName = "attempts.jsonl"

	// DefaultCollection is the chromem collection name for the index.
	DefaultCollection = "fix_strategies"

	// DefaultTopK bounds how many neighbors similarity queries consider.
	DefaultTopK = 5

	// DefaultMinSimilarity is the cosine floor below which a past attempt is
	// not considered the same kind of problem.
	DefaultMinSimilarity = 0.6
)

// Config holds configuration for the strategy store.
type Config struct {
	// Dir is the directory holding the attempt log. Required.
	Dir string
	// Collection overrides the chromem collection name.
	Collection string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
}

// SimilarIssue is one past attempt returned by a similarity query.
type SimilarIssue struct {
	Record     FixStrategyRecord
	Similarity float64
}

// StrategyRecommendation aggregates past attempts that look like the current
// issue into a suggested agent and strategy.
type StrategyRecommendation struct {
	Agent          string  `json:"agent"`
	Strategy       string  `json:"strategy"`
	SuccessCount   int     `json:"success_count"`
	Attempts       int     `json:"attempts"`
	MeanConfidence float64 `json:"mean_confidence"`
	TopSimilarity  float64 `json:"top_similarity"`
}

// Store is the fix-strategy memory. The JSONL log is the source of truth;
// the chromem index is derived from it and rebuilt on open.
type Store struct {
	config   Config
	provider embeddings.Provider
	logger   *zap.Logger
	tracer   trace.Tracer

	mu         sync.RWMutex
	closed     bool
	records    map[string]FixStrategyRecord
	db         *chromem.DB
	collection *chromem.Collection
	logFile    *os.File
}

// Open creates the store directory if needed, replays the attempt log, and
// rebuilds the similarity index.
func Open(cfg Config, provider embeddings.Provider, logger *zap.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("strategymem: directory is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("strategymem: embedding provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating strategy directory %s: %w", cfg.Dir, err)
	}

	logPath := filepath.Join(cfg.Dir, logFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening attempt log %s: %w", logPath, err)
	}

	s := &Store{
		config:   cfg,
		provider: provider,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		records:  make(map[string]FixStrategyRecord),
		db:       chromem.NewDB(),
		logFile:  f,
	}

	s.collection, err = s.db.GetOrCreateCollection(cfg.Collection, nil, s.embeddingFunc())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating collection %s: %w", cfg.Collection, err)
	}

	if err := s.replayLog(context.Background(), f); err != nil {
		f.Close()
		return nil, err
	}

	logger.Info("strategy store opened",
		zap.String("dir", cfg.Dir),
		zap.Int("records", len(s.records)),
	)
	return s, nil
}

func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.provider.EmbedQuery(ctx, text)
	}
}

// replayLog loads every attempt from the log into the record map and the
// index. Corrupt lines are skipped with a warning so one bad write does not
// brick the whole memory.
func (s *Store) replayLog(ctx context.Context, f *os.File) error {
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seeking attempt log: %w", err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec FixStrategyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.logger.Warn("skipping corrupt attempt log line",
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		if err := rec.Validate(); err != nil {
			s.logger.Warn("skipping invalid attempt record",
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		if err := s.index(ctx, &rec); err != nil {
			return fmt.Errorf("indexing record %s: %w", rec.ID, err)
		}
		s.records[rec.ID] = rec
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading attempt log: %w", err)
	}
	return nil
}

// index embeds the record if its stored embedding is missing or has the
// wrong dimension, then adds it to the chromem collection.
func (s *Store) index(ctx context.Context, rec *FixStrategyRecord) error {
	if len(rec.Embedding) != s.provider.Dimension() {
		vec, err := s.provider.EmbedQuery(ctx, rec.SignatureText())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEmbeddingMismatch, err)
		}
		rec.Embedding = vec
	}

	doc := chromem.Document{
		ID:      rec.ID,
		Content: rec.SignatureText(),
		Metadata: map[string]string{
			"kind":  string(rec.IssueKind),
			"agent": rec.AgentUsed,
		},
		Embedding: rec.Embedding,
	}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("adding document: %w", err)
	}
	return nil
}

// Record appends one fix attempt to the log and the index.
func (s *Store) Record(ctx context.Context, rec FixStrategyRecord) error {
	ctx, span := s.tracer.Start(ctx, "strategymem.record")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", string(rec.IssueKind)),
		attribute.String("agent", rec.AgentUsed),
		attribute.Bool("success", rec.Success),
	)

	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if err := s.index(ctx, &rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if _, err := s.logFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending to attempt log: %w", err)
	}

	s.records[rec.ID] = rec

	s.logger.Debug("recorded fix attempt",
		zap.String("id", rec.ID),
		zap.String("kind", string(rec.IssueKind)),
		zap.String("agent", rec.AgentUsed),
		zap.String("strategy", rec.Strategy),
		zap.Bool("success", rec.Success),
	)
	return nil
}

// Len returns the number of remembered attempts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// FindSimilarIssues returns past attempts of the same kind whose signatures
// score at least minSimilarity against the issue, best first, at most k.
func (s *Store) FindSimilarIssues(ctx context.Context, iss issue.Issue, k int, minSimilarity float64) ([]SimilarIssue, error) {
	ctx, span := s.tracer.Start(ctx, "strategymem.find_similar")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", string(iss.Kind)),
		attribute.Int("k", k),
	)

	if k <= 0 {
		k = DefaultTopK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.Query(ctx, IssueSignature(iss), k,
		map[string]string{"kind": string(iss.Kind)}, nil)
	if err != nil {
		return nil, fmt.Errorf("querying strategy index: %w", err)
	}

	similar := make([]SimilarIssue, 0, len(results))
	for _, r := range results {
		if float64(r.Similarity) < minSimilarity {
			continue
		}
		rec, ok := s.records[r.ID]
		if !ok {
			continue
		}
		similar = append(similar, SimilarIssue{Record: rec, Similarity: float64(r.Similarity)})
	}

	span.SetAttributes(attribute.Int("matches", len(similar)))
	return similar, nil
}

// RecommendStrategy aggregates similar past attempts into an agent and
// strategy suggestion. Candidates are grouped by agent and strategy, need at
// least one past success, and are ranked by success count then by mean
// confidence over their successes. ErrNoRecommendation means memory has
// nothing useful for this issue.
func (s *Store) RecommendStrategy(ctx context.Context, iss issue.Issue) (StrategyRecommendation, error) {
	similar, err := s.FindSimilarIssues(ctx, iss, DefaultTopK, DefaultMinSimilarity)
	if err != nil {
		return StrategyRecommendation{}, err
	}
	if len(similar) == 0 {
		return StrategyRecommendation{}, ErrNoRecommendation
	}

	type group struct {
		rec StrategyRecommendation
		sum float64
	}
	groups := make(map[string]*group)
	for _, sim := range similar {
		key := sim.Record.AgentUsed + "\x00" + sim.Record.Strategy
		g, ok := groups[key]
		if !ok {
			g = &group{rec: StrategyRecommendation{
				Agent:    sim.Record.AgentUsed,
				Strategy: sim.Record.Strategy,
			}}
			groups[key] = g
		}
		g.rec.Attempts++
		if sim.Record.Success {
			g.rec.SuccessCount++
			g.sum += sim.Record.Confidence
		}
		if sim.Similarity > g.rec.TopSimilarity {
			g.rec.TopSimilarity = sim.Similarity
		}
	}

	candidates := make([]StrategyRecommendation, 0, len(groups))
	for _, g := range groups {
		if g.rec.SuccessCount == 0 {
			continue
		}
		g.rec.MeanConfidence = g.sum / float64(g.rec.SuccessCount)
		candidates = append(candidates, g.rec)
	}
	if len(candidates) == 0 {
		return StrategyRecommendation{}, ErrNoRecommendation
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].SuccessCount != candidates[j].SuccessCount {
			return candidates[i].SuccessCount > candidates[j].SuccessCount
		}
		return candidates[i].MeanConfidence > candidates[j].MeanConfidence
	})

	best := candidates[0]
	s.logger.Debug("strategy recommendation",
		zap.String("kind", string(iss.Kind)),
		zap.String("agent", best.Agent),
		zap.String("strategy", best.Strategy),
		zap.Int("success_count", best.SuccessCount),
	)
	return best, nil
}

// Close flushes and closes the attempt log. The store is unusable after.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.logFile.Close()
}
