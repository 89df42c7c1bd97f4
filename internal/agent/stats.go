package agent

import (
	"sync"
	"time"
)

// DelegationStats is a point-in-time snapshot of the delegator's running
// counters.
type DelegationStats struct {
	Total        int64            `json:"total"`
	Successful   int64            `json:"successful"`
	Failed       int64            `json:"failed"`
	TotalLatency time.Duration    `json:"total_latency"`
	CacheHits    int64            `json:"cache_hits"`
	CacheMisses  int64            `json:"cache_misses"`
	PerAgent     map[string]int64 `json:"per_agent"`
}

// AverageLatency is the mean latency over all delegations, zero when none
// have happened.
func (s DelegationStats) AverageLatency() time.Duration {
	if s.Total == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Total)
}

// CacheHitRate is hits over total cache lookups, zero when none have
// happened.
func (s DelegationStats) CacheHitRate() float64 {
	lookups := s.CacheHits + s.CacheMisses
	if lookups == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(lookups)
}

// statsRecorder accumulates delegation counters behind a mutex. Only the
// delegator mutates it; callers read snapshots.
type statsRecorder struct {
	mu    sync.Mutex
	stats DelegationStats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{stats: DelegationStats{PerAgent: make(map[string]int64)}}
}

func (r *statsRecorder) recordDelegation(agentName string, success bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Total++
	if success {
		r.stats.Successful++
	} else {
		r.stats.Failed++
	}
	r.stats.TotalLatency += latency
	r.stats.PerAgent[agentName]++
}

func (r *statsRecorder) recordCacheHit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CacheHits++
}

func (r *statsRecorder) recordCacheMiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CacheMisses++
}

// snapshot returns a copy safe for concurrent readers.
func (r *statsRecorder) snapshot() DelegationStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.stats
	out.PerAgent = make(map[string]int64, len(r.stats.PerAgent))
	for k, v := range r.stats.PerAgent {
		out.PerAgent[k] = v
	}
	return out
}
