package main

import (
	"github.com/spf13/cobra"
)

// statsCmd prints delegation counters from a dry pipeline build. Counters
// are per-process, so this is mostly useful after fix in scripts that keep
// the process alive, and as a config smoke test otherwise.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show delegation statistics and validate configuration",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	orch, logger, err := newPipeline()
	if err != nil {
		return err
	}
	defer orch.Close()
	defer logger.Sync() //nolint:errcheck

	stats := orch.Stats()
	if jsonOutput {
		return printJSON(cmd, stats)
	}

	cmd.Printf("Delegations: %d (%d succeeded, %d failed)\n", stats.Total, stats.Successful, stats.Failed)
	cmd.Printf("Cache:       %d hits, %d misses (%.0f%% hit rate)\n",
		stats.CacheHits, stats.CacheMisses, stats.CacheHitRate()*100)
	cmd.Printf("Avg latency: %s\n", stats.AverageLatency())
	for name, count := range stats.PerAgent {
		cmd.Printf("  %-20s %d\n", name, count)
	}
	return nil
}
