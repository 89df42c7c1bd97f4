// Package agent routes normalized issues to fixer agents and verifies what
// the agents claim to have done.
//
// A fixer agent is a strategy that can attempt to resolve issues of certain
// kinds. Agents self-report applicability via CanHandle; the Coordinator
// selects the highest-scoring agent above a fixed acceptance threshold,
// invokes it under an error boundary that converts panics and errors into
// failed FixResults, and cross-checks claimed file modifications against the
// filesystem (lie detection) before trusting a success.
//
// The Delegator is a caching, metrics-keeping façade over the Coordinator
// for targeted type-specific delegation and batch fan-out. Only confident
// successes are cached so failed attempts stay retryable.
package agent
