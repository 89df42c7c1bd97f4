// Package checks runs configured static-analysis checks with bounded
// parallelism, result caching, and fail-fast semantics.
//
// A check is described by a CheckConfig and executed by an Adapter looked up
// from an explicit Registry by name. The Scheduler owns execution policy:
// formatter-first ordering, a counting semaphore that caps concurrently
// outstanding adapter calls, a TTL result cache, one retry for checks that
// opt in, and a race-and-cancel fail-fast mode where the first completed
// non-success result wins and all in-flight checks are cancelled.
//
// Adapter faults never propagate: a panic or error inside an adapter is
// converted to a CheckResult with StatusError carrying the fault text.
package checks
