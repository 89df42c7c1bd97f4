// Package fixloop drives the detect, delegate, reverify cycle.
//
// One iteration extracts normalized issues from failed check results, routes
// them to fixer agents, and reruns the checks to see what actually got
// fixed. The loop stops as soon as a run comes back clean, when the
// iteration budget is spent, or immediately when the failures indicate a
// broken environment that no code fix can repair.
package fixloop
