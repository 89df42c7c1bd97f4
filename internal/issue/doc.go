// Package issue defines the normalized finding and fix-outcome types shared
// by every remedyd component.
//
// An Issue is a single tool-agnostic static-analysis finding, produced by the
// fix-verify loop's extraction step from one check result. A FixResult is the
// outcome contract returned by a fixer agent, with a merge law for combining
// per-issue results into a batch aggregate.
//
// Both types are plain data: immutable once created, safe to copy, and free
// of behavior beyond construction and merging.
package issue
