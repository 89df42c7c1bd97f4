package issue

import "sort"

// FixResult is the outcome of one fixer invocation.
//
// The coordinator, not the fixer, enforces the on-disk invariant: when
// Success is true and FilesModified is non-empty, every listed path must
// actually differ from its pre-fix content.
type FixResult struct {
	// Success reports whether the fixer believes it resolved the issue.
	Success bool `json:"success"`

	// Confidence is the fixer's self-reported applicability score in [0,1].
	Confidence float64 `json:"confidence"`

	// FixesApplied lists human-readable descriptions of applied fixes.
	FixesApplied []string `json:"fixes_applied,omitempty"`

	// RemainingIssues lists unresolved sub-problems or error narratives.
	RemainingIssues []string `json:"remaining_issues,omitempty"`

	// Recommendations lists follow-up suggestions for a human.
	Recommendations []string `json:"recommendations,omitempty"`

	// FilesModified is the set of paths the fixer claims to have changed.
	FilesModified []string `json:"files_modified,omitempty"`
}

// Merge combines two fix results under the batch aggregation law:
// success is the conjunction, confidence the maximum, FixesApplied /
// RemainingIssues / FilesModified deduplicated set unions, and
// Recommendations plain concatenation.
func Merge(a, b FixResult) FixResult {
	return FixResult{
		Success:         a.Success && b.Success,
		Confidence:      maxFloat(a.Confidence, b.Confidence),
		FixesApplied:    unionStrings(a.FixesApplied, b.FixesApplied),
		RemainingIssues: unionStrings(a.RemainingIssues, b.RemainingIssues),
		Recommendations: append(append([]string{}, a.Recommendations...), b.Recommendations...),
		FilesModified:   unionStrings(a.FilesModified, b.FilesModified),
	}
}

// MergeAll folds a list of results. An empty list yields a successful
// zero-confidence result, the identity of the merge law.
func MergeAll(results []FixResult) FixResult {
	merged := FixResult{Success: true}
	for _, r := range results {
		merged = Merge(merged, r)
	}
	return merged
}

// unionStrings returns the deduplicated union of a and b. First occurrence
// wins; output is sorted for deterministic aggregates.
func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
