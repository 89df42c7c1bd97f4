package fixloop

import (
	"regexp"

	"github.com/fyrsmithlabs/remedyd/internal/checks"
	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

// Extract converts non-passing check results into normalized issues.
// Adapter-parsed findings are preferred; a failed result with no findings
// still yields one synthesized issue from the result message, so a tool
// whose output the adapter could not parse is never silently dropped.
func Extract(results []checks.CheckResult, configs []checks.CheckConfig) []issue.Issue {
	kinds := make(map[string]issue.Kind, len(configs))
	for _, cfg := range configs {
		kinds[cfg.ID] = cfg.Kind
	}

	var issues []issue.Issue
	for _, result := range results {
		if result.Passed() {
			continue
		}
		issues = append(issues, extractOne(result, kinds[result.CheckID])...)
	}
	return issues
}

func extractOne(result checks.CheckResult, defaultKind issue.Kind) []issue.Issue {
	if defaultKind == "" {
		defaultKind = issue.KindOther
	}

	if len(result.Findings) == 0 {
		message := result.Message
		if message == "" {
			message = "check " + result.CheckID + " failed without diagnostics"
		}
		iss := issue.New(defaultKind, severityForStatus(result.Status), message)
		iss.OriginStage = result.CheckID
		return []issue.Issue{iss}
	}

	issues := make([]issue.Issue, 0, len(result.Findings))
	for _, f := range result.Findings {
		kind := f.Kind
		if kind == "" {
			kind = defaultKind
		}
		severity := f.Severity
		if severity == "" {
			severity = severityForStatus(result.Status)
		}

		iss := issue.New(kind, severity, f.Message)
		iss.FilePath = f.FilePath
		iss.LineNumber = f.Line
		iss.Details = f.Details
		iss.OriginStage = result.CheckID
		issues = append(issues, iss)
	}
	return issues
}

func severityForStatus(status checks.Status) issue.Severity {
	switch status {
	case checks.StatusError:
		return issue.SeverityCritical
	case checks.StatusWarning:
		return issue.SeverityMedium
	default:
		return issue.SeverityHigh
	}
}

// moduleResolutionPattern recognizes dependency failures that mean the build
// environment itself is broken rather than the code under check.
var moduleResolutionPattern = regexp.MustCompile(
	`(?i)cannot find module|no required module provides|missing go\.sum entry|unresolved import|module .+ not found|could not import`)

// IsEnvironmentFault reports whether the issue set contains a failure no
// code fix can repair: unresolved imports, or dependency errors that smell
// like module resolution.
func IsEnvironmentFault(issues []issue.Issue) (issue.Issue, bool) {
	for _, iss := range issues {
		if iss.IsEnvironmentFault() {
			return iss, true
		}
		if iss.Kind == issue.KindDependency && moduleResolutionPattern.MatchString(iss.Message) {
			return iss, true
		}
	}
	return issue.Issue{}, false
}
