// Package tools holds the check adapters that wrap real developer tools.
//
// Each adapter knows one tool's command line and output grammar and turns
// both into the neutral CheckResult the scheduler consumes. Subprocess
// execution goes through a CommandRunner so adapters stay testable without
// the tools installed.
package tools
