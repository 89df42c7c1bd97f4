// Package orchestrator wires configuration, tool adapters, fixer agents,
// strategy memory, and the fix loop into one runnable remediation pipeline.
// It is the composition root the CLI talks to.
package orchestrator
