// Package logging builds the zap logger remedyd components share.
//
// Construction is config-driven: level and encoding come from the logging
// section of the config file. Request-scoped fields like the run ID travel
// through context via WithFields and are attached by loggers obtained from
// FromContext, so every log line of one remediation run can be correlated.
package logging
