// Package logger builds the process-wide slog JSON logger from configuration
// and carries request-scoped loggers, tagged with a trace ID, through
// context.Context.
package logger
