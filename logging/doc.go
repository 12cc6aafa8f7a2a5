// Package logging defines the minimal structured logging interface used
// across the adviser engine, with an slog-backed default and a no-op
// implementation for tests and embedders that bring their own logger.
package logging
