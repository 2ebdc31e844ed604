// Package logging provides a minimal logging interface and adapters used
// throughout the execution engine.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) used for observability across the scheduler, checkpointer,
// and agent tool loop. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ContextLogger with contextual With* cloning and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	sched := scheduler.New(scheduler.Options{Checkpointer: checkpoint.NewInMemory(), Logger: logger})
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
