// Package testutil contains fixture builders used across this module's
// tests to reduce boilerplate: a fluent GraphDescription builder, a stub
// DefinitionResolver, and a scripted Model for deterministic tool-call
// sequences. Grounded on internal/testutil/doc.go and event_builder.go's
// fluent-builder idiom. Intentionally minimal and dependency-free beyond
// this module's own packages; not intended for production usage.
package testutil
