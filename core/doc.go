// Package core provides the foundational domain types shared across the
// execution engine: conversational content parts, the state model that
// flows through graph nodes, execution/step records, and the error
// taxonomy used to classify node and loop failures.
//
// The package intentionally keeps orchestration concerns (scheduling,
// checkpointing, compilation) out of scope, exposing only the plain value
// types those layers share.
package core
