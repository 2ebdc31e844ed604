package compiler

import (
	"fmt"

	"github.com/flowstack/orchestrator/core"
)

// StructuralError reports a §4.1 step-1 structural violation: a dangling
// reference, a duplicate id, or a node-kind shape rule (router/parallel/
// join arity). Kind is a stable machine-checkable tag; Msg is the
// human-readable detail carried into core.ErrorDetail.
type StructuralError struct {
	Kind string
	Msg  string
}

func (e *StructuralError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

// CycleError reports a step-3 unconditional-cycle violation, carrying the
// offending path for diagnostics.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("unconditional cycle detected: %v", e.Path)
}

// AsCompilationError wraps any compiler-internal error into the taxonomy's
// CompilationError kind for callers that only want to branch on
// core.ErrorKind.
func AsCompilationError(err error) *core.ErrorDetail {
	if err == nil {
		return nil
	}
	return core.NewError(core.ErrorKindCompilation, err.Error(), err)
}
