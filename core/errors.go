package core

import "fmt"

// ErrorKind is the taxonomy of error classes a node, loop, or compiler
// stage can produce. Kind values are stable strings so they can be
// persisted in a Step or Execution record and compared across restarts.
type ErrorKind string

const (
	ErrorKindCompilation       ErrorKind = "CompilationError"
	ErrorKindNodeTimeout       ErrorKind = "NodeTimeout"
	ErrorKindExecutionTimeout  ErrorKind = "ExecutionTimeout"
	ErrorKindCancelled         ErrorKind = "Cancelled"
	ErrorKindTool              ErrorKind = "ToolError"
	ErrorKindToolLoopExhausted ErrorKind = "ToolLoopBudgetExhausted"
	ErrorKindSchemaValidation  ErrorKind = "SchemaValidationError"
	ErrorKindProvider          ErrorKind = "ProviderError"
	ErrorKindCheckpoint        ErrorKind = "CheckpointError"
	// ErrorKindJoinFailed marks a JOIN node's failure-policy trip (§4.2):
	// the join itself didn't time out or get cancelled, its declared
	// failure policy judged too many predecessors failed.
	ErrorKindJoinFailed ErrorKind = "JoinFailurePolicy"
)

// ErrorDetail is the persisted shape of an engine error: a stable kind
// plus a human-readable detail and an optional retry hint. It implements
// error and unwraps to the underlying cause when one was captured, so
// callers can branch with errors.As instead of string matching.
type ErrorDetail struct {
	Kind      ErrorKind
	Detail    string
	Retryable bool
	Cause     error
}

func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As.
func (e *ErrorDetail) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError constructs an ErrorDetail of the given kind.
func NewError(kind ErrorKind, detail string, cause error) *ErrorDetail {
	return &ErrorDetail{Kind: kind, Detail: detail, Cause: cause}
}

// NewRetryableError constructs an ErrorDetail marked retryable (used by
// ProviderError on idempotent failures).
func NewRetryableError(kind ErrorKind, detail string, cause error) *ErrorDetail {
	return &ErrorDetail{Kind: kind, Detail: detail, Cause: cause, Retryable: true}
}
