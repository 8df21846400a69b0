// Package errorsx defines the closed set of failure kinds an agent run can
// produce and a small error type that carries one of them.
//
// Every error that leaves the agent runtime is an *Error, so callers can
// always switch on a Kind instead of matching message strings.
package errorsx

// Kind is a short machine-readable failure classification.
type Kind string

const (
	KindUnknown Kind = "unknown"

	// Model client failures. These terminate a run.
	KindModelUnavailable   Kind = "model_unavailable"
	KindRateLimited        Kind = "rate_limited"
	KindTokenLimitExceeded Kind = "token_limit_exceeded"

	// Tool failures. These are reported back to the model as tool results.
	KindUnknownTool         Kind = "unknown_tool"
	KindInvalidArguments    Kind = "invalid_arguments"
	KindToolExecutionFailed Kind = "tool_execution_failed"

	// Registration and loop control.
	KindDuplicateTool          Kind = "duplicate_tool"
	KindIterationLimitExceeded Kind = "iteration_limit_exceeded"
	KindCanceled               Kind = "canceled"
)

// IsToolKind reports whether k is recovered locally by feeding it back to the
// model rather than ending the run.
func (k Kind) IsToolKind() bool {
	switch k {
	case KindUnknownTool, KindInvalidArguments, KindToolExecutionFailed:
		return true
	}
	return false
}
