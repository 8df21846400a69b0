package tools

import (
	"encoding/json"
	"fmt"

	"github.com/dileep-u-k/llm-agent/internal/errorsx"
)

// Result is the outcome of one tool call: a success payload or a failure.
type Result struct {
	ToolCallID string
	Name       string
	Output     any
	Failure    *errorsx.Error
}

func NewResult(call *ToolCall, output any) Result {
	return Result{ToolCallID: call.ID, Name: call.Function.Name, Output: output}
}

func ErrorResult(call *ToolCall, kind errorsx.Kind, format string, args ...any) Result {
	return Result{
		ToolCallID: call.ID,
		Name:       call.Function.Name,
		Failure:    errorsx.New(kind, format, args...),
	}
}

// IsError reports whether the call failed.
func (r Result) IsError() bool {
	return r.Failure != nil
}

// Content renders the result as the text sent back to the model. Strings
// are passed through; other payloads are JSON encoded.
func (r Result) Content() string {
	if r.Failure != nil {
		return fmt.Sprintf("Error [%s]: %s", r.Failure.Kind, r.Failure.Message)
	}
	switch v := r.Output.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	raw, err := json.Marshal(r.Output)
	if err != nil {
		return fmt.Sprintf("%v", r.Output)
	}
	return string(raw)
}
