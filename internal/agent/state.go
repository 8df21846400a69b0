package agent

import (
	"github.com/dileep-u-k/llm-agent/internal/api"
	"github.com/dileep-u-k/llm-agent/internal/errorsx"
	"github.com/dileep-u-k/llm-agent/internal/llm"
)

// State is the position of a run in its control cycle.
type State int

const (
	AwaitingModel State = iota
	ExecutingTools
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingModel:
		return "awaiting_model"
	case ExecutingTools:
		return "executing_tools"
	case Done:
		return "done"
	}
	return "unknown"
}

// Result is the outcome of one run. When Run also returns an error, Text is
// empty and Messages holds the transcript up to the failure.
type Result struct {
	RunID    string
	Text     string
	Messages []llm.Message
	Usage    api.Usage
	// ModelCalls counts requests sent to the model, including a rate-limit retry.
	ModelCalls int
	// Iterations counts completed model round trips.
	Iterations      int
	ToolInvocations int
}

// run is the mutable state of a single invocation. It is never shared.
type run struct {
	id     string
	state  State
	result Result
	err    *errorsx.Error
}

func newRun(id string) *run {
	return &run{id: id, state: AwaitingModel, result: Result{RunID: id}}
}

// append only ever grows the transcript.
func (r *run) append(msg llm.Message) {
	r.result.Messages = append(r.result.Messages, msg)
}

// finish moves the run to Done. Later calls are ignored so the outcome is
// decided exactly once.
func (r *run) finish(text string, err *errorsx.Error) {
	if r.state == Done {
		return
	}
	r.state = Done
	r.err = err
	if err == nil {
		r.result.Text = text
	}
}

// outcome returns the result and, for failed runs, the classified error.
func (r *run) outcome() (*Result, error) {
	res := r.result
	if r.err != nil {
		return &res, r.err
	}
	return &res, nil
}
