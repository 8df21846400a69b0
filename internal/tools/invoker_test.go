package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dileep-u-k/llm-agent/internal/errorsx"
)

type closeRecorder struct {
	closed *[]string
	name   string
}

func (c closeRecorder) Close() error {
	*c.closed = append(*c.closed, c.name)
	return nil
}

var echoSchema = JSONSchema{
	Type:       "object",
	Properties: map[string]*JSONSchema{"text": {Type: "string"}},
	Required:   []string{"text"},
}

func call(name, args string) *ToolCall {
	return &ToolCall{ID: "call-1", Type: ToolTypeFunction, Function: ToolCallFunction{Name: name, Arguments: args}}
}

func TestInvoker_Success(t *testing.T) {
	reg, _ := RegistryOf(&mockTool{name: "echo", schema: echoSchema, execFn: func(_ context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	}})
	res := NewInvoker(reg).Invoke(context.Background(), call("echo", `{"text":"hi"}`))
	if res.IsError() {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	if res.Content() != "hi" || res.ToolCallID != "call-1" || res.Name != "echo" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestInvoker_UnknownTool(t *testing.T) {
	res := NewInvoker(NewRegistry()).Invoke(context.Background(), call("file_delete", `{}`))
	if !res.IsError() || res.Failure.Kind != errorsx.KindUnknownTool {
		t.Fatalf("expected unknown_tool, got %+v", res)
	}
	if !strings.Contains(res.Content(), "unknown_tool") {
		t.Errorf("content should name the kind: %q", res.Content())
	}
}

func TestInvoker_InvalidArgumentsNeverExecutes(t *testing.T) {
	executed := false
	reg, _ := RegistryOf(&mockTool{name: "echo", schema: echoSchema, execFn: func(context.Context, map[string]any) (any, error) {
		executed = true
		return nil, nil
	}})
	inv := NewInvoker(reg)

	for _, args := range []string{`{}`, `{"text": 5}`, `not json`, `[1,2]`, `{"text":"a","extra":1}`} {
		res := inv.Invoke(context.Background(), call("echo", args))
		if !res.IsError() || res.Failure.Kind != errorsx.KindInvalidArguments {
			t.Errorf("args %s: expected invalid_arguments, got %+v", args, res)
		}
	}
	if executed {
		t.Fatal("tool must not run with unchecked input")
	}
}

func TestInvoker_ExecutionErrorIsClassified(t *testing.T) {
	reg, _ := RegistryOf(&mockTool{name: "boom", execFn: func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("disk on fire")
	}})
	res := NewInvoker(reg).Invoke(context.Background(), call("boom", ""))
	if !res.IsError() || res.Failure.Kind != errorsx.KindToolExecutionFailed {
		t.Fatalf("expected tool_execution_failed, got %+v", res)
	}
	if !strings.Contains(res.Failure.Message, "disk on fire") {
		t.Errorf("original message lost: %q", res.Failure.Message)
	}
}

func TestInvoker_PanicReleasesScope(t *testing.T) {
	var closed []string
	reg, _ := RegistryOf(&mockTool{name: "panics", execFn: func(ctx context.Context, _ map[string]any) (any, error) {
		scope, done := EnterScope(ctx)
		defer done()
		scope.Track(closeRecorder{closed: &closed, name: "first"})
		scope.Track(closeRecorder{closed: &closed, name: "second"})
		panic("index out of range")
	}})

	res := NewInvoker(reg).Invoke(context.Background(), call("panics", "{}"))
	if !res.IsError() || res.Failure.Kind != errorsx.KindToolExecutionFailed {
		t.Fatalf("expected tool_execution_failed, got %+v", res)
	}
	if !strings.Contains(res.Failure.Message, "index out of range") {
		t.Errorf("panic message lost: %q", res.Failure.Message)
	}
	if len(closed) != 2 || closed[0] != "second" || closed[1] != "first" {
		t.Fatalf("expected LIFO release of both resources, got %v", closed)
	}
}

func TestInvoker_ScopeReleasedOnSuccess(t *testing.T) {
	var closed []string
	reg, _ := RegistryOf(&mockTool{name: "res", execFn: func(ctx context.Context, _ map[string]any) (any, error) {
		scope, done := EnterScope(ctx)
		defer done()
		scope.Track(closeRecorder{closed: &closed, name: "handle"})
		if len(closed) != 0 {
			t.Error("resource released before tool returned")
		}
		return "done", nil
	}})
	NewInvoker(reg).Invoke(context.Background(), call("res", "{}"))
	if len(closed) != 1 {
		t.Fatalf("expected resource released once, got %v", closed)
	}
}

func TestInvoker_RepeatedCallsAreIndependent(t *testing.T) {
	n := 0
	reg, _ := RegistryOf(&mockTool{name: "counter", execFn: func(context.Context, map[string]any) (any, error) {
		n++
		return n, nil
	}})
	inv := NewInvoker(reg)
	first := inv.Invoke(context.Background(), call("counter", "{}"))
	second := inv.Invoke(context.Background(), call("counter", "{}"))
	if first.Content() != "1" || second.Content() != "2" {
		t.Fatalf("expected two executions, got %q and %q", first.Content(), second.Content())
	}
}
