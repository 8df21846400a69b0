package tools

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dileep-u-k/llm-agent/internal/errorsx"
)

const tracerName = "github.com/dileep-u-k/llm-agent/internal/tools"

// Invoker validates and executes tool calls against a registry.
//
// Every failure is returned inside the Result, never as a panic or a Go
// error, so the agent loop can hand it back to the model.
type Invoker struct {
	registry  *Registry
	validator Validator
	tracer    trace.Tracer
}

func NewInvoker(registry *Registry) *Invoker {
	return &Invoker{
		registry:  registry,
		validator: SchemaValidator{},
		tracer:    otel.Tracer(tracerName),
	}
}

// WithValidator replaces the schema validator.
func (inv *Invoker) WithValidator(v Validator) *Invoker {
	inv.validator = v
	return inv
}

// Invoke runs one tool call.
func (inv *Invoker) Invoke(ctx context.Context, call *ToolCall) Result {
	ctx, span := inv.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(
		attribute.String("tool.name", call.Function.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	start := time.Now()
	result := inv.invoke(ctx, call)
	if result.Failure != nil {
		span.SetAttributes(attribute.String("tool.failure_kind", string(result.Failure.Kind)))
		span.SetStatus(codes.Error, result.Failure.Message)
		log.Printf("tool %s (ID: %s) failed after %s: %v", call.Function.Name, call.ID, time.Since(start), result.Failure)
	}
	return result
}

func (inv *Invoker) invoke(ctx context.Context, call *ToolCall) Result {
	name := call.Function.Name
	tool, ok := inv.registry.Lookup(name)
	if !ok {
		return ErrorResult(call, errorsx.KindUnknownTool, "tool %q is not registered", name)
	}

	args, err := call.DecodeArguments()
	if err != nil {
		return ErrorResult(call, errorsx.KindInvalidArguments, "%v", err)
	}
	if err := inv.validator.Validate(args, tool.Definition().Function.Parameters); err != nil {
		return ErrorResult(call, errorsx.KindInvalidArguments, "%v", err)
	}

	output, err := inv.execute(ctx, tool, args)
	if err != nil {
		return ErrorResult(call, errorsx.KindToolExecutionFailed, "%v", err)
	}
	return NewResult(call, output)
}

// execute runs the tool inside a fresh Scope. The scope is closed on every
// exit path, including a panic inside the tool, which is converted to an error.
func (inv *Invoker) execute(ctx context.Context, tool ToolExecutor, args map[string]any) (output any, err error) {
	scope := &Scope{}
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("tool panicked: %v", r)
		}
		if cerr := scope.Close(); cerr != nil {
			log.Printf("Warning: releasing resources of tool %s: %v", tool.Definition().Function.Name, cerr)
		}
	}()
	return tool.Execute(WithScope(ctx, scope), args)
}
