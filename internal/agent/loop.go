// Package agent runs the tool-augmented completion loop: ask the model,
// execute the tools it requests, feed the results back, and stop at a final
// answer, a model failure or the iteration bound.
package agent

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dileep-u-k/llm-agent/internal/errorsx"
	"github.com/dileep-u-k/llm-agent/internal/llm"
	"github.com/dileep-u-k/llm-agent/internal/tools"
)

const tracerName = "github.com/dileep-u-k/llm-agent/internal/agent"

const (
	DefaultMaxIterations     = 10
	DefaultRateLimitDelay    = time.Second
	DefaultMaxRateLimitDelay = 30 * time.Second
)

// Agent drives runs against one model client. It holds no per-run state, so
// a single Agent may serve concurrent runs.
type Agent struct {
	client            llm.ModelClient
	maxIterations     int
	systemPrompt      string
	rateLimitDelay    time.Duration
	maxRateLimitDelay time.Duration
	profiler          *llm.Profiler
	tracer            trace.Tracer
	sleep             func(context.Context, time.Duration) error
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxIterations bounds the number of model round trips per run.
// Values below 1 keep the default.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithSystemPrompt seeds every run with a system message.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

// WithRateLimitBackoff sets the delay used before the single rate-limit
// retry when the provider gives no hint, and the cap applied to any hint.
func WithRateLimitBackoff(fallback, ceiling time.Duration) Option {
	return func(a *Agent) {
		if fallback > 0 {
			a.rateLimitDelay = fallback
		}
		if ceiling > 0 {
			a.maxRateLimitDelay = ceiling
		}
	}
}

// WithProfiler records each run's outcome against the model's profile.
func WithProfiler(p *llm.Profiler) Option {
	return func(a *Agent) { a.profiler = p }
}

func New(client llm.ModelClient, opts ...Option) *Agent {
	a := &Agent{
		client:            client,
		maxIterations:     DefaultMaxIterations,
		rateLimitDelay:    DefaultRateLimitDelay,
		maxRateLimitDelay: DefaultMaxRateLimitDelay,
		tracer:            otel.Tracer(tracerName),
		sleep:             sleepContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run registers toolset in a fresh registry and runs prompt against it.
// A duplicate tool name fails the run before the model is called; the
// returned Result is still non-nil and carries the run id.
func (a *Agent) Run(ctx context.Context, prompt string, toolset []tools.ToolExecutor, cfg *llm.ModelConfig) (*Result, error) {
	reg, err := tools.RegistryOf(toolset...)
	if err != nil {
		r := newRun(uuid.NewString())
		r.finish("", errorsx.Wrap(err, errorsx.KindDuplicateTool))
		log.Printf("run %s rejected: %v", r.id, r.err)
		return r.outcome()
	}
	return a.RunRegistry(ctx, prompt, reg, cfg)
}

// RunRegistry runs prompt with the tools of reg. The registry is only read,
// so several runs may share it.
//
// cfg is handed to the model client as is. The loop reads only cfg.Model,
// and only to label spans and profiler records.
//
// The returned Result is never nil. The returned error, if any, is always an
// *errorsx.Error.
func (a *Agent) RunRegistry(ctx context.Context, prompt string, reg *tools.Registry, cfg *llm.ModelConfig) (*Result, error) {
	r := newRun(uuid.NewString())
	modelID := ""
	if cfg != nil {
		modelID = cfg.Model // telemetry only
	}

	ctx, span := a.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.run_id", r.id),
		attribute.String("gen_ai.request.model", modelID),
		attribute.Int("agent.max_iterations", a.maxIterations),
	))
	defer span.End()

	start := time.Now()
	a.loop(ctx, r, prompt, reg, cfg)
	res, err := r.outcome()

	span.SetAttributes(
		attribute.Int("agent.model_calls", res.ModelCalls),
		attribute.Int("agent.tool_invocations", res.ToolInvocations),
		attribute.Int("gen_ai.usage.input_tokens", res.Usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", res.Usage.CompletionTokens),
	)
	if r.err != nil {
		span.SetAttributes(attribute.String("agent.error_kind", string(r.err.Kind)))
		span.SetStatus(codes.Error, r.err.Error())
		log.Printf("run %s failed after %d model call(s): %v", r.id, res.ModelCalls, r.err)
		a.profiler.RecordFailure(ctx, modelID, r.err.Kind)
	} else {
		log.Printf("run %s finished in %s: %d model call(s), %d tool invocation(s)", r.id, time.Since(start).Round(time.Millisecond), res.ModelCalls, res.ToolInvocations)
		a.profiler.RecordSuccess(ctx, modelID, time.Since(start), res.Usage)
	}
	return res, err
}

func (a *Agent) loop(ctx context.Context, r *run, prompt string, reg *tools.Registry, cfg *llm.ModelConfig) {
	if a.systemPrompt != "" {
		r.append(llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	}
	r.append(llm.Message{Role: llm.RoleUser, Content: prompt})

	invoker := tools.NewInvoker(reg)
	definitions := reg.Definitions()

	for r.state != Done {
		switch r.state {
		case AwaitingModel:
			if r.result.Iterations >= a.maxIterations {
				r.finish("", errorsx.New(errorsx.KindIterationLimitExceeded, "no final answer after %d model round trips", r.result.Iterations))
				continue
			}
			completion, err := a.complete(ctx, r, cfg, definitions)
			if err != nil {
				r.finish("", err)
				continue
			}
			r.result.Iterations++
			r.result.Usage.Add(completion.Usage)

			r.append(llm.Message{Role: llm.RoleAssistant, Content: completion.Text, ToolCalls: completion.ToolCalls})
			if completion.Kind() == llm.FinalText {
				r.finish(completion.Text, nil)
				continue
			}
			r.state = ExecutingTools

		case ExecutingTools:
			last := r.result.Messages[len(r.result.Messages)-1]
			if err := a.executeTools(ctx, r, invoker, last.ToolCalls); err != nil {
				r.finish("", err)
				continue
			}
			r.state = AwaitingModel
		}
	}
}

// executeTools runs the requested calls one at a time in request order and
// appends one tool message per call. Tool failures become error results;
// only cancellation stops the batch.
func (a *Agent) executeTools(ctx context.Context, r *run, invoker *tools.Invoker, calls []*tools.ToolCall) *errorsx.Error {
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return &errorsx.Error{Kind: errorsx.KindCanceled, Message: "run canceled before tool " + call.Function.Name, Err: err}
		}
		log.Printf("Executing tool: %s (ID: %s) with args: %s", call.Function.Name, call.ID, call.Function.Arguments)
		res := invoker.Invoke(ctx, call)
		r.result.ToolInvocations++
		r.append(llm.Message{
			Role:       llm.RoleTool,
			Content:    res.Content(),
			ToolCallID: res.ToolCallID,
			ToolName:   res.Name,
			IsError:    res.IsError(),
		})
	}
	return nil
}

// complete asks the model for the next step. A rate-limited request is
// retried once after the hinted delay; a second rate limit is surfaced.
func (a *Agent) complete(ctx context.Context, r *run, cfg *llm.ModelConfig, definitions []tools.Tool) (*llm.Completion, *errorsx.Error) {
	completion, err := a.callModel(ctx, r, cfg, definitions)
	if err == nil || err.Kind != errorsx.KindRateLimited {
		return completion, err
	}

	delay := a.retryDelay(err)
	log.Printf("run %s rate limited, retrying once in %s", r.id, delay)
	if serr := a.sleep(ctx, delay); serr != nil {
		return nil, &errorsx.Error{Kind: errorsx.KindCanceled, Message: "run canceled while waiting out a rate limit", Err: serr}
	}
	return a.callModel(ctx, r, cfg, definitions)
}

func (a *Agent) callModel(ctx context.Context, r *run, cfg *llm.ModelConfig, definitions []tools.Tool) (*llm.Completion, *errorsx.Error) {
	if err := ctx.Err(); err != nil {
		return nil, &errorsx.Error{Kind: errorsx.KindCanceled, Message: "run canceled before model call", Err: err}
	}

	ctx, span := a.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.Int("agent.model_call", r.result.ModelCalls+1),
		attribute.Int("agent.message_count", len(r.result.Messages)),
	))
	defer span.End()

	r.result.ModelCalls++
	completion, err := a.client.Complete(ctx, r.result.Messages, cfg, definitions)
	if err != nil {
		classified := classifyModelError(err)
		span.SetAttributes(attribute.String("agent.error_kind", string(classified.Kind)))
		span.SetStatus(codes.Error, classified.Error())
		return nil, classified
	}
	if completion == nil {
		return nil, errorsx.New(errorsx.KindModelUnavailable, "model returned no completion")
	}
	span.SetAttributes(
		attribute.String("gen_ai.response.finish_reason", completion.StopReason),
		attribute.Int("agent.tool_calls", len(completion.ToolCalls)),
	)
	return completion, nil
}

// classifyModelError guarantees a model failure carries a kind. Errors a
// client did not classify are treated as the model being unavailable.
func classifyModelError(err error) *errorsx.Error {
	var e *errorsx.Error
	if errors.As(err, &e) {
		return e
	}
	if errorsx.KindOf(err) == errorsx.KindCanceled {
		return &errorsx.Error{Kind: errorsx.KindCanceled, Err: err}
	}
	return &errorsx.Error{Kind: errorsx.KindModelUnavailable, Err: err}
}

func (a *Agent) retryDelay(err error) time.Duration {
	delay, ok := errorsx.RetryAfterOf(err)
	if !ok {
		delay = a.rateLimitDelay
	}
	if delay > a.maxRateLimitDelay {
		delay = a.maxRateLimitDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
