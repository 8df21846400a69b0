package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dileep-u-k/llm-agent/internal/api"
	"github.com/dileep-u-k/llm-agent/internal/config"
	"github.com/dileep-u-k/llm-agent/internal/errorsx"
	"github.com/dileep-u-k/llm-agent/internal/llm"
	"github.com/dileep-u-k/llm-agent/internal/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeModel answers from a fixed list of responses, repeating the last one.
type fakeModel struct {
	mu        sync.Mutex
	responses []func() (*llm.Completion, error)
	calls     int
}

func (m *fakeModel) Complete(context.Context, []llm.Message, *llm.ModelConfig, []tools.Tool) (*llm.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	m.calls++
	return m.responses[i]()
}

func finalText(text string) func() (*llm.Completion, error) {
	return func() (*llm.Completion, error) {
		return &llm.Completion{Text: text, Usage: api.Usage{PromptTokens: 20, CompletionTokens: 3, TotalTokens: 23}}, nil
	}
}

func failWith(err error) func() (*llm.Completion, error) {
	return func() (*llm.Completion, error) { return nil, err }
}

func calculatorCall(t *testing.T, expr string) func() (*llm.Completion, error) {
	t.Helper()
	call, err := tools.NewToolCall("call-1", "calculator", map[string]any{"expr": expr})
	if err != nil {
		t.Fatal(err)
	}
	return func() (*llm.Completion, error) {
		return &llm.Completion{ToolCalls: []*tools.ToolCall{call}, Usage: api.Usage{PromptTokens: 15, CompletionTokens: 5, TotalTokens: 20}}, nil
	}
}

type testServer struct {
	engine *gin.Engine
	model  *fakeModel
	built  []string
}

func newTestServer(t *testing.T, responses ...func() (*llm.Completion, error)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Tools.Enabled = []string{"calculator"}
	cfg.Agent.RateLimitDelay = time.Millisecond
	cfg.Agent.MaxRateLimitDelay = time.Millisecond

	ts := &testServer{model: &fakeModel{responses: responses}}
	handler, err := NewAgentHandler(cfg, nil, func(_ context.Context, m *llm.ModelConfig) (llm.ModelClient, error) {
		ts.built = append(ts.built, m.Model)
		return ts.model, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	ts.engine = newRouter(handler)
	return ts
}

func (ts *testServer) post(t *testing.T, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/run", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHandleRun_ToolRoundTrip(t *testing.T) {
	ts := newTestServer(t, calculatorCall(t, "100+10"), finalText("100 plus 10 is 110."))

	w := ts.post(t, api.RunRequest{Prompt: "What is 100 plus 10?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp api.RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Content != "100 plus 10 is 110." || resp.ModelUsed != "amazon.nova-micro-v1:0" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.ModelCalls != 2 || resp.ToolInvocations != 1 || resp.RunID == "" {
		t.Errorf("unexpected counters %+v", resp)
	}
	if resp.Usage.TotalTokens != 43 {
		t.Errorf("usage should be summed over both calls, got %+v", resp.Usage)
	}
}

func TestHandleRun_ReusesClientPerModel(t *testing.T) {
	ts := newTestServer(t, finalText("ok"))

	for i := 0; i < 2; i++ {
		if w := ts.post(t, api.RunRequest{Prompt: "hi"}); w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}
	if w := ts.post(t, api.RunRequest{Prompt: "hi", Model: "gpt-4o-mini"}); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(ts.built) != 2 || ts.built[0] != "amazon.nova-micro-v1:0" || ts.built[1] != "gpt-4o-mini" {
		t.Errorf("clients built = %v", ts.built)
	}
}

func TestHandleRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response func() (*llm.Completion, error)
		request  api.RunRequest
		status   int
		kind     errorsx.Kind
	}{
		{
			name:     "unknown tool requested by caller",
			response: finalText("unused"),
			request:  api.RunRequest{Prompt: "delete it", Tools: []string{"file_delete"}},
			status:   http.StatusBadRequest,
			kind:     errorsx.KindUnknownTool,
		},
		{
			name:     "duplicate tool",
			response: finalText("unused"),
			request:  api.RunRequest{Prompt: "add", Tools: []string{"calculator", "calculator"}},
			status:   http.StatusBadRequest,
			kind:     errorsx.KindDuplicateTool,
		},
		{
			name:     "token limit",
			response: failWith(errorsx.New(errorsx.KindTokenLimitExceeded, "prompt too long")),
			request:  api.RunRequest{Prompt: "long"},
			status:   http.StatusUnprocessableEntity,
			kind:     errorsx.KindTokenLimitExceeded,
		},
		{
			name:     "model unavailable",
			response: failWith(errors.New("connection refused")),
			request:  api.RunRequest{Prompt: "hi"},
			status:   http.StatusBadGateway,
			kind:     errorsx.KindModelUnavailable,
		},
		{
			name:     "iteration limit",
			response: calculatorCall(t, "1+1"),
			request:  api.RunRequest{Prompt: "loop", MaxIterations: 2},
			status:   http.StatusUnprocessableEntity,
			kind:     errorsx.KindIterationLimitExceeded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.response)
			w := ts.post(t, tt.request)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			if resp := decodeError(t, w); resp.Kind != string(tt.kind) || resp.Message == "" {
				t.Errorf("unexpected error body %+v", resp)
			}
		})
	}
}

func TestHandleRun_RateLimitedSetsRetryAfter(t *testing.T) {
	ts := newTestServer(t, failWith(errorsx.RateLimited(1500*time.Millisecond, errors.New("slow down"))))

	w := ts.post(t, api.RunRequest{Prompt: "hi"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	if resp := decodeError(t, w); resp.RunID == "" || resp.Kind != string(errorsx.KindRateLimited) {
		t.Errorf("unexpected error body %+v", resp)
	}
	if ts.model.calls != 2 {
		t.Errorf("expected one retry, model called %d times", ts.model.calls)
	}
}

func TestHandleRun_InvalidBody(t *testing.T) {
	ts := newTestServer(t, finalText("unused"))
	w := ts.post(t, map[string]any{"tools": []string{"calculator"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if ts.model.calls != 0 {
		t.Error("model must not be called for an invalid request")
	}
}

func TestHandleRun_ClientFactoryError(t *testing.T) {
	handler, err := NewAgentHandler(config.Default(), nil, func(context.Context, *llm.ModelConfig) (llm.ModelClient, error) {
		return nil, errors.New("missing API key")
	})
	if err != nil {
		t.Fatal(err)
	}
	engine := newRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/run", bytes.NewReader([]byte(`{"prompt":"hi"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Kind != string(errorsx.KindModelUnavailable) {
		t.Errorf("unexpected error body %+v", resp)
	}
}

// closingModel records Close so duplicate clients can be observed.
type closingModel struct {
	fakeModel
	closed int
}

func (m *closingModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func TestClientFor_SlowFactoryDoesNotBlockOtherModels(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	fast := &fakeModel{responses: []func() (*llm.Completion, error){finalText("ok")}}

	handler, err := NewAgentHandler(config.Default(), nil, func(ctx context.Context, m *llm.ModelConfig) (llm.ModelClient, error) {
		if m.Model == "slow-model" {
			close(started)
			<-release
		}
		return fast, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	slowDone := make(chan error, 1)
	go func() {
		_, err := handler.clientFor(context.Background(), &llm.ModelConfig{Model: "slow-model", Provider: llm.ProviderOpenAI})
		slowDone <- err
	}()
	<-started

	fastDone := make(chan error, 1)
	go func() {
		_, err := handler.clientFor(context.Background(), &llm.ModelConfig{Model: "gpt-4o-mini"})
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("client for another model waited on a slow factory")
	}

	close(release)
	if err := <-slowDone; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientFor_RaceKeepsFirstClient(t *testing.T) {
	var mu sync.Mutex
	var built []*closingModel
	gate := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(2)

	handler, err := NewAgentHandler(config.Default(), nil, func(context.Context, *llm.ModelConfig) (llm.ModelClient, error) {
		m := &closingModel{}
		mu.Lock()
		built = append(built, m)
		mu.Unlock()
		entered.Done()
		<-gate
		return m, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	cfg := &llm.ModelConfig{Model: "gpt-4o-mini"}
	results := make(chan llm.ModelClient, 2)
	for i := 0; i < 2; i++ {
		go func() {
			client, err := handler.clientFor(context.Background(), cfg)
			if err != nil {
				t.Error(err)
			}
			results <- client
		}()
	}
	entered.Wait()
	close(gate)

	first, second := <-results, <-results
	if first != second {
		t.Fatal("racing runs got different clients")
	}
	closed := 0
	for _, m := range built {
		if m.closed > 0 {
			closed++
			if llm.ModelClient(m) == first {
				t.Error("the cached client was closed")
			}
		}
	}
	if len(built) != 2 || closed != 1 {
		t.Errorf("built %d client(s), closed %d; want 2 and 1", len(built), closed)
	}
}

func TestHandleProfile_Disabled(t *testing.T) {
	ts := newTestServer(t, finalText("unused"))
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/models/amazon.nova-micro-v1:0/profile", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, finalText("unused"))
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["version"] == nil {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestStatusForError(t *testing.T) {
	deadline := &errorsx.Error{Kind: errorsx.KindCanceled, Err: context.DeadlineExceeded}
	canceled := &errorsx.Error{Kind: errorsx.KindCanceled, Err: context.Canceled}
	if got := statusForError(deadline); got != http.StatusGatewayTimeout {
		t.Errorf("deadline status = %d", got)
	}
	if got := statusForError(canceled); got != statusClientClosedRequest {
		t.Errorf("canceled status = %d", got)
	}
	if got := statusForError(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("unclassified status = %d", got)
	}
}

func TestNewAgentHandler_RejectsBadDefaultTools(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.Enabled = []string{"calculator", "shell"}
	if _, err := NewAgentHandler(cfg, nil, nil); err == nil {
		t.Fatal("expected an error for an unknown default tool")
	}
}
