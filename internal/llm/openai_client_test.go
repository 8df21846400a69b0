package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dileep-u-k/llm-agent/internal/errorsx"
	"github.com/dileep-u-k/llm-agent/internal/tools"
)

func newOpenAITestServer(t *testing.T, handler func(w http.ResponseWriter, req openAIRequest)) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)

	c, err := NewOpenAIClient("test-key", srv.URL+"/v1/")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestOpenAIClient_CompleteToolCall(t *testing.T) {
	var captured openAIRequest
	c := newOpenAITestServer(t, func(w http.ResponseWriter, req openAIRequest) {
		captured = req
		_, _ = w.Write([]byte(`{
			"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":"",
				"tool_calls":[{"id":"call_1","type":"function","function":{"name":"calculator","arguments":"{\"expr\":\"25*4+10\"}"}}]}}],
			"usage":{"prompt_tokens":12,"completion_tokens":7,"total_tokens":19}}`))
	})

	msgs := []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "What is 25 * 4 + 10?"},
	}
	out, err := c.Complete(context.Background(), msgs, &ModelConfig{Model: "gpt-4o-mini", MaxTokens: 256}, []tools.Tool{tools.NewCalculatorTool().Definition()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind() != ToolCallRequested || len(out.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %+v", out)
	}
	if out.ToolCalls[0].ID != "call_1" || out.ToolCalls[0].Function.Arguments != `{"expr":"25*4+10"}` {
		t.Errorf("unexpected tool call %+v", out.ToolCalls[0])
	}
	if out.Usage.TotalTokens != 19 {
		t.Errorf("unexpected usage %+v", out.Usage)
	}

	if captured.Model != "gpt-4o-mini" || captured.MaxTokens != 256 || captured.ToolChoice != "auto" {
		t.Errorf("unexpected request %+v", captured)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != "calculator" {
		t.Errorf("tools not forwarded: %+v", captured.Tools)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("messages not forwarded in order: %+v", captured.Messages)
	}
}

func TestOpenAIClient_ToolResultsRoundTrip(t *testing.T) {
	var captured openAIRequest
	c := newOpenAITestServer(t, func(w http.ResponseWriter, req openAIRequest) {
		captured = req
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"The answer is 110."}}],
			"usage":{"prompt_tokens":20,"completion_tokens":5}}`))
	})

	call, _ := tools.NewToolCall("call_1", "calculator", map[string]any{"expr": "25*4+10"})
	msgs := []Message{
		{Role: RoleUser, Content: "What is 25 * 4 + 10?"},
		{Role: RoleAssistant, ToolCalls: []*tools.ToolCall{call}},
		{Role: RoleTool, Content: "110", ToolCallID: "call_1", ToolName: "calculator"},
	}
	out, err := c.Complete(context.Background(), msgs, &ModelConfig{Model: "gpt-4o-mini"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind() != FinalText || out.Text != "The answer is 110." {
		t.Errorf("unexpected completion %+v", out)
	}
	if out.Usage.TotalTokens != 25 {
		t.Errorf("total tokens should be derived, got %+v", out.Usage)
	}
	if captured.Messages[1].ToolCalls[0].ID != "call_1" || captured.Messages[2].ToolCallID != "call_1" {
		t.Errorf("tool call ids not forwarded: %+v", captured.Messages)
	}
	if captured.Tools != nil || captured.ToolChoice != "" {
		t.Errorf("no tools should be sent: %+v", captured)
	}
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, req openAIRequest)
		want    errorsx.Kind
	}{
		{"rate limited", func(w http.ResponseWriter, _ openAIRequest) {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
		}, errorsx.KindRateLimited},
		{"unavailable", func(w http.ResponseWriter, _ openAIRequest) {
			w.WriteHeader(http.StatusBadGateway)
		}, errorsx.KindModelUnavailable},
		{"context too long", func(w http.ResponseWriter, _ openAIRequest) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"This model's maximum context length is 8192 tokens","code":"context_length_exceeded"}}`))
		}, errorsx.KindTokenLimitExceeded},
		{"truncated", func(w http.ResponseWriter, _ openAIRequest) {
			_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"length","message":{"role":"assistant","content":"The ans"}}]}`))
		}, errorsx.KindTokenLimitExceeded},
		{"no choices", func(w http.ResponseWriter, _ openAIRequest) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}, errorsx.KindModelUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newOpenAITestServer(t, tt.handler)
			_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, &ModelConfig{Model: "gpt-4o-mini"}, nil)
			if got := errorsx.KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s (err: %v)", got, tt.want, err)
			}
		})
	}
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient("", ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
