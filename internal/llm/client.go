// In file: internal/llm/client.go

// Package llm contains the model clients the agent talks to (Bedrock
// Converse, Gemini and OpenAI-compatible chat APIs), the provider-neutral
// message and completion types they share, and model profiling.
package llm

import (
	"context"

	"github.com/dileep-u-k/llm-agent/internal/api"
	"github.com/dileep-u-k/llm-agent/internal/tools"
)

// =================================================================================
// Core Data Structures
// =================================================================================

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a single message in a conversation history.
// Tool messages carry the id and name of the call they answer.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []*tools.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolName   string            `json:"tool_name,omitempty"`
	IsError    bool              `json:"is_error,omitempty"`
}

// ModelConfig identifies the hosted model and its generation parameters.
// The agent loop passes it through to the client without inspecting it.
type ModelConfig struct {
	// Provider selects the client implementation: "bedrock", "gemini" or
	// "openai". Empty means it is inferred from Model.
	Provider string `yaml:"provider"`
	// The provider's model identifier, e.g. "amazon.nova-micro-v1:0".
	Model string `yaml:"model_id"`
	// Region is used by Bedrock.
	Region string `yaml:"region"`
	// Endpoint overrides the provider's default base URL.
	Endpoint string `yaml:"endpoint"`
	// Profile names a shared AWS config profile.
	Profile string `yaml:"profile"`
	// The maximum number of tokens to generate in one completion.
	MaxTokens int `yaml:"max_tokens"`
	// Pointers distinguish an explicit 0.0 from an unset value.
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"top_p"`
	// RequestsPerMinute enables client-side throttling when positive.
	RequestsPerMinute int `yaml:"requests_per_minute"`
	// APIKey is only ever read from the environment.
	APIKey string `yaml:"-"`
}

// CompletionKind tells the agent loop what to do next.
type CompletionKind int

const (
	FinalText CompletionKind = iota
	ToolCallRequested
)

func (k CompletionKind) String() string {
	if k == ToolCallRequested {
		return "tool_call_requested"
	}
	return "final_text"
}

// Completion is the complete, non-streamed output of one model round trip.
type Completion struct {
	// The generated text. It may accompany tool calls.
	Text string
	// Tool calls requested by the model, in the order the model emitted them.
	ToolCalls []*tools.ToolCall
	// Token usage statistics for the request.
	Usage api.Usage
	// The provider's raw stop reason, kept for logging.
	StopReason string
}

// Kind reports FinalText when no tool calls were requested.
func (c *Completion) Kind() CompletionKind {
	if len(c.ToolCalls) > 0 {
		return ToolCallRequested
	}
	return FinalText
}

// =================================================================================
// Model Client Interface
// =================================================================================

// ModelClient is the interface every provider implementation satisfies.
//
// Complete performs one blocking request with the full conversation history
// and the tools the model may call. Failures are *errorsx.Error values of kind
// ModelUnavailable, RateLimited or TokenLimitExceeded.
type ModelClient interface {
	Complete(
		ctx context.Context,
		messages []Message,
		config *ModelConfig,
		availableTools []tools.Tool,
	) (*Completion, error)
}
