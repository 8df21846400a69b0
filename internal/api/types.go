// Package api holds the types shared between the agent runtime and its
// outer surfaces (the HTTP service and the CLI).
package api

// Usage is token accounting for one or more model calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// RunRequest is the body of POST /api/v1/agent/run.
type RunRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	// Tools selects builtin tools by name. Empty means the service default.
	Tools []string `json:"tools,omitempty"`
	// Model overrides the configured model id for this run.
	Model         string `json:"model,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// RunResponse is returned for a run that reached a final answer.
type RunResponse struct {
	RunID           string `json:"run_id"`
	Content         string `json:"content"`
	ModelUsed       string `json:"model_used"`
	Usage           Usage  `json:"usage"`
	ModelCalls      int    `json:"model_calls"`
	ToolInvocations int    `json:"tool_invocations"`
	LatencyMS       int64  `json:"latency_ms"`
}

// ErrorResponse is returned for a run that ended in an agent error.
type ErrorResponse struct {
	RunID   string `json:"run_id,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"error"`
}
