// In file: internal/llm/gemini_client.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dileep-u-k/llm-agent/internal/api"
	"github.com/dileep-u-k/llm-agent/internal/errorsx"
	"github.com/dileep-u-k/llm-agent/internal/tools"
)

// GeminiClient is the client for interacting with Google's Gemini models.
// The underlying genai.Client is shared; a GenerativeModel is configured per
// request so concurrent runs never see each other's settings.
type GeminiClient struct {
	client *genai.Client
}

var _ ModelClient = (*GeminiClient)(nil)

// NewGeminiClient creates a client authenticated with apiKey. An endpoint, if
// given, overrides the default API host.
func NewGeminiClient(ctx context.Context, apiKey, endpoint string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Complete performs one blocking request to the Gemini API.
func (c *GeminiClient) Complete(
	ctx context.Context,
	messages []Message,
	config *ModelConfig,
	availableTools []tools.Tool,
) (*Completion, error) {
	if config == nil || config.Model == "" {
		return nil, errorsx.New(errorsx.KindModelUnavailable, "model id is required")
	}
	system, contents, err := toGeminiContents(messages)
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.KindModelUnavailable, "failed to build gemini request")
	}
	if len(contents) == 0 {
		return nil, errorsx.New(errorsx.KindModelUnavailable, "no messages to send to gemini")
	}

	model := c.client.GenerativeModel(config.Model)
	configureModel(model, config, availableTools)
	model.SystemInstruction = system

	chat := model.StartChat()
	last := contents[len(contents)-1]
	chat.History = contents[:len(contents)-1]

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, classifyGeminiError(ctx, err)
	}

	result, err := parseGeminiResponse(resp)
	if err != nil {
		return nil, err
	}

	// Some responses omit completion tokens; count them so usage stays useful.
	if result.Usage.CompletionTokens == 0 && result.Text != "" {
		countResp, err := model.CountTokens(ctx, genai.Text(result.Text))
		if err != nil {
			log.Printf("Warning: Failed to manually count completion tokens: %v", err)
		} else {
			result.Usage.CompletionTokens = int(countResp.TotalTokens)
			result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
		}
	}
	return result, nil
}

// configureModel applies generation settings using the SDK's setter methods.
func configureModel(model *genai.GenerativeModel, config *ModelConfig, availableTools []tools.Tool) {
	if config.Temperature != nil {
		model.SetTemperature(*config.Temperature)
	}
	if config.TopP != nil {
		model.SetTopP(*config.TopP)
	}
	if config.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(config.MaxTokens))
	} else {
		model.SetMaxOutputTokens(defaultMaxTokens)
	}

	if len(availableTools) > 0 {
		model.Tools = toGeminiTools(availableTools)
	}
}

// toGeminiTools converts our tool definitions into one function-declaration tool.
func toGeminiTools(toolsToConvert []tools.Tool) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(toolsToConvert))
	for _, t := range toolsToConvert {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  convertSchema(t.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// convertSchema converts our JSONSchema to the Gemini SDK's schema type.
func convertSchema(s tools.JSONSchema) *genai.Schema {
	genaiSchema := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	switch s.Type {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	}
	if s.Properties != nil {
		genaiSchema.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			genaiSchema.Properties[k] = convertSchema(*v)
		}
	}
	return genaiSchema
}

// toGeminiContents converts the transcript. Consecutive messages mapping to
// the same role are merged, so a batch of tool results becomes one turn.
func toGeminiContents(messages []Message) (*genai.Content, []*genai.Content, error) {
	var system *genai.Content
	var contents []*genai.Content

	for _, msg := range messages {
		var role string
		var parts []genai.Part

		switch msg.Role {
		case RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, genai.Text(msg.Content))
			continue
		case RoleUser:
			role = "user"
			parts = append(parts, genai.Text(msg.Content))
		case RoleAssistant:
			role = "model"
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args, err := tc.DecodeArguments()
				if err != nil {
					return nil, nil, fmt.Errorf("tool call %s: %w", tc.ID, err)
				}
				parts = append(parts, genai.FunctionCall{Name: tc.Function.Name, Args: args})
			}
		case RoleTool:
			role = "user"
			key := "content"
			if msg.IsError {
				key = "error"
			}
			parts = append(parts, genai.FunctionResponse{
				Name:     msg.ToolName,
				Response: map[string]any{key: msg.Content},
			})
		default:
			return nil, nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}

		if len(parts) == 0 {
			continue
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return system, contents, nil
}

// parseGeminiResponse converts a Gemini API response into a Completion.
// Gemini does not assign ids to function calls, so each gets a fresh one.
func parseGeminiResponse(resp *genai.GenerateContentResponse) (*Completion, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errorsx.New(errorsx.KindModelUnavailable, "no content returned from gemini")
	}

	candidate := resp.Candidates[0]
	var contentBuilder strings.Builder
	var toolCalls []*tools.ToolCall

	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			contentBuilder.WriteString(string(v))
		case genai.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				return nil, errorsx.Wrapf(err, errorsx.KindModelUnavailable, "could not marshal arguments for %s", v.Name)
			}
			toolCalls = append(toolCalls, &tools.ToolCall{
				ID:   "call_" + uuid.NewString(),
				Type: tools.ToolTypeFunction,
				Function: tools.ToolCallFunction{
					Name:      v.Name,
					Arguments: string(args),
				},
			})
		}
	}

	result := &Completion{
		Text:       strings.TrimSpace(contentBuilder.String()),
		ToolCalls:  toolCalls,
		StopReason: candidate.FinishReason.String(),
	}
	if resp.UsageMetadata != nil {
		result.Usage = api.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	if candidate.FinishReason == genai.FinishReasonMaxTokens && len(toolCalls) == 0 {
		return nil, tokenLimitStop(ProviderGemini, result.StopReason)
	}
	return result, nil
}

// classifyGeminiError maps gRPC status codes onto the agent error taxonomy.
// Only the caller's own context makes a failure a cancellation; a deadline
// reported by Google (an upstream 504) means the model is unavailable.
func classifyGeminiError(ctx context.Context, err error) *errorsx.Error {
	if ctx.Err() != nil {
		return &errorsx.Error{Kind: errorsx.KindCanceled, Err: err}
	}
	st, ok := status.FromError(err)
	if !ok {
		return errorsx.Wrapf(err, errorsx.KindModelUnavailable, "gemini API call failed")
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return errorsx.RateLimited(0, err)
	case codes.InvalidArgument:
		if mentionsTokenLimit(st.Message()) {
			return &errorsx.Error{Kind: errorsx.KindTokenLimitExceeded, Err: err}
		}
	}
	return errorsx.Wrapf(err, errorsx.KindModelUnavailable, "gemini API call failed")
}
