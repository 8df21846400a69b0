// In file: internal/llm/factory.go
package llm

import (
	"context"
	"fmt"
	"strings"
)

const defaultMistralEndpoint = "https://api.mistral.ai/v1"

// ResolveProvider returns cfg.Provider, or infers it from the model id.
// Anything unrecognised is assumed to be a Bedrock model id.
func ResolveProvider(cfg *ModelConfig) string {
	if p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p != "" {
		return p
	}
	model := strings.ToLower(cfg.Model)
	switch {
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return ProviderOpenAI
	case strings.HasPrefix(model, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(model, "mistral-"), strings.HasPrefix(model, "open-mistral"), strings.HasPrefix(model, "codestral"):
		return ProviderMistral
	default:
		return ProviderBedrock
	}
}

// NewClient builds the model client for cfg, throttled when
// cfg.RequestsPerMinute is set. creds only applies to Bedrock.
func NewClient(ctx context.Context, cfg *ModelConfig, creds *AWSCredentials) (ModelClient, error) {
	var client ModelClient
	var err error

	switch provider := ResolveProvider(cfg); provider {
	case ProviderBedrock:
		client, err = NewBedrockClient(ctx, cfg, creds)
	case ProviderGemini:
		client, err = NewGeminiClient(ctx, cfg.APIKey, cfg.Endpoint)
	case ProviderOpenAI:
		client, err = NewOpenAIClient(cfg.APIKey, cfg.Endpoint)
	case ProviderMistral:
		// Mistral speaks the chat completions wire format.
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultMistralEndpoint
		}
		client, err = NewOpenAIClient(cfg.APIKey, endpoint)
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
	if err != nil {
		return nil, err
	}
	return NewThrottle(client, cfg.RequestsPerMinute, 1), nil
}
