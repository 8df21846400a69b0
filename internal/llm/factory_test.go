package llm

import (
	"context"
	"testing"
)

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		cfg  ModelConfig
		want string
	}{
		{ModelConfig{Model: "amazon.nova-micro-v1:0"}, ProviderBedrock},
		{ModelConfig{Model: "amazon.titan-text-express-v1"}, ProviderBedrock},
		{ModelConfig{Model: "anthropic.claude-3-haiku-20240307-v1:0"}, ProviderBedrock},
		{ModelConfig{Model: "gpt-4o-mini"}, ProviderOpenAI},
		{ModelConfig{Model: "gemini-1.5-flash"}, ProviderGemini},
		{ModelConfig{Model: "mistral-small-latest"}, ProviderMistral},
		{ModelConfig{Provider: "OpenAI", Model: "llama3"}, ProviderOpenAI},
	}
	for _, tt := range tests {
		if got := ResolveProvider(&tt.cfg); got != tt.want {
			t.Errorf("ResolveProvider(%+v) = %s, want %s", tt.cfg, got, tt.want)
		}
	}
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	c, err := NewClient(ctx, &ModelConfig{Model: "gpt-4o-mini", APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Errorf("expected *OpenAIClient, got %T", c)
	}

	c, err = NewClient(ctx, &ModelConfig{Model: "mistral-small-latest", APIKey: "k", RequestsPerMinute: 30}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	th, ok := c.(*Throttle)
	if !ok {
		t.Fatalf("expected *Throttle, got %T", c)
	}
	if oc, ok := th.next.(*OpenAIClient); !ok || oc.endpoint != defaultMistralEndpoint {
		t.Errorf("mistral should use the chat completions client at %s", defaultMistralEndpoint)
	}

	if _, err := NewClient(ctx, &ModelConfig{Model: "gpt-4o-mini"}, nil); err == nil {
		t.Error("expected error without an API key")
	}
	if _, err := NewClient(ctx, &ModelConfig{Provider: "watson", Model: "x"}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewClient_Bedrock(t *testing.T) {
	cfg := &ModelConfig{Model: "amazon.nova-micro-v1:0", Region: "us-east-1"}
	c, err := NewClient(context.Background(), cfg, &AWSCredentials{AccessKeyID: "AKID", SecretAccessKey: "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*BedrockClient); !ok {
		t.Errorf("expected *BedrockClient, got %T", c)
	}
}
