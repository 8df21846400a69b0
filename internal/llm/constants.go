// In file: internal/llm/constants.go
package llm

import "time"

// Constants shared across the provider clients.
const (
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 4096
	defaultRegion    = "us-east-1"

	// Bound on error bodies quoted in messages.
	maxErrorBodyBytes = 512
)

const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderMistral = "mistral"
)
