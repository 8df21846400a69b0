// In file: internal/config/config.go

// Package config loads the runtime configuration shared by the agent CLI and
// the agentd service from a YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dileep-u-k/llm-agent/internal/llm"
	"github.com/dileep-u-k/llm-agent/internal/tools"
	"github.com/dileep-u-k/llm-agent/internal/tracing"
)

// DefaultPath is read when no config file is named and it exists.
const DefaultPath = "config.yaml"

// Config holds all configuration, loaded from the environment and config files.
type Config struct {
	Model   llm.ModelConfig `yaml:"model"`
	Agent   AgentConfig     `yaml:"agent"`
	Tools   ToolsConfig     `yaml:"tools"`
	Server  ServerConfig    `yaml:"server"`
	Tracing tracing.Config  `yaml:"tracing"`

	// Secrets only ever come from the environment.
	APIKeys        map[string]string   `yaml:"-"`
	AWSCredentials *llm.AWSCredentials `yaml:"-"`
}

type AgentConfig struct {
	MaxIterations     int           `yaml:"max_iterations"`
	SystemPrompt      string        `yaml:"system_prompt"`
	RateLimitDelay    time.Duration `yaml:"rate_limit_delay"`
	MaxRateLimitDelay time.Duration `yaml:"max_rate_limit_delay"`
	Timeout           time.Duration `yaml:"timeout"`
}

type ToolsConfig struct {
	Enabled             []string `yaml:"enabled"`
	tools.BuiltinConfig `yaml:",inline"`
}

type ServerConfig struct {
	Port                string        `yaml:"port"`
	RedisAddr           string        `yaml:"redis_addr"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// Default returns the configuration used when nothing else is given: the
// Nova Micro model on Bedrock in us-east-1 with the calculator and file
// reader enabled.
func Default() *Config {
	return &Config{
		Model: llm.ModelConfig{
			Provider:  llm.ProviderBedrock,
			Model:     "amazon.nova-micro-v1:0",
			Region:    "us-east-1",
			MaxTokens: 1024,
		},
		Agent: AgentConfig{
			MaxIterations:     10,
			RateLimitDelay:    time.Second,
			MaxRateLimitDelay: 30 * time.Second,
			Timeout:           2 * time.Minute,
		},
		Tools: ToolsConfig{
			Enabled:       []string{"calculator", "file_read"},
			BuiltinConfig: tools.BuiltinConfig{FileRoot: ".", FileMaxBytes: 1 << 20},
		},
		Server: ServerConfig{
			Port:                "8080",
			HealthCheckInterval: 5 * time.Minute,
		},
		APIKeys: map[string]string{},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (DefaultPath when empty and present), then environment overrides.
func Load(path string) (*Config, error) {
	// In containers (GIN_MODE=release) configuration is provided directly as
	// environment variables.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}

	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&c.Model.Model, "LLM_AGENT_MODEL")
	setString(&c.Model.Provider, "LLM_AGENT_PROVIDER")
	setString(&c.Model.Region, "AWS_REGION")
	setString(&c.Model.Endpoint, "LLM_AGENT_ENDPOINT")
	setString(&c.Model.Profile, "AWS_PROFILE")
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.RedisAddr, "REDIS_ADDR")
	setString(&c.Tools.FileRoot, "LLM_AGENT_FILE_ROOT")
	setString(&c.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	if v := os.Getenv("LLM_AGENT_TOOLS"); v != "" {
		c.Tools.Enabled = SplitList(v)
	}
	if v := os.Getenv("LLM_AGENT_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LLM_AGENT_MAX_ITERATIONS: %w", err)
		}
		c.Agent.MaxIterations = n
	}

	if c.APIKeys == nil {
		c.APIKeys = map[string]string{}
	}
	for provider, key := range map[string]string{
		llm.ProviderOpenAI:  "OPENAI_API_KEY",
		llm.ProviderGemini:  "GEMINI_API_KEY",
		llm.ProviderMistral: "MISTRAL_API_KEY",
	} {
		if v := os.Getenv(key); v != "" {
			c.APIKeys[provider] = v
		}
	}

	// Dedicated Bedrock keys; otherwise the default AWS credential chain applies.
	if id := os.Getenv("BEDROCK_AWS_ACCESS_KEY_ID"); id != "" {
		c.AWSCredentials = &llm.AWSCredentials{
			AccessKeyID:     id,
			SecretAccessKey: os.Getenv("BEDROCK_AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("BEDROCK_AWS_SESSION_TOKEN"),
		}
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model.Model) == "" {
		return errors.New("model.model_id is required")
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1, got %d", c.Agent.MaxIterations)
	}
	known := map[string]bool{}
	for _, name := range tools.BuiltinNames() {
		known[name] = true
	}
	for _, name := range c.Tools.Enabled {
		if !known[name] {
			return fmt.Errorf("tools.enabled: unknown tool %q (available: %s)", name, strings.Join(tools.BuiltinNames(), ", "))
		}
	}
	return nil
}

// ModelFor returns a copy of the model configuration, optionally for another
// model id, with the matching provider API key filled in.
func (c *Config) ModelFor(modelID string) *llm.ModelConfig {
	m := c.Model
	if modelID != "" && modelID != m.Model {
		m.Model = modelID
		// The configured provider belongs to the configured model.
		m.Provider = ""
	}
	m.APIKey = c.APIKeys[llm.ResolveProvider(&m)]
	return &m
}

// SplitList parses a comma separated list, dropping empty entries.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
