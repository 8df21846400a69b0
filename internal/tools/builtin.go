package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dileep-u-k/llm-agent/internal/errorsx"
)

// BuiltinConfig configures the builtin tools.
type BuiltinConfig struct {
	FileRoot       string `yaml:"file_root"`
	FileMaxBytes   int64  `yaml:"file_max_bytes"`
	WeatherBaseURL string `yaml:"weather_base_url"`
}

var builtinFactories = map[string]func(BuiltinConfig) (ToolExecutor, error){
	"calculator": func(BuiltinConfig) (ToolExecutor, error) {
		return NewCalculatorTool(), nil
	},
	"file_read": func(cfg BuiltinConfig) (ToolExecutor, error) {
		return NewFileReadTool(cfg.FileRoot, cfg.FileMaxBytes)
	},
	"weather": func(cfg BuiltinConfig) (ToolExecutor, error) {
		return NewWeatherTool(cfg.WeatherBaseURL), nil
	},
}

// BuiltinNames lists the names accepted by NewBuiltin.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinFactories))
	for name := range builtinFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewBuiltin constructs one builtin tool by name.
func NewBuiltin(name string, cfg BuiltinConfig) (ToolExecutor, error) {
	factory, ok := builtinFactories[strings.TrimSpace(name)]
	if !ok {
		return nil, errorsx.New(errorsx.KindUnknownTool, "no builtin tool named %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	tool, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating builtin tool %s: %w", name, err)
	}
	return tool, nil
}

// NewBuiltinRegistry builds a fresh registry holding the named builtin tools
// in the given order.
func NewBuiltinRegistry(names []string, cfg BuiltinConfig) (*Registry, error) {
	reg := NewRegistry()
	for _, name := range names {
		tool, err := NewBuiltin(name, cfg)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(tool); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
