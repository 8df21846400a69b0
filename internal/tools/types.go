// In file: internal/tools/types.go

// Package tools defines the data structures for function calling (tool use)
// and the runtime that executes tool calls requested by a model. These types
// are a provider-agnostic representation that each model client translates
// into its own wire format (Bedrock Converse, Gemini, OpenAI).
package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolTypeFunction is the standard type for function-based tools.
const ToolTypeFunction = "function"

// Tool defines the schema for a function that can be described to an LLM.
// This is the information you send *to* the model to make it aware of a tool's existence.
type Tool struct {
	// Type specifies the type of tool, which is almost always "function".
	Type string `json:"type"`
	// Function holds the detailed definition of the function.
	Function Function `json:"function"`
}

// Function defines the name, description, and parameters of a callable tool.
type Function struct {
	// Name is the unique name of the tool inside a registry (e.g., "calculator").
	Name string `json:"name"`
	// Description is a clear, concise explanation of what the function does.
	// The LLM uses this description to decide when to use the tool.
	Description string `json:"description"`
	// Parameters defines the arguments the function accepts, structured as a JSON Schema.
	Parameters JSONSchema `json:"parameters"`
}

// JSONSchema is the subset of JSON Schema used to describe tool parameters.
// The top-level node is always an object whose properties map a parameter
// name to a primitive type.
type JSONSchema struct {
	// Type is one of "object", "string", "number", "integer", "boolean", "array".
	Type string `json:"type"`
	// Description explains what a specific parameter is for.
	Description string `json:"description,omitempty"`
	// Properties describes the parameters of an object.
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	// Required is a list of parameter names that are mandatory for a function call.
	Required []string `json:"required,omitempty"`
	// Enum restricts a string parameter to a fixed set of values.
	Enum []string `json:"enum,omitempty"`
}

// ToMap returns the schema as a generic JSON object, the shape most
// provider SDKs accept for an input schema.
func (s JSONSchema) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool parameters: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool parameters: %w", err)
	}
	return out, nil
}

// ToolCall represents a request *from* the LLM to execute a specific tool with given arguments.
type ToolCall struct {
	// ID is the provider's identifier for this call. It matches the tool's
	// result back to the request in the next turn.
	ID string `json:"id"`
	// Type indicates the type of tool being called, which is almost always "function".
	Type string `json:"type"`
	// Function contains the name and arguments for the function the LLM wants to execute.
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the name and arguments of a function call requested by the LLM.
type ToolCallFunction struct {
	// Name is the name of the function the LLM has decided to call.
	Name string `json:"name"`
	// Arguments is a JSON object encoded as a string.
	Arguments string `json:"arguments"`
}

// DecodeArguments parses the call's JSON arguments. An empty string is an
// empty argument set.
func (tc *ToolCall) DecodeArguments() (map[string]any, error) {
	raw := strings.TrimSpace(tc.Function.Arguments)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// NewFunctionTool is a helper function that simplifies the creation of a new Tool.
//
// Parameters:
//   - name: The name of the function.
//   - description: A clear description of what the function does.
//   - parameters: A JSONSchema struct defining the function's arguments.
func NewFunctionTool(name, description string, parameters JSONSchema) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// NewToolCall builds a function ToolCall from already-decoded arguments.
func NewToolCall(id, name string, args map[string]any) (*ToolCall, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments for %s: %w", name, err)
	}
	return &ToolCall{
		ID:       id,
		Type:     ToolTypeFunction,
		Function: ToolCallFunction{Name: name, Arguments: string(raw)},
	}, nil
}
