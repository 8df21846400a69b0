package tools

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// Validator checks call arguments against a tool's parameter schema.
type Validator interface {
	Validate(args map[string]any, schema JSONSchema) error
}

// SchemaValidator checks presence of required parameters, primitive types,
// string enums, and rejects parameters the schema does not declare.
type SchemaValidator struct{}

var _ Validator = SchemaValidator{}

func (SchemaValidator) Validate(args map[string]any, schema JSONSchema) error {
	if args == nil {
		args = map[string]any{}
	}

	for _, field := range schema.Required {
		v, exists := args[field]
		if !exists || v == nil {
			return fmt.Errorf("missing required parameter %q", field)
		}
	}

	// Sorted so the first reported problem is stable across runs.
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prop, ok := schema.Properties[key]
		if !ok || prop == nil {
			return fmt.Errorf("unexpected parameter %q", key)
		}
		value := args[key]
		if value == nil && !slices.Contains(schema.Required, key) {
			continue
		}
		if err := checkType(value, prop.Type); err != nil {
			return fmt.Errorf("parameter %q: %w", key, err)
		}
		if len(prop.Enum) > 0 {
			s, _ := value.(string)
			if !slices.Contains(prop.Enum, s) {
				return fmt.Errorf("parameter %q: %q is not one of %v", key, s, prop.Enum)
			}
		}
	}
	return nil
}

func checkType(value any, expected string) error {
	switch expected {
	case "", "any":
		return nil
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if isNumber(value) {
			return nil
		}
	case "integer":
		if isInteger(value) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %s", expected, jsonTypeName(value))
}

func isNumber(value any) bool {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsInf(float64(v), 0) && math.Trunc(float64(v)) == float64(v)
	case float64:
		return !math.IsInf(v, 0) && math.Trunc(v) == v
	}
	return false
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if isNumber(value) {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}
