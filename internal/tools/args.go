package tools

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs decodes validated call arguments into a typed struct using
// `json` field tags. Numbers arriving as float64 are converted to integer
// fields; the schema validator has already rejected non-integral values.
func DecodeArgs(args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	return nil
}
