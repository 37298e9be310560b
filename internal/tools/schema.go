package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchemaUnusable marks an advertised input schema that does not compile.
// Callers skip validation rather than fail the tool call over it.
var ErrSchemaUnusable = errors.New("tools: unusable input schema")

// ValidateArguments validates raw JSON arguments against a JSON Schema.
func ValidateArguments(args json.RawMessage, schema json.RawMessage) error {
	compiled, err := jsonschema.CompileString("", string(schema))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaUnusable, err)
	}

	var inputData interface{}
	if err := json.Unmarshal(args, &inputData); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}

	if err := compiled.Validate(inputData); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}
