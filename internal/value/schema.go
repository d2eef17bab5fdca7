package value

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks tool-call arguments against a ToolDesc's parameter
// schema using santhosh-tekuri/jsonschema (draft 2020-12 subset).
type Validator struct {
	compiler *jsonschema.Compiler
}

// NewValidator returns a Validator with a fresh schema compiler.
func NewValidator() *Validator {
	return &Validator{compiler: jsonschema.NewCompiler()}
}

// ValidateArguments validates args against desc.Parameters. A schema that
// is null or an empty map is treated as "accepts anything". Returns a
// human-readable error describing the first violation, suitable for
// feeding back to the model as a non-fatal tool error result rather than
// aborting the run.
func (vd *Validator) ValidateArguments(desc ToolDesc, args Value) error {
	if desc.Parameters.IsNull() {
		return nil
	}
	if m, ok := desc.Parameters.AsMap(); ok && m.Len() == 0 {
		return nil
	}

	schemaBytes, err := ToJSON(desc.Parameters)
	if err != nil {
		return fmt.Errorf("tool %q: encode parameter schema: %w", desc.Name, err)
	}
	resourceName := "mem://" + desc.Name + "/parameters.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceName, bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("tool %q: invalid parameter schema: %w", desc.Name, err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return fmt.Errorf("tool %q: compile parameter schema: %w", desc.Name, err)
	}

	argBytes, err := ToJSON(args)
	if err != nil {
		return fmt.Errorf("tool %q: encode arguments: %w", desc.Name, err)
	}
	var decoded any
	if err := json.Unmarshal(argBytes, &decoded); err != nil {
		return fmt.Errorf("tool %q: decode arguments: %w", desc.Name, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("tool %q: arguments do not match schema: %w", desc.Name, err)
	}
	return nil
}
