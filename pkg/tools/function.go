package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// functionTool adapts a typed Go function to the Tool interface.
type functionTool[Args any] struct {
	name        string
	description string
	schema      map[string]any
	fn          func(context.Context, Args) (any, error)
}

// NewFunctionTool creates a Tool from a typed function. The parameter
// schema is generated from json and jsonschema struct tags on Args.
//
// Supported tags:
//   - json:"name"                      parameter name
//   - json:",omitempty"                optional parameter
//   - jsonschema:"required"            explicitly required
//   - jsonschema:"description=..."     parameter description
//   - jsonschema:"enum=a|b"            allowed values
//   - jsonschema:"minimum=N,maximum=M" numeric constraints
func NewFunctionTool[Args any](name, description string, fn func(context.Context, Args) (any, error)) (Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if description == "" {
		return nil, fmt.Errorf("tool %s: description is required", name)
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: function is required", name)
	}

	schema, err := generateSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("tool %s: failed to generate schema: %w", name, err)
	}

	return &functionTool[Args]{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}, nil
}

// MustFunctionTool is like NewFunctionTool but panics on error.
// Intended for statically-defined tools where the schema is known good.
func MustFunctionTool[Args any](name, description string, fn func(context.Context, Args) (any, error)) Tool {
	t, err := NewFunctionTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *functionTool[Args]) Name() string           { return t.name }
func (t *functionTool[Args]) Description() string    { return t.description }
func (t *functionTool[Args]) Schema() map[string]any { return t.schema }

// Call decodes the raw arguments into the typed struct and invokes the
// function. Decode failures are returned as failed results so the model
// can correct its arguments instead of aborting the run.
func (t *functionTool[Args]) Call(ctx context.Context, args map[string]any) (*Result, error) {
	var typed Args
	if err := mapToStruct(args, &typed); err != nil {
		return Failure(fmt.Sprintf("invalid arguments for %s: %v", t.name, err)), nil
	}

	out, err := t.fn(ctx, typed)
	if err != nil {
		return Failure(err.Error()), nil
	}

	content, err := formatOutput(out)
	if err != nil {
		return nil, fmt.Errorf("tool %s: failed to encode result: %w", t.name, err)
	}
	return Success(content), nil
}

// generateSchema builds a JSON schema map from the Args type.
func generateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	// Marshal-unmarshal round trip converts the schema types into the
	// plain maps the chat completions API expects.
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	delete(result, "$schema")
	delete(result, "$id")

	if result["type"] != "object" {
		return result, nil
	}
	trimmed := map[string]any{
		"type": "object",
	}
	if props, ok := result["properties"]; ok {
		trimmed["properties"] = props
	} else {
		trimmed["properties"] = map[string]any{}
	}
	if required, ok := result["required"]; ok {
		trimmed["required"] = required
	}
	if addProps, ok := result["additionalProperties"]; ok {
		trimmed["additionalProperties"] = addProps
	}
	return trimmed, nil
}

// mapToStruct converts raw arguments to a typed struct via a JSON round
// trip, which handles numeric conversions properly.
func mapToStruct(m map[string]any, target any) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return nil
}

// formatOutput renders a tool return value as text for the model.
func formatOutput(out any) (string, error) {
	switch v := out.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
