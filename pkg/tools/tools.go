// Package tools defines the tool interface agents use to perform actions,
// plus a typed function-tool constructor and a registry.
//
// Tools are plain Go functions exposed to the model through a JSON schema.
// The schema is generated from struct tags on the argument type:
//
//	type WeatherArgs struct {
//	    Location string `json:"location" jsonschema:"required,description=City name"`
//	}
//
//	weather, err := tools.NewFunctionTool("get_weather", "Get the weather for a location",
//	    func(ctx context.Context, args WeatherArgs) (any, error) {
//	        return fmt.Sprintf("Sunny in %s", args.Location), nil
//	    })
package tools

import (
	"context"

	"github.com/relay-agents/relay/pkg/llms"
)

// Tool is a capability an agent can invoke during a run.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description explains what the tool does. Shown to the model so it
	// can decide when to call the tool.
	Description() string

	// Schema returns the JSON schema for the tool's parameters.
	// Returns nil if the tool takes no parameters.
	Schema() map[string]any

	// Call executes the tool with the given arguments.
	// An error return means infrastructure failure; tool-level failures
	// (bad arguments, domain errors) are reported in the Result so the
	// model can see them and recover.
	Call(ctx context.Context, args map[string]any) (*Result, error)
}

// Result is the outcome of a tool call, fed back to the model as a
// tool message.
type Result struct {
	// Content is the text returned to the model.
	Content string

	// Error is set when the call failed in a way the model should see.
	Error string
}

// Failed reports whether the result carries a tool-level error.
func (r *Result) Failed() bool {
	return r != nil && r.Error != ""
}

// Text formats the result for inclusion in a tool message.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	if r.Error != "" {
		return "Error: " + r.Error
	}
	return r.Content
}

// Success builds a successful result.
func Success(content string) *Result {
	return &Result{Content: content}
}

// Failure builds a failed result.
func Failure(msg string) *Result {
	return &Result{Error: msg}
}

// Definition converts a tool into the wire definition sent to the model.
func Definition(t Tool) llms.ToolDefinition {
	return llms.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema(),
	}
}
