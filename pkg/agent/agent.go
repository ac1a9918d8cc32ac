// Package agent implements the chat agent: a model provider, a set of
// tools, and the loop that runs tool calls to completion.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/relay-agents/relay/pkg/config"
	"github.com/relay-agents/relay/pkg/llms"
	"github.com/relay-agents/relay/pkg/observability"
	"github.com/relay-agents/relay/pkg/tools"
)

// Agent answers user input by calling the model, executing the tool
// calls it requests, and feeding results back until the model produces
// a final text response.
type Agent struct {
	name              string
	description       string
	instructions      string
	provider          llms.Provider
	tools             []tools.Tool
	maxToolIterations int
	logger            *slog.Logger
}

// New creates an agent from its configuration, a model provider, and
// its resolved tools.
func New(cfg *config.AgentConfig, provider llms.Provider, toolset []tools.Tool) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent config is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("agent %s: provider is required", cfg.Name)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Agent{
		name:              cfg.Name,
		description:       cfg.Description,
		instructions:      cfg.Instructions,
		provider:          provider,
		tools:             toolset,
		maxToolIterations: cfg.MaxToolIterations,
		logger:            slog.Default().With("agent", cfg.Name),
	}, nil
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent description.
func (a *Agent) Description() string { return a.description }

// Tools returns the agent's configured tools.
func (a *Agent) Tools() []tools.Tool { return a.tools }

// RunResult is the outcome of one agent run.
type RunResult struct {
	// Text is the final assistant response.
	Text string

	// TokensUsed is the total token consumption across model calls.
	TokensUsed int

	// ToolCalls counts the tool executions performed during the run.
	ToolCalls int
}

type runOptions struct {
	extraTools []tools.Tool
	onText     func(delta string)
}

// RunOption customizes a single run.
type RunOption func(*runOptions)

// WithTools adds tools for this run only, on top of the agent's own.
// Later tools shadow earlier ones with the same name.
func WithTools(ts ...tools.Tool) RunOption {
	return func(o *runOptions) { o.extraTools = append(o.extraTools, ts...) }
}

// WithStreamFunc streams assistant text deltas to fn as they arrive.
func WithStreamFunc(fn func(delta string)) RunOption {
	return func(o *runOptions) { o.onText = fn }
}

// Run processes input against the thread. The input and every message
// produced during the run are appended to the thread.
//
// An empty input runs the model on the existing history, which is how
// a workflow resumes an agent after a handoff.
func (a *Agent) Run(ctx context.Context, input string, thread *Thread, opts ...RunOption) (result *RunResult, err error) {
	options := &runOptions{}
	for _, opt := range opts {
		opt(options)
	}

	tracer := observability.GetTracer("relay.agent")
	ctx, span := tracer.Start(ctx, observability.SpanAgentRun)
	span.SetAttributes(attribute.String(observability.AttrAgentName, a.name))
	if observability.CaptureContent() && input != "" {
		span.SetAttributes(attribute.String(observability.AttrInputContent, input))
	}
	defer span.End()

	start := time.Now()
	defer func() {
		tokens := 0
		if result != nil {
			tokens = result.TokensUsed
		}
		observability.GetGlobalMetrics().RecordAgentRun(ctx, a.name, time.Since(start), tokens, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if input != "" {
		thread.Append(llms.Message{Role: llms.RoleUser, Content: input})
	}

	toolset, byName := a.assembleTools(options.extraTools)
	defs := make([]llms.ToolDefinition, 0, len(toolset))
	for _, t := range toolset {
		defs = append(defs, tools.Definition(t))
	}

	result = &RunResult{}
	for iteration := 0; iteration < a.maxToolIterations; iteration++ {
		messages := a.buildWindow(thread)

		text, calls, tokens, genErr := a.generate(ctx, messages, defs, options.onText)
		if genErr != nil {
			err = fmt.Errorf("agent %s: %w", a.name, genErr)
			return nil, err
		}
		result.TokensUsed += tokens

		assistant := llms.Message{
			Role:      llms.RoleAssistant,
			Content:   text,
			Name:      a.name,
			ToolCalls: calls,
		}
		thread.Append(assistant)

		if len(calls) == 0 {
			result.Text = text
			if observability.CaptureContent() {
				span.SetAttributes(attribute.String(observability.AttrOutputContent, text))
			}
			return result, nil
		}

		for _, call := range calls {
			thread.Append(a.executeToolCall(ctx, byName, call))
			result.ToolCalls++
		}
	}

	err = fmt.Errorf("agent %s: exceeded %d tool iterations without a final response", a.name, a.maxToolIterations)
	return nil, err
}

// assembleTools merges per-run tools over the agent's own, deduplicated
// by name with later entries winning.
func (a *Agent) assembleTools(extra []tools.Tool) ([]tools.Tool, map[string]tools.Tool) {
	byName := make(map[string]tools.Tool, len(a.tools)+len(extra))
	var order []string
	for _, t := range append(append([]tools.Tool{}, a.tools...), extra...) {
		if _, seen := byName[t.Name()]; !seen {
			order = append(order, t.Name())
		}
		byName[t.Name()] = t
	}

	out := make([]tools.Tool, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, byName
}

// buildWindow prepends the system instructions to the thread window.
func (a *Agent) buildWindow(thread *Thread) []llms.Message {
	window := thread.Window()
	if a.instructions == "" {
		return window
	}
	messages := make([]llms.Message, 0, len(window)+1)
	messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: a.instructions})
	return append(messages, window...)
}

// generate performs one model call, streaming when a text handler is set.
func (a *Agent) generate(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition, onText func(string)) (string, []*llms.ToolCall, int, error) {
	if onText == nil {
		return a.provider.Generate(ctx, messages, defs)
	}

	ch, err := a.provider.GenerateStreaming(ctx, messages, defs)
	if err != nil {
		return "", nil, 0, err
	}

	var (
		text   string
		calls  []*llms.ToolCall
		tokens int
	)
	for chunk := range ch {
		switch chunk.Type {
		case llms.ChunkText:
			text += chunk.Text
			onText(chunk.Text)
		case llms.ChunkToolCall:
			calls = append(calls, chunk.ToolCall)
		case llms.ChunkDone:
			tokens = chunk.Tokens
		case llms.ChunkError:
			return "", nil, tokens, chunk.Err
		}
	}
	return text, calls, tokens, nil
}

// executeToolCall runs one requested tool and returns the tool message
// to append. Failures become failed results the model can recover from.
func (a *Agent) executeToolCall(ctx context.Context, byName map[string]tools.Tool, call *llms.ToolCall) llms.Message {
	tracer := observability.GetTracer("relay.agent")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution)
	span.SetAttributes(attribute.String(observability.AttrToolName, call.Name))
	defer span.End()

	start := time.Now()

	var result *tools.Result
	tool, ok := byName[call.Name]
	if !ok {
		result = tools.Failure(fmt.Sprintf("unknown tool %q", call.Name))
	} else {
		var err error
		result, err = tool.Call(ctx, call.Args)
		if err != nil {
			result = tools.Failure(err.Error())
		}
	}

	var recordErr error
	if result.Failed() {
		recordErr = fmt.Errorf("%s", result.Error)
		span.SetStatus(codes.Error, result.Error)
		a.logger.Warn("tool call failed", "tool", call.Name, "error", result.Error)
	} else {
		a.logger.Debug("tool call completed", "tool", call.Name, "duration", time.Since(start))
	}
	observability.GetGlobalMetrics().RecordToolExecution(ctx, call.Name, time.Since(start), recordErr)

	return llms.Message{
		Role:       llms.RoleTool,
		Content:    result.Text(),
		Name:       call.Name,
		ToolCallID: call.ID,
	}
}
