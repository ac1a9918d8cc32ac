// Package llms defines the chat message model and the Azure OpenAI provider.
package llms

import "context"

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// Name carries the author for assistant messages in multi-agent
	// conversations, and the tool name for tool results.
	Name string `json:"name,omitempty"`

	// ToolCalls are calls requested by the assistant.
	ToolCalls []*ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-result message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolDefinition describes a callable function exposed to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Usage reports token consumption of a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Stream chunk types.
const (
	ChunkText     = "text"
	ChunkToolCall = "tool_call"
	ChunkDone     = "done"
	ChunkError    = "error"
)

// StreamChunk is one unit of a streaming response.
type StreamChunk struct {
	Type     string // "text", "tool_call", "done", "error"
	Text     string
	ToolCall *ToolCall
	Tokens   int
	Err      error
}

// Provider generates chat completions.
type Provider interface {
	// Generate returns the assistant text, any requested tool calls, and
	// total tokens used.
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []*ToolCall, int, error)

	// GenerateStreaming emits chunks on the returned channel. The channel
	// is closed after a final "done" (or "error") chunk.
	GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error)

	// GetModelName returns the model or deployment identifier.
	GetModelName() string

	Close() error
}
