package workflow

import "github.com/relay-agents/relay/pkg/llms"

// Event is emitted on the stream returned by RunStream.
type Event interface {
	event()
}

// AgentTurnEvent reports a completed agent turn.
type AgentTurnEvent struct {
	// Agent that produced the response.
	Agent string

	// Text is the agent's full response for the turn.
	Text string

	// TokensUsed across the model calls of the turn.
	TokensUsed int
}

// TextDeltaEvent carries an incremental piece of assistant text.
// Emitted only when the workflow was built with streaming enabled.
type TextDeltaEvent struct {
	Agent string
	Delta string
}

// HandoffEvent reports that control moved to another agent.
type HandoffEvent struct {
	From string
	To   string
}

// UserInputRequest asks the caller for the next user message.
type UserInputRequest struct {
	// RequestID must be echoed back through SendResponses.
	RequestID string

	// Agent currently holding the conversation.
	Agent string

	// Prompt is the agent's last response, shown to the user.
	Prompt string
}

// RequestInfoEvent signals the workflow is parked waiting for user
// input. Answer it with SendResponses.
type RequestInfoEvent struct {
	Request *UserInputRequest
}

// OutputEvent is the final event of a successful run and carries the
// whole conversation.
type OutputEvent struct {
	Conversation []llms.Message
}

// ErrorEvent is the final event of a failed run.
type ErrorEvent struct {
	Err error
}

func (AgentTurnEvent) event()   {}
func (TextDeltaEvent) event()   {}
func (HandoffEvent) event()     {}
func (RequestInfoEvent) event() {}
func (OutputEvent) event()      {}
func (ErrorEvent) event()       {}
