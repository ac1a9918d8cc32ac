// Package workflow orchestrates multi-agent conversations where agents
// hand the conversation off to each other through synthetic transfer
// tools exposed to the model.
package workflow

import (
	"fmt"
	"strings"

	"github.com/relay-agents/relay/pkg/agent"
	"github.com/relay-agents/relay/pkg/config"
)

// TerminationCondition decides, given the latest user reply, whether
// the conversation is over.
type TerminationCondition func(reply string) bool

// TerminateOnKeyword ends the conversation when the user's reply
// contains the keyword (case-insensitive).
func TerminateOnKeyword(keyword string) TerminationCondition {
	lowered := strings.ToLower(keyword)
	return func(reply string) bool {
		return strings.Contains(strings.ToLower(reply), lowered)
	}
}

// HandoffBuilder assembles a handoff workflow.
type HandoffBuilder struct {
	name         string
	participants []*agent.Agent
	coordinator  string
	terminate    TerminationCondition
	maxTurns     int
	thread       *agent.Thread
	streaming    bool
}

// NewHandoffBuilder starts a builder for a named workflow.
func NewHandoffBuilder(name string) *HandoffBuilder {
	return &HandoffBuilder{name: name}
}

// WithParticipants adds the agents taking part in the conversation.
func (b *HandoffBuilder) WithParticipants(agents ...*agent.Agent) *HandoffBuilder {
	b.participants = append(b.participants, agents...)
	return b
}

// WithCoordinator names the agent that opens the conversation.
func (b *HandoffBuilder) WithCoordinator(name string) *HandoffBuilder {
	b.coordinator = name
	return b
}

// WithTerminationCondition sets when the conversation ends. Without
// one the workflow runs until its context is cancelled or MaxTurns is
// reached.
func (b *HandoffBuilder) WithTerminationCondition(cond TerminationCondition) *HandoffBuilder {
	b.terminate = cond
	return b
}

// WithMaxTurns caps the number of agent turns. Defaults to 50.
func (b *HandoffBuilder) WithMaxTurns(n int) *HandoffBuilder {
	b.maxTurns = n
	return b
}

// WithThread runs the workflow on an existing thread instead of a
// fresh one.
func (b *HandoffBuilder) WithThread(t *agent.Thread) *HandoffBuilder {
	b.thread = t
	return b
}

// WithStreaming enables TextDeltaEvent emission for agent responses.
func (b *HandoffBuilder) WithStreaming(enabled bool) *HandoffBuilder {
	b.streaming = enabled
	return b
}

// Build validates the configuration and returns the workflow.
func (b *HandoffBuilder) Build() (*Workflow, error) {
	if b.name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	if len(b.participants) == 0 {
		return nil, fmt.Errorf("workflow %s: at least one participant is required", b.name)
	}

	agents := make(map[string]*agent.Agent, len(b.participants))
	for _, p := range b.participants {
		if _, dup := agents[p.Name()]; dup {
			return nil, fmt.Errorf("workflow %s: duplicate participant %q", b.name, p.Name())
		}
		agents[p.Name()] = p
	}

	coordinator := b.coordinator
	if coordinator == "" {
		coordinator = b.participants[0].Name()
	}
	if _, ok := agents[coordinator]; !ok {
		return nil, fmt.Errorf("workflow %s: coordinator %q is not a participant", b.name, coordinator)
	}

	maxTurns := b.maxTurns
	if maxTurns <= 0 {
		maxTurns = config.DefaultMaxTurns
	}

	thread := b.thread
	if thread == nil {
		thread = agent.NewThread()
	}

	return &Workflow{
		name:        b.name,
		agents:      agents,
		coordinator: coordinator,
		terminate:   b.terminate,
		maxTurns:    maxTurns,
		thread:      thread,
		streaming:   b.streaming,
		responses:   make(chan map[string]string),
		pending:     make(map[string]*UserInputRequest),
	}, nil
}

// FromConfig builds a handoff workflow from configuration against a
// set of constructed agents. The conversation runs on the given thread;
// a nil thread gets a fresh one.
func FromConfig(cfg *config.HandoffConfig, agents map[string]*agent.Agent, thread *agent.Thread) (*Workflow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	cfg.SetDefaults()

	builder := NewHandoffBuilder(cfg.Name).
		WithCoordinator(cfg.Coordinator).
		WithMaxTurns(cfg.MaxTurns)

	if thread != nil {
		builder.WithThread(thread)
	}

	for _, name := range cfg.Participants {
		a, ok := agents[name]
		if !ok {
			return nil, fmt.Errorf("workflow %s: unknown participant %q", cfg.Name, name)
		}
		builder.WithParticipants(a)
	}

	if cfg.TerminateOnKeyword != "" {
		builder.WithTerminationCondition(TerminateOnKeyword(cfg.TerminateOnKeyword))
	}

	return builder.Build()
}
