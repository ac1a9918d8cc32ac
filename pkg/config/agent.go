package config

import (
	"fmt"
	"regexp"
)

var agentNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

const (
	// DefaultMaxToolIterations bounds the tool-calling loop of one run.
	DefaultMaxToolIterations = 10

	// DefaultMaxTurns bounds the agent turns of a workflow.
	DefaultMaxTurns = 50
)

// AgentConfig configures an agent.
type AgentConfig struct {
	// Name is the unique identifier of the agent. Filled from the map key
	// when loaded from a config file.
	Name string `yaml:"name,omitempty"`

	// Description says what the agent does. Shown in agent cards and used
	// as routing context in handoff workflows.
	Description string `yaml:"description,omitempty"`

	// Instructions is the system prompt for the agent.
	Instructions string `yaml:"instructions,omitempty"`

	// Tools lists tool names this agent can use.
	Tools []string `yaml:"tools,omitempty"`

	// MaxToolIterations bounds the tool-calling loop for a single run.
	MaxToolIterations int `yaml:"max_tool_iterations,omitempty"`
}

// SetDefaults applies default values.
func (c *AgentConfig) SetDefaults() {
	if c.MaxToolIterations == 0 {
		c.MaxToolIterations = DefaultMaxToolIterations
	}
}

// Validate checks the config for errors.
func (c *AgentConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if !agentNamePattern.MatchString(c.Name) {
		return fmt.Errorf("invalid agent name %q (must start with a letter, contain only letters, digits, '_' and '-')", c.Name)
	}
	if c.Instructions == "" {
		return fmt.Errorf("agent %q: instructions are required", c.Name)
	}
	if c.MaxToolIterations < 1 {
		return fmt.Errorf("agent %q: max_tool_iterations must be positive", c.Name)
	}
	return nil
}

// HandoffConfig configures a handoff workflow.
type HandoffConfig struct {
	// Name identifies the workflow in logs and traces.
	Name string `yaml:"name,omitempty"`

	// Coordinator is the agent that receives the initial user input.
	Coordinator string `yaml:"coordinator,omitempty"`

	// Participants lists the agent names taking part in the workflow.
	// The coordinator must be a participant.
	Participants []string `yaml:"participants,omitempty"`

	// TerminateOnKeyword ends the workflow when the last conversation
	// message contains this keyword (case-insensitive). Optional.
	TerminateOnKeyword string `yaml:"terminate_on_keyword,omitempty"`

	// MaxTurns bounds the number of agent turns before the workflow is
	// force-completed. Guards against routing loops.
	MaxTurns int `yaml:"max_turns,omitempty"`
}

// SetDefaults applies default values.
func (c *HandoffConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "handoff"
	}
	if c.MaxTurns == 0 {
		c.MaxTurns = DefaultMaxTurns
	}
}

// Validate checks the workflow config against the configured agents.
func (c *HandoffConfig) Validate(agents map[string]*AgentConfig) error {
	if len(c.Participants) < 2 {
		return fmt.Errorf("workflow %q: at least two participants are required", c.Name)
	}
	if c.Coordinator == "" {
		return fmt.Errorf("workflow %q: coordinator is required", c.Name)
	}

	seen := make(map[string]bool, len(c.Participants))
	coordinatorListed := false
	for _, name := range c.Participants {
		if seen[name] {
			return fmt.Errorf("workflow %q: duplicate participant %q", c.Name, name)
		}
		seen[name] = true
		if _, ok := agents[name]; !ok {
			return fmt.Errorf("workflow %q: participant %q is not a configured agent", c.Name, name)
		}
		if name == c.Coordinator {
			coordinatorListed = true
		}
	}
	if !coordinatorListed {
		return fmt.Errorf("workflow %q: coordinator %q must be listed in participants", c.Name, c.Coordinator)
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("workflow %q: max_turns must be positive", c.Name)
	}
	return nil
}
