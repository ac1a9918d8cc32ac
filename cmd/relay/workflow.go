package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/relay-agents/relay/pkg/workflow"
)

// WorkflowCmd runs the configured handoff workflow interactively. The
// coordinator agent opens the conversation and agents transfer control
// between each other; whenever an agent needs user input the command
// prompts on stdin.
type WorkflowCmd struct {
	Message string `arg:"" optional:"" help:"Opening user message (prompted for when omitted)."`
	Events  bool   `help:"Print handoff and turn events."`
}

func (c *WorkflowCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := buildRuntime(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if rt.cfg.Workflow == nil {
		return fmt.Errorf("no workflow configured (add a 'workflow' section to the config)")
	}

	wf, err := workflow.FromConfig(rt.cfg.Workflow, rt.agents, rt.newThread())
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	input := strings.TrimSpace(c.Message)
	for input == "" {
		fmt.Print("You: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		input = strings.TrimSpace(line)
	}

	events, err := wf.RunStream(ctx, input)
	if err != nil {
		return err
	}

	for event := range events {
		switch e := event.(type) {
		case workflow.AgentTurnEvent:
			fmt.Printf("%s: %s\n", e.Agent, e.Text)
			if c.Events {
				fmt.Printf("  [turn: %d tokens]\n", e.TokensUsed)
			}
		case workflow.HandoffEvent:
			if c.Events {
				fmt.Printf("  [handoff: %s -> %s]\n", e.From, e.To)
			}
		case workflow.RequestInfoEvent:
			fmt.Print("You: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			reply := strings.TrimSpace(line)
			if err := wf.SendResponses(ctx, map[string]string{e.Request.RequestID: reply}); err != nil {
				return err
			}
		case workflow.OutputEvent:
			fmt.Printf("\nConversation finished (%d messages).\n", len(e.Conversation))
		case workflow.ErrorEvent:
			return e.Err
		}
	}
	return nil
}
