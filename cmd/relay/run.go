package main

import (
	"context"
	"fmt"

	"github.com/relay-agents/relay/pkg/agent"
)

// RunCmd runs an agent on a single message and prints the response.
type RunCmd struct {
	Message string `arg:"" help:"The user message."`
	Agent   string `help:"Agent name (defaults to the only configured agent)."`
	Stream  bool   `default:"true" negatable:"" help:"Stream the response as it is generated."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx := context.Background()

	rt, err := buildRuntime(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	a, err := rt.agent(c.Agent)
	if err != nil {
		return err
	}

	thread := rt.newThread()

	if c.Stream {
		_, err = a.Run(ctx, c.Message, thread, agent.WithStreamFunc(func(delta string) {
			fmt.Print(delta)
		}))
		fmt.Println()
		return err
	}

	result, err := a.Run(ctx, c.Message, thread)
	if err != nil {
		return err
	}
	fmt.Println(result.Text)
	return nil
}
