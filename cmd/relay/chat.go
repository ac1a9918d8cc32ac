package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/relay-agents/relay/pkg/agent"
)

// ChatCmd starts an interactive chat session with one agent.
type ChatCmd struct {
	Agent  string `help:"Agent name (defaults to the only configured agent)."`
	Thread string `help:"Resume a stored thread by ID (requires --store)."`
	Store  string `help:"SQLite database for thread persistence." type:"path"`
}

// Validate is called by kong after flag parsing.
func (c *ChatCmd) Validate() error {
	if c.Thread != "" && c.Store == "" {
		return fmt.Errorf("--thread requires --store to resume a stored thread")
	}
	return nil
}

func (c *ChatCmd) Run(cli *CLI) error {
	if err := c.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := buildRuntime(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	a, err := rt.agent(c.Agent)
	if err != nil {
		return err
	}

	var threadOpts []agent.ThreadOption
	if c.Thread != "" {
		threadOpts = append(threadOpts, agent.WithThreadID(c.Thread))
	}
	var store agent.MessageStore
	if c.Store != "" {
		store, err = agent.NewSQLiteStore(c.Store)
		if err != nil {
			return err
		}
		defer store.Close()
		threadOpts = append(threadOpts, agent.WithStore(store))
	}
	thread := rt.newThread(threadOpts...)
	if c.Thread != "" && store != nil {
		if err := thread.Load(ctx); err != nil {
			return err
		}
	}

	// Piped input: answer once and exit.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		return c.answer(ctx, a, thread, store, strings.TrimSpace(string(data)))
	}

	fmt.Printf("Chatting with %s. Type /quit to exit.\n\n", a.Name())
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("You: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			return nil
		}

		if err := c.answer(ctx, a, thread, store, input); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

func (c *ChatCmd) answer(ctx context.Context, a *agent.Agent, thread *agent.Thread, store agent.MessageStore, input string) error {
	if input == "" {
		return nil
	}

	fmt.Printf("%s: ", a.Name())
	_, err := a.Run(ctx, input, thread, agent.WithStreamFunc(func(delta string) {
		fmt.Print(delta)
	}))
	fmt.Println()
	if err != nil {
		return err
	}

	if store != nil {
		if err := thread.Save(ctx); err != nil {
			return fmt.Errorf("failed to save thread: %w", err)
		}
	}
	return nil
}
