// Command relay runs agents and handoff workflows against Azure OpenAI.
//
// Usage:
//
//	relay chat --config examples/assistant.yaml
//	relay run "What's the weather in Tokyo?" --agent assistant
//	relay workflow --config examples/customer_support.yaml
//	relay serve --config examples/assistant.yaml
//
// Without --config, a single assistant agent is built from the
// AZURE_OPENAI_* environment variables.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/relay-agents/relay/pkg/config"
	"github.com/relay-agents/relay/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Chat     ChatCmd     `cmd:"" help:"Interactive chat with an agent."`
	Run      RunCmd      `cmd:"" help:"Run an agent on a single message."`
	Workflow WorkflowCmd `cmd:"" help:"Run a handoff workflow interactively."`
	Serve    ServeCmd    `cmd:"" help:"Start the dev UI server."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("relay version %s\n", version)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("relay"),
		kong.Description("Agents and handoff workflows on Azure OpenAI."),
		kong.UsageOnError(),
	)

	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env files: %v\n", err)
	}

	output := os.Stderr
	if cli.LogFile != "" {
		f, err := os.OpenFile(cli.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		output = f
	}
	logger.Init(logger.ParseLevel(cli.LogLevel), output, cli.LogFormat)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
