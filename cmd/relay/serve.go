package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/relay-agents/relay/pkg/server"
)

// ServeCmd starts the dev UI server.
type ServeCmd struct {
	Host string `help:"Host to bind (overrides config)."`
	Port int    `help:"Port to listen on (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	rt, err := buildRuntime(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	serverCfg := rt.cfg.Server
	if c.Host != "" {
		serverCfg.Host = c.Host
	}
	if c.Port != 0 {
		serverCfg.Port = c.Port
	}

	srv := server.New(serverCfg, rt.cfg.Observability.Metrics.Path, rt.agents, rt.threadOptions()...)

	fmt.Printf("Dev UI ready at http://%s\n", srv.Addr())
	fmt.Printf("   Agents:  http://%s/agents\n", srv.Addr())
	fmt.Printf("   Health:  http://%s/healthz\n", srv.Addr())
	if rt.cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics: http://%s%s\n", srv.Addr(), rt.cfg.Observability.Metrics.Path)
	}
	if rt.cfg.Observability.Tracing.Enabled {
		fmt.Printf("   Tracing: %s (%s)\n", rt.cfg.Observability.Tracing.Exporter, rt.cfg.Observability.Tracing.Endpoint)
	}

	return srv.Start(ctx)
}
