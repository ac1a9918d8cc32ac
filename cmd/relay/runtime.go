package main

import (
	"context"
	"fmt"

	"github.com/relay-agents/relay/pkg/agent"
	"github.com/relay-agents/relay/pkg/azauth"
	"github.com/relay-agents/relay/pkg/config"
	"github.com/relay-agents/relay/pkg/llms"
	"github.com/relay-agents/relay/pkg/observability"
	"github.com/relay-agents/relay/pkg/tools"
	"github.com/relay-agents/relay/pkg/utils"
)

// runtime bundles everything a command needs: configuration, the model
// provider, the tool registry, and the constructed agents.
type runtime struct {
	cfg      *config.Config
	provider llms.Provider
	registry *tools.Registry
	agents   map[string]*agent.Agent
	counter  *utils.TokenCounter
	obs      *observability.Manager
}

// buildRuntime loads configuration (file or zero-config from env),
// initializes observability, and constructs the provider and agents.
func buildRuntime(ctx context.Context, configPath string) (*runtime, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.ZeroConfig()
	}
	if err != nil {
		return nil, err
	}

	obs := observability.NewManager(observability.Config{
		Tracing: observability.TracerConfig{
			Enabled:        cfg.Observability.Tracing.Enabled,
			Exporter:       cfg.Observability.Tracing.Exporter,
			Endpoint:       cfg.Observability.Tracing.Endpoint,
			SamplingRate:   cfg.Observability.Tracing.SamplingRate,
			ServiceName:    cfg.Observability.Tracing.ServiceName,
			Insecure:       cfg.Observability.Tracing.Insecure == nil || *cfg.Observability.Tracing.Insecure,
			CaptureContent: cfg.Observability.Tracing.CaptureContent,
		},
		Metrics: observability.MetricsConfig{
			Enabled: cfg.Observability.Metrics.Enabled,
		},
	})
	if err := obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	var tokenProvider azauth.TokenProvider
	if cfg.LLM.APIKey == "" {
		cred, err := azauth.NewCredential(cfg.LLM.Credential)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		tokenProvider = azauth.NewBearerTokenProvider(cred, azauth.CognitiveServicesScope)
	}

	provider, err := llms.NewAzureOpenAIProvider(&cfg.LLM, tokenProvider)
	if err != nil {
		return nil, err
	}

	counter, err := utils.NewTokenCounter(cfg.LLM.Deployment)
	if err != nil {
		return nil, fmt.Errorf("failed to build token counter: %w", err)
	}

	registry := tools.NewRegistry()
	registerBuiltinTools(registry)

	// Zero config: the generated assistant gets every built-in tool.
	if configPath == "" {
		if a, ok := cfg.Agents["assistant"]; ok && len(a.Tools) == 0 {
			for _, t := range registry.List() {
				a.Tools = append(a.Tools, t.Name())
			}
		}
	}

	agents := make(map[string]*agent.Agent, len(cfg.Agents))
	for name, agentCfg := range cfg.Agents {
		toolset, err := registry.Select(agentCfg.Tools)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		a, err := agent.New(agentCfg, provider, toolset)
		if err != nil {
			return nil, err
		}
		agents[name] = a
	}

	return &runtime{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		agents:   agents,
		counter:  counter,
		obs:      obs,
	}, nil
}

// threadOptions carries the configured context budget into every thread.
func (r *runtime) threadOptions() []agent.ThreadOption {
	if r.cfg.LLM.MaxContextTokens <= 0 {
		return nil
	}
	return []agent.ThreadOption{agent.WithMaxTokens(r.cfg.LLM.MaxContextTokens, r.counter)}
}

func (r *runtime) newThread(opts ...agent.ThreadOption) *agent.Thread {
	return agent.NewThread(append(r.threadOptions(), opts...)...)
}

// agent returns the named agent, or the only one when name is empty.
func (r *runtime) agent(name string) (*agent.Agent, error) {
	if name == "" {
		if len(r.agents) == 1 {
			for _, a := range r.agents {
				return a, nil
			}
		}
		return nil, fmt.Errorf("multiple agents configured; pick one with --agent")
	}
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", name)
	}
	return a, nil
}

func (r *runtime) Close(ctx context.Context) {
	_ = r.provider.Close()
	_ = r.obs.Shutdown(ctx)
}
