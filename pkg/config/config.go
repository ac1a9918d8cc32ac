// Package config provides configuration types and loading for the relay
// agent framework.
//
// Configuration comes from a YAML file with environment variable expansion,
// or entirely from environment variables ("zero config") when no file is
// given. .env files are loaded first via LoadEnvFiles.
package config

import (
	"fmt"
	"os"
)

// Config is the root configuration.
type Config struct {
	// LLM configures the Azure OpenAI provider shared by all agents.
	LLM AzureOpenAIConfig `yaml:"llm,omitempty"`

	// Agents are the configured agents, keyed by name.
	Agents map[string]*AgentConfig `yaml:"agents,omitempty"`

	// Workflow optionally configures a handoff workflow over the agents.
	Workflow *HandoffConfig `yaml:"workflow,omitempty"`

	// Observability configures tracing and metrics.
	Observability ObservabilityConfig `yaml:"observability,omitempty"`

	// Server configures the dev UI HTTP server.
	Server ServerConfig `yaml:"server,omitempty"`
}

// ObservabilityConfig configures tracing and metrics.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on distributed tracing.
	Enabled bool `yaml:"enabled,omitempty"`

	// Exporter is "otlp" (default) or "stdout".
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint,omitempty"`

	// SamplingRate: 0.0 (none) to 1.0 (all). Default 1.0.
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`

	// ServiceName identifies this service in traces.
	ServiceName string `yaml:"service_name,omitempty"`

	// Insecure disables TLS toward the collector. Default true.
	Insecure *bool `yaml:"insecure,omitempty"`

	// CaptureContent records message and prompt text on spans. Traces then
	// contain user content; leave off outside development.
	CaptureContent bool `yaml:"capture_content,omitempty"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns on metrics collection.
	Enabled bool `yaml:"enabled,omitempty"`

	// Path is where the dev UI server exposes metrics. Default "/metrics".
	Path string `yaml:"path,omitempty"`
}

// ServerConfig configures the dev UI HTTP server.
type ServerConfig struct {
	// Host to bind. Default "127.0.0.1" (dev UI is a local debugging tool).
	Host string `yaml:"host,omitempty"`

	// Port to listen on. Default 8080.
	Port int `yaml:"port,omitempty"`
}

// SetDefaults applies defaults throughout the tree. Environment variables
// fill tracing settings the way the example scripts expect:
// OTEL_EXPORTER_OTLP_ENDPOINT enables OTLP export, and
// APPLICATIONINSIGHTS_CONNECTION_STRING enables tracing toward a collector
// that forwards to Application Insights.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()

	for name, agent := range c.Agents {
		if agent == nil {
			agent = &AgentConfig{}
			c.Agents[name] = agent
		}
		if agent.Name == "" {
			agent.Name = name
		}
		agent.SetDefaults()
	}

	if c.Workflow != nil {
		c.Workflow.SetDefaults()
	}

	t := &c.Observability.Tracing
	if t.Endpoint == "" {
		t.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if t.Endpoint != "" || os.Getenv("APPLICATIONINSIGHTS_CONNECTION_STRING") != "" {
		t.Enabled = true
	}
	if t.Exporter == "" {
		t.Exporter = "otlp"
	}
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
	if t.SamplingRate == 0 {
		t.SamplingRate = 1.0
	}
	if t.ServiceName == "" {
		t.ServiceName = "relay"
	}
	if t.Insecure == nil {
		insecure := true
		t.Insecure = &insecure
	}

	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}

	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent must be configured")
	}
	for name, agent := range c.Agents {
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agent %q: %w", name, err)
		}
	}

	if c.Workflow != nil {
		if err := c.Workflow.Validate(c.Agents); err != nil {
			return err
		}
	}

	t := c.Observability.Tracing
	if t.Enabled {
		if t.SamplingRate < 0 || t.SamplingRate > 1 {
			return fmt.Errorf("tracing: sampling_rate must be between 0 and 1, got %f", t.SamplingRate)
		}
		switch t.Exporter {
		case "otlp", "stdout":
		default:
			return fmt.Errorf("tracing: invalid exporter %q (valid: otlp, stdout)", t.Exporter)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}

	return nil
}
