package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfigYAML = `
llm:
  endpoint: ${TEST_AOAI_ENDPOINT}
  deployment: gpt-4o
  api_version: 2024-08-01-preview
  credential: cli
  max_context_tokens: 8000

agents:
  triage:
    description: "Routes customers"
    instructions: "You route customers."
  refund_agent:
    instructions: "You process refunds."
    tools:
      - process_refund
    max_tool_iterations: 5

workflow:
  name: support
  coordinator: triage
  participants:
    - triage
    - refund_agent
  terminate_on_keyword: bye

observability:
  metrics:
    enabled: true

server:
  port: 9090
`

func TestParseFullConfig(t *testing.T) {
	t.Setenv("TEST_AOAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("APPLICATIONINSIGHTS_CONNECTION_STRING", "")

	cfg, err := Parse([]byte(fullConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://example.openai.azure.com", cfg.LLM.Endpoint)
	assert.Equal(t, "gpt-4o", cfg.LLM.Deployment)
	assert.Equal(t, CredentialCLI, cfg.LLM.Credential)
	assert.Equal(t, 8000, cfg.LLM.MaxContextTokens)

	require.Len(t, cfg.Agents, 2)
	triage := cfg.Agents["triage"]
	require.NotNil(t, triage)
	assert.Equal(t, "triage", triage.Name, "name should be filled from the map key")
	assert.Equal(t, DefaultMaxToolIterations, triage.MaxToolIterations)
	assert.Equal(t, 5, cfg.Agents["refund_agent"].MaxToolIterations)

	require.NotNil(t, cfg.Workflow)
	assert.Equal(t, "support", cfg.Workflow.Name)
	assert.Equal(t, DefaultMaxTurns, cfg.Workflow.MaxTurns)

	assert.True(t, cfg.Observability.Metrics.Enabled)
	assert.False(t, cfg.Observability.Tracing.Enabled)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestParseTracingEnabledByEnv(t *testing.T) {
	t.Setenv("TEST_AOAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Parse([]byte(fullConfigYAML))
	require.NoError(t, err)

	assert.True(t, cfg.Observability.Tracing.Enabled)
	assert.Equal(t, "collector:4317", cfg.Observability.Tracing.Endpoint)
	assert.Equal(t, "otlp", cfg.Observability.Tracing.Exporter)
}

func TestParseValidationErrors(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no agents",
			yaml:    "llm:\n  deployment: gpt-4o\n",
			wantErr: "at least one agent",
		},
		{
			name: "missing instructions",
			yaml: `
agents:
  helper:
    description: "no instructions"
`,
			wantErr: "instructions are required",
		},
		{
			name: "unknown workflow participant",
			yaml: `
agents:
  a:
    instructions: "x"
  b:
    instructions: "y"
workflow:
  coordinator: a
  participants: [a, ghost]
`,
			wantErr: "not a configured agent",
		},
		{
			name: "coordinator not a participant",
			yaml: `
agents:
  a:
    instructions: "x"
  b:
    instructions: "y"
workflow:
  coordinator: ghost
  participants: [a, b]
`,
			wantErr: "must be listed in participants",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr),
				"error %q should contain %q", err.Error(), tt.wantErr)
		})
	}
}

func TestZeroConfig(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o")
	t.Setenv("AZURE_OPENAI_API_VERSION", "")

	cfg, err := ZeroConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://example.openai.azure.com", cfg.LLM.Endpoint, "trailing slash should be trimmed")
	assert.Equal(t, "gpt-4o", cfg.LLM.Deployment)
	assert.Equal(t, DefaultAPIVersion, cfg.LLM.APIVersion)
	assert.Equal(t, DefaultMaxContextTokens, cfg.LLM.MaxContextTokens)
	require.Contains(t, cfg.Agents, "assistant")
}

func TestZeroConfigRequiresEndpoint(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")

	_, err := ZeroConfig()
	require.Error(t, err)
}
