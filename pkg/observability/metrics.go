package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures Prometheus-backed metrics collection.
type MetricsConfig struct {
	Enabled bool
}

// InitMetrics builds the metric instruments behind a Prometheus exporter.
// The exporter registers with the default Prometheus registry, which the dev
// UI server exposes via promhttp.
func InitMetrics(cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("relay")

	agentDuration, err := meter.Float64Histogram(
		"relay_agent_run_duration_seconds",
		metric.WithDescription("Agent run duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent duration histogram: %w", err)
	}

	agentRuns, err := meter.Int64Counter(
		"relay_agent_runs_total",
		metric.WithDescription("Total agent runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent runs counter: %w", err)
	}

	agentErrors, err := meter.Int64Counter(
		"relay_agent_errors_total",
		metric.WithDescription("Total agent errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent errors counter: %w", err)
	}

	agentTokens, err := meter.Int64Counter(
		"relay_agent_tokens_used_total",
		metric.WithDescription("Total tokens used by agents"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent tokens counter: %w", err)
	}

	toolDuration, err := meter.Float64Histogram(
		"relay_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	toolCalls, err := meter.Int64Counter(
		"relay_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	toolErrors, err := meter.Int64Counter(
		"relay_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	llmDuration, err := meter.Float64Histogram(
		"relay_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	llmInputTokens, err := meter.Int64Counter(
		"relay_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	llmOutputTokens, err := meter.Int64Counter(
		"relay_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	llmErrors, err := meter.Int64Counter(
		"relay_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	return &PrometheusMetrics{
		agentDuration:   agentDuration,
		agentRunsTotal:  agentRuns,
		agentErrorsTotal: agentErrors,
		agentTokensTotal: agentTokens,
		toolDuration:    toolDuration,
		toolCallsTotal:  toolCalls,
		toolErrorsTotal: toolErrors,
		llmDuration:     llmDuration,
		llmInputTokens:  llmInputTokens,
		llmOutputTokens: llmOutputTokens,
		llmErrorsTotal:  llmErrors,
	}, nil
}
