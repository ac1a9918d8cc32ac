package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// Defaults to an inert recorder so callers never need a nil check.
	globalMetrics Metrics = &PrometheusMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records agent, tool and LLM activity. Implementations must be
// nil-safe: recording on an uninitialized instance is a no-op.
type Metrics interface {
	RecordAgentRun(ctx context.Context, agent string, duration time.Duration, tokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
}

// PrometheusMetrics implements Metrics over OTel instruments backed by the
// Prometheus exporter.
type PrometheusMetrics struct {
	agentDuration    metric.Float64Histogram
	agentRunsTotal   metric.Int64Counter
	agentErrorsTotal metric.Int64Counter
	agentTokensTotal metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter
}

func (m *PrometheusMetrics) RecordAgentRun(ctx context.Context, agent string, duration time.Duration, tokens int, err error) {
	if m == nil || m.agentDuration == nil || m.agentRunsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("agent", agent),
	}

	m.agentDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.agentRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if tokens > 0 && m.agentTokensTotal != nil {
		m.agentTokensTotal.Add(ctx, int64(tokens), metric.WithAttributes(attrs...))
	}

	if err != nil && m.agentErrorsTotal != nil {
		m.agentErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil || m.toolCallsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
	}

	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.toolErrorsTotal != nil {
		m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil || m.llmInputTokens == nil || m.llmOutputTokens == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))

	if err != nil && m.llmErrorsTotal != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// SetGlobalMetrics installs the process-wide metrics recorder.
func SetGlobalMetrics(m Metrics) {
	if m == nil {
		m = &PrometheusMetrics{}
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics recorder. Never nil.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
