package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter         metric.Int64Counter
	RequestDuration        metric.Float64Histogram
	TokensUsed             metric.Int64Counter
	DocProcessingTime      metric.Float64Histogram
	CircuitBreakerState    metric.Int64Counter
	RetrievalFallbacks     metric.Int64Counter
	MemoriesExtracted      metric.Int64Counter
	CompactionsPerformed   metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("docchat-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	docProcessingTime, err := meter.Float64Histogram(
		"document.processing.duration",
		metric.WithDescription("Document processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	retrievalFallbacks, err := meter.Int64Counter(
		"retrieval.fallbacks.total",
		metric.WithDescription("Degraded retrieval paths taken (keyword-only, rerank pass-through)"),
	)
	if err != nil {
		return nil, err
	}

	memoriesExtracted, err := meter.Int64Counter(
		"memory.extracted.total",
		metric.WithDescription("Memories extracted from chat exchanges"),
	)
	if err != nil {
		return nil, err
	}

	compactionsPerformed, err := meter.Int64Counter(
		"compaction.performed.total",
		metric.WithDescription("Chat history compactions performed"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:       requestCounter,
		RequestDuration:      requestDuration,
		TokensUsed:           tokensUsed,
		DocProcessingTime:    docProcessingTime,
		CircuitBreakerState:  circuitBreakerState,
		RetrievalFallbacks:   retrievalFallbacks,
		MemoriesExtracted:    memoriesExtracted,
		CompactionsPerformed: compactionsPerformed,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordDocProcessing records document pipeline metrics
func (m *Metrics) RecordDocProcessing(duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("document.status", status),
	}

	m.DocProcessingTime.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordRetrievalFallback counts a degraded retrieval path.
func (m *Metrics) RecordRetrievalFallback(kind string) {
	m.RetrievalFallbacks.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("fallback.kind", kind)))
}

// RecordMemoriesExtracted counts memories persisted from chat exchanges.
func (m *Metrics) RecordMemoriesExtracted(n int64) {
	m.MemoriesExtracted.Add(context.Background(), n)
}

// RecordCompaction counts one history compaction.
func (m *Metrics) RecordCompaction() {
	m.CompactionsPerformed.Add(context.Background(), 1)
}
