package metrics

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/core/ports"
)

type ExtractionMetrics struct {
	requestsTotal *prometheus.CounterVec
	fields        *prometheus.HistogramVec
	duration      *prometheus.HistogramVec
	tokensTotal   *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

func NewExtractionMetrics(registerer prometheus.Registerer) *ExtractionMetrics {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_requests_total",
			Help:      "Extractions by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)
	fields := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_fields",
			Help:      "Fields returned per successful extraction.",
			Buckets:   []float64{0, 1, 2, 4, 6, 8, 10, 12, 14, 20, 30},
		},
		[]string{"stage"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_duration_seconds",
			Help:      "Extraction latency including the model call.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"stage", "outcome"},
	)
	tokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage reported by the model provider.",
		},
		[]string{"direction", "model"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "circuit_breaker_state",
			Help:      "Breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"operation"},
	)

	registerer.MustRegister(requestsTotal, fields, duration, tokensTotal, breakerState)

	return &ExtractionMetrics{
		requestsTotal: requestsTotal,
		fields:        fields,
		duration:      duration,
		tokensTotal:   tokensTotal,
		breakerState:  breakerState,
	}
}

func (m *ExtractionMetrics) RecordExtraction(event domain.ExtractionEvent) {
	stage := string(event.Stage)
	if stage == "" {
		stage = "unknown"
	}
	outcome := "success"
	if event.Failed {
		outcome = "failed"
	}

	m.requestsTotal.WithLabelValues(stage, outcome).Inc()
	m.duration.WithLabelValues(stage, outcome).Observe(event.DurationSeconds)
	if !event.Failed {
		m.fields.WithLabelValues(stage).Observe(float64(event.FieldCount))
	}
}

func (m *ExtractionMetrics) RecordTokenUsage(model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.tokensTotal.WithLabelValues("in", model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.tokensTotal.WithLabelValues("out", model).Add(float64(completionTokens))
	}
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *ExtractionMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	var v float64
	switch to {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	m.breakerState.WithLabelValues(operation).Set(v)
}

// Publisher records every event and forwards it to next.
func (m *ExtractionMetrics) Publisher(next ports.ExtractionPublisher) ports.ExtractionPublisher {
	return &recordingPublisher{metrics: m, next: next}
}

type recordingPublisher struct {
	metrics *ExtractionMetrics
	next    ports.ExtractionPublisher
}

func (p *recordingPublisher) PublishExtracted(ctx context.Context, event domain.ExtractionEvent) error {
	p.metrics.RecordExtraction(event)
	if p.next == nil {
		return nil
	}
	return p.next.PublishExtracted(ctx, event)
}

// Model wraps an extraction model so reported token usage is counted.
func (m *ExtractionMetrics) Model(next ports.ExtractionModel) ports.ExtractionModel {
	return &countingModel{ExtractionModel: next, metrics: m}
}

type countingModel struct {
	ports.ExtractionModel
	metrics *ExtractionMetrics
}

func (c *countingModel) GenerateExtract(ctx context.Context, req domain.ModelRequest) (domain.ModelReply, error) {
	reply, err := c.ExtractionModel.GenerateExtract(ctx, req)
	if err == nil {
		c.metrics.RecordTokenUsage(strings.TrimSpace(c.Name()), reply.PromptTokens, reply.CompletionTokens)
	}
	return reply, err
}
