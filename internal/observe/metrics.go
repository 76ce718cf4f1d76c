// Package observe provides the observability primitives shared by huddle:
// OpenTelemetry metrics exported to Prometheus, tracing, trace-aware logging,
// and the HTTP middleware that ties them together.
//
// Tests should build their own [Metrics] with [NewMetrics] and a manual
// reader instead of using [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all huddle metrics.
const meterName = "github.com/MrWong99/huddle"

// Metrics holds every instrument huddle records. The OTel types synchronise
// internally, so a *Metrics may be shared freely. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// TurnsIngested counts finalised transcripts seen by the gate, by
	// "decision" (forward, suppress).
	TurnsIngested metric.Int64Counter

	// Activations counts Silent→Awaiting transitions.
	Activations metric.Int64Counter

	// Responses counts delivered responses by "agent" and "status".
	Responses metric.Int64Counter

	// ResponseDuration is the time from forwarding a transcript to the end
	// of playback.
	ResponseDuration metric.Float64Histogram

	// STTDuration is the time from end of speech to the final transcript.
	STTDuration metric.Float64Histogram

	// LLMFirstSentence is the time from request to the first complete
	// sentence of a model round.
	LLMFirstSentence metric.Float64Histogram

	// TTSFirstAudio is the time from starting a response to its first audio
	// frame.
	TTSFirstAudio metric.Float64Histogram

	// ToolCalls counts tool invocations by "tool" and "status".
	ToolCalls metric.Int64Counter

	// ToolDuration tracks tool execution latency by "tool".
	ToolDuration metric.Float64Histogram

	// Handoffs counts role transfers by "from" and "to".
	Handoffs metric.Int64Counter

	// ProviderErrors counts provider failures by "provider" and "kind".
	ProviderErrors metric.Int64Counter

	// ActiveCalls is the number of joined voice calls.
	ActiveCalls metric.Int64UpDownCounter

	// ActiveParticipants is the number of participants with a running audio
	// pipeline.
	ActiveParticipants metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP latency by "method" and "path".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds sized for voice latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}

	histogram := func(name, desc string, buckets bool) (metric.Float64Histogram, error) {
		opts := []metric.Float64HistogramOption{
			metric.WithDescription(desc),
			metric.WithUnit("s"),
		}
		if buckets {
			opts = append(opts, metric.WithExplicitBucketBoundaries(latencyBuckets...))
		}
		return m.Float64Histogram(name, opts...)
	}

	var err error
	if met.TurnsIngested, err = m.Int64Counter("huddle.turns.ingested",
		metric.WithDescription("Finalised transcripts ingested by decision."),
	); err != nil {
		return nil, err
	}
	if met.Activations, err = m.Int64Counter("huddle.activations",
		metric.WithDescription("Trigger phrase activations."),
	); err != nil {
		return nil, err
	}
	if met.Responses, err = m.Int64Counter("huddle.responses",
		metric.WithDescription("Responses by agent and status."),
	); err != nil {
		return nil, err
	}
	if met.ResponseDuration, err = histogram("huddle.response.duration",
		"Time from forwarded transcript to end of playback.", true); err != nil {
		return nil, err
	}
	if met.STTDuration, err = histogram("huddle.stt.duration",
		"Time from end of speech to final transcript.", true); err != nil {
		return nil, err
	}
	if met.LLMFirstSentence, err = histogram("huddle.llm.first_sentence",
		"Time from model request to first complete sentence.", true); err != nil {
		return nil, err
	}
	if met.TTSFirstAudio, err = histogram("huddle.tts.first_audio",
		"Time from response start to first audio frame.", true); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("huddle.tool.calls",
		metric.WithDescription("Tool invocations by tool and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = histogram("huddle.tool.duration",
		"Tool execution latency.", true); err != nil {
		return nil, err
	}
	if met.Handoffs, err = m.Int64Counter("huddle.handoffs",
		metric.WithDescription("Role handoffs by source and target role."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("huddle.provider.errors",
		metric.WithDescription("Provider failures by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCalls, err = m.Int64UpDownCounter("huddle.active_calls",
		metric.WithDescription("Joined voice calls."),
	); err != nil {
		return nil, err
	}
	if met.ActiveParticipants, err = m.Int64UpDownCounter("huddle.active_participants",
		metric.WithDescription("Participants with a running audio pipeline."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = histogram("huddle.http.request.duration",
		"HTTP request latency by method and path.", false); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] on [otel.GetMeterProvider].
// Call it after [InitProvider] so the instruments bind to the real provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTurn counts one ingested transcript.
func (m *Metrics) RecordTurn(ctx context.Context, decision string, activated bool) {
	if m == nil {
		return
	}
	m.TurnsIngested.Add(ctx, 1, metric.WithAttributes(Attr("decision", decision)))
	if activated {
		m.Activations.Add(ctx, 1)
	}
}

// RecordResponse counts one response and its latency.
func (m *Metrics) RecordResponse(ctx context.Context, agent, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(Attr("agent", agent), Attr("status", status))
	m.Responses.Add(ctx, 1, attrs)
	m.ResponseDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordSTT records end-of-speech to final-transcript latency.
func (m *Metrics) RecordSTT(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.STTDuration.Record(ctx, d.Seconds())
}

// RecordLLMFirstSentence records time to the first sentence of a model round.
func (m *Metrics) RecordLLMFirstSentence(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMFirstSentence.Record(ctx, d.Seconds())
}

// RecordTTSFirstAudio records time to the first audio frame of a response.
func (m *Metrics) RecordTTSFirstAudio(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.TTSFirstAudio.Record(ctx, d.Seconds())
}

// RecordToolCall counts one tool call and records its duration.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(Attr("tool", tool), Attr("status", status)))
	m.ToolDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("tool", tool)))
}

// RecordHandoff counts one role transfer.
func (m *Metrics) RecordHandoff(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.Handoffs.Add(ctx, 1, metric.WithAttributes(Attr("from", from), Attr("to", to)))
}

// RecordProviderError counts one provider failure. kind is "stt", "llm",
// "tts" or "vad".
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	if m == nil {
		return
	}
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
}

// AddActiveCalls adjusts the joined-calls gauge by delta.
func (m *Metrics) AddActiveCalls(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveCalls.Add(ctx, delta)
}

// AddActiveParticipants adjusts the running-pipelines gauge by delta.
func (m *Metrics) AddActiveParticipants(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveParticipants.Add(ctx, delta)
}
