package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	for name, inst := range map[string]any{
		"STTDuration":      m.STTDuration,
		"LLMDuration":      m.LLMDuration,
		"TTSDuration":      m.TTSDuration,
		"PlaybackDuration": m.PlaybackDuration,
		"Utterances":       m.Utterances,
		"Transcripts":      m.Transcripts,
		"Responses":        m.Responses,
		"ToolCalls":        m.ToolCalls,
		"ProviderErrors":   m.ProviderErrors,
	} {
		if inst == nil {
			t.Errorf("instrument %s is nil", name)
		}
	}
}

func TestMetricsRecordThroughReader(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.Responses.Add(ctx, 1, metric.WithAttributes(attribute.String("persona", "tower")))
	m.STTDuration.Record(ctx, 0.42)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("no metrics collected")
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			found[met.Name] = true
		}
	}
	if !found["squawk.responses"] {
		t.Error("squawk.responses not collected")
	}
	if !found["squawk.stt.duration"] {
		t.Error("squawk.stt.duration not collected")
	}
}
