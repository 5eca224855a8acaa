package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(context.Background(), TracerConfig{Enabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := Sampler(tt.rate).Description()
		if want := "ParentBased{root:" + tt.want; len(desc) < len(want) || desc[:len(want)] != want {
			t.Fatalf("Sampler(%v) = %q, want prefix %q", tt.rate, desc, want)
		}
	}
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "ScheduleCampaign")
	AddSpanAttributes(span, map[string]any{
		"campaign_id": "c1",
		"leads":       3,
		"partial":     false,
		"start":       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		"ignored":     []string{"x"},
	})
	RecordError(span, errors.New("policy unsatisfiable"))
	RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	got := ended[0]
	if got.Status().Code != codes.Error || got.Status().Description != "policy unsatisfiable" {
		t.Fatalf("status = %+v", got.Status())
	}
	if len(got.Events()) != 1 {
		t.Fatalf("events = %d, want 1 recorded error", len(got.Events()))
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range got.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["campaign_id"].AsString() != "c1" || attrs["leads"].AsInt64() != 3 || attrs["start"].AsString() != "2026-03-02T09:00:00Z" {
		t.Fatalf("attributes = %v", attrs)
	}
	if _, ok := attrs["ignored"]; ok {
		t.Fatalf("unsupported attribute type was recorded")
	}
}
