package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/permgate/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// InitMeter installs a periodic OTLP meter provider as the global provider.
// The caller shuts it down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.WithComponent("observability").Info("meter initialized", logger.Fields(
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// GateMetrics holds the instruments recorded by permission gates.
// A nil *GateMetrics records nothing.
type GateMetrics struct {
	checks      metric.Int64Counter
	immediate   metric.Int64Counter
	prompts     metric.Int64Counter
	resolutions metric.Int64Counter
	pending     metric.Int64UpDownCounter
	waitTime    metric.Float64Histogram
	deliveries  metric.Int64Counter
}

// NewGateMetrics creates the gate instruments on meter.
func NewGateMetrics(meter metric.Meter) (*GateMetrics, error) {
	checks, err := meter.Int64Counter("permgate.gate.checks",
		metric.WithDescription("Gating attempts started"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating permgate.gate.checks counter: %w", err)
	}

	immediate, err := meter.Int64Counter("permgate.gate.immediate_grants",
		metric.WithDescription("Gating attempts granted without prompting"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating permgate.gate.immediate_grants counter: %w", err)
	}

	prompts, err := meter.Int64Counter("permgate.gate.prompts",
		metric.WithDescription("Permission prompts requested"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating permgate.gate.prompts counter: %w", err)
	}

	resolutions, err := meter.Int64Counter("permgate.gate.resolutions",
		metric.WithDescription("Prompted gates that reached a final state, by state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating permgate.gate.resolutions counter: %w", err)
	}

	pending, err := meter.Int64UpDownCounter("permgate.gate.pending",
		metric.WithDescription("Gates currently awaiting a permission response"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating permgate.gate.pending gauge: %w", err)
	}

	waitTime, err := meter.Float64Histogram("permgate.gate.wait",
		metric.WithDescription("Time spent awaiting a permission response"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating permgate.gate.wait histogram: %w", err)
	}

	deliveries, err := meter.Int64Counter("permgate.responses.delivered",
		metric.WithDescription("Permission responses published to the session bus"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating permgate.responses.delivered counter: %w", err)
	}

	return &GateMetrics{
		checks:      checks,
		immediate:   immediate,
		prompts:     prompts,
		resolutions: resolutions,
		pending:     pending,
		waitTime:    waitTime,
		deliveries:  deliveries,
	}, nil
}

// RecordCheck counts a gating attempt.
func (m *GateMetrics) RecordCheck(ctx context.Context) {
	if m == nil {
		return
	}
	m.checks.Add(ctx, 1)
}

// RecordImmediateGrant counts an attempt that needed no prompt.
func (m *GateMetrics) RecordImmediateGrant(ctx context.Context) {
	if m == nil {
		return
	}
	m.immediate.Add(ctx, 1)
}

// RecordPrompt counts a prompt and marks one more gate pending.
func (m *GateMetrics) RecordPrompt(ctx context.Context, permissions int) {
	if m == nil {
		return
	}
	m.prompts.Add(ctx, 1, metric.WithAttributes(attribute.Int("permissions", permissions)))
	m.pending.Add(ctx, 1)
}

// RecordResolution records how a pending gate ended: completed, rejected
// or cancelled.
func (m *GateMetrics) RecordResolution(ctx context.Context, state string, waited time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("state", state))
	m.pending.Add(ctx, -1)
	m.resolutions.Add(ctx, 1, attrs)
	m.waitTime.Record(ctx, waited.Seconds(), attrs)
}

// RecordDelivery counts a response published to listeners.
func (m *GateMetrics) RecordDelivery(ctx context.Context, listeners int) {
	if m == nil {
		return
	}
	m.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.Int("listeners", listeners)))
}
