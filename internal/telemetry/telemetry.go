// Package telemetry exports cycle metrics to an OpenTelemetry collector.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"devlog/internal/config"
)

const (
	serviceName    = "devlog"
	serviceVersion = "1.0.0"
)

// CycleStats summarises one daily cycle.
type CycleStats struct {
	Date           string
	Status         string
	Projects       int
	Entries        int
	SummaryErrors  int
	BackupFailures int
	Duration       time.Duration
}

// Recorder receives cycle metrics.
type Recorder interface {
	RecordCycle(ctx context.Context, s CycleStats)
	Close(ctx context.Context) error
}

// Exporter records metrics through an OTel meter provider.
type Exporter struct {
	provider       *sdkmetric.MeterProvider
	cyclesTotal    metric.Int64Counter
	entriesTotal   metric.Int64Counter
	summaryErrors  metric.Int64Counter
	backupFailures metric.Int64Counter
	durationHist   metric.Float64Histogram
}

// New returns an OTLP exporter when an endpoint is configured and a no-op
// recorder otherwise.
func New(ctx context.Context, cfg config.TelemetryConfig) (Recorder, error) {
	if cfg.Endpoint == "" {
		return NewNoOp(), nil
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}
	e, err := NewWithReader(ctx, sdkmetric.NewPeriodicReader(exp))
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(e.provider)
	return e, nil
}

// NewWithReader builds an exporter on top of any metric reader.
func NewWithReader(ctx context.Context, reader sdkmetric.Reader) (*Exporter, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter(serviceName)

	e := &Exporter{provider: provider}
	if e.cyclesTotal, err = meter.Int64Counter(
		"devlog_cycles_total",
		metric.WithDescription("Number of completed daily cycles"),
		metric.WithUnit("{cycle}"),
	); err != nil {
		return nil, fmt.Errorf("creating cycles counter: %w", err)
	}
	if e.entriesTotal, err = meter.Int64Counter(
		"devlog_entries_total",
		metric.WithDescription("Changelog rows written"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, fmt.Errorf("creating entries counter: %w", err)
	}
	if e.summaryErrors, err = meter.Int64Counter(
		"devlog_summary_errors_total",
		metric.WithDescription("Summaries replaced by the error placeholder"),
		metric.WithUnit("{summary}"),
	); err != nil {
		return nil, fmt.Errorf("creating summary errors counter: %w", err)
	}
	if e.backupFailures, err = meter.Int64Counter(
		"devlog_backup_failures_total",
		metric.WithDescription("Projects that failed to copy"),
		metric.WithUnit("{project}"),
	); err != nil {
		return nil, fmt.Errorf("creating backup failures counter: %w", err)
	}
	if e.durationHist, err = meter.Float64Histogram(
		"devlog_cycle_duration_seconds",
		metric.WithDescription("Daily cycle duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return e, nil
}

// RecordCycle records the metrics of one cycle.
func (e *Exporter) RecordCycle(ctx context.Context, s CycleStats) {
	opt := metric.WithAttributes(attribute.String("status", s.Status))
	e.cyclesTotal.Add(ctx, 1, opt)
	e.entriesTotal.Add(ctx, int64(s.Entries))
	e.summaryErrors.Add(ctx, int64(s.SummaryErrors))
	e.backupFailures.Add(ctx, int64(s.BackupFailures))
	e.durationHist.Record(ctx, s.Duration.Seconds(), opt)
}

// Close shuts down the provider and flushes pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}

// NoOp drops every metric.
type NoOp struct{}

// NewNoOp creates a recorder for when no collector is configured.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (*NoOp) RecordCycle(context.Context, CycleStats) {}

func (*NoOp) Close(context.Context) error { return nil }
