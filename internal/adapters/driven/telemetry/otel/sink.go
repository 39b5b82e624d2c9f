// Package otel provides a TelemetrySink backed by OpenTelemetry.
// Metrics and traces are exported to rotating files under the data
// directory, so a collector is optional.
package otel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat-cli/internal/logger"
)

// Ensure Sink implements the interface.
var _ driven.TelemetrySink = (*Sink)(nil)

// serviceName identifies this process in exported telemetry.
const serviceName = "ragchat"

// Sink records pipeline events as OpenTelemetry metrics and spans.
type Sink struct {
	tracer trace.Tracer
	meter  metric.Meter

	ingestions     metric.Int64Counter
	ingestDuration metric.Float64Histogram
	retrievals     metric.Int64Counter
	retrievalHits  metric.Int64Histogram
	generations    metric.Int64Counter
	genDuration    metric.Float64Histogram
	errorsByKind   metric.Int64Counter

	shutdown func(context.Context) error
}

// New creates a sink exporting to rotating files under dir. If dir is
// empty, ~/.ragchat/telemetry is used.
func New(ctx context.Context, dir string) (*Sink, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".ragchat", "telemetry")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	traceFile := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "traces.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricsFile := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "metrics.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsFile))
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithInterval(30*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	s := &Sink{
		tracer: tp.Tracer(serviceName),
		meter:  mp.Meter(serviceName),
		shutdown: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				return err
			}
			if err := mp.Shutdown(ctx); err != nil {
				return err
			}
			_ = traceFile.Close()
			_ = metricsFile.Close()
			return nil
		},
	}

	if err := s.initInstruments(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) initInstruments() error {
	var err error
	if s.ingestions, err = s.meter.Int64Counter("ragchat.ingestions",
		metric.WithDescription("Completed ingestion attempts")); err != nil {
		return err
	}
	if s.ingestDuration, err = s.meter.Float64Histogram("ragchat.ingestion.duration",
		metric.WithDescription("Ingestion duration in seconds"), metric.WithUnit("s")); err != nil {
		return err
	}
	if s.retrievals, err = s.meter.Int64Counter("ragchat.retrievals",
		metric.WithDescription("Completed retrieval queries")); err != nil {
		return err
	}
	if s.retrievalHits, err = s.meter.Int64Histogram("ragchat.retrieval.hits",
		metric.WithDescription("Hits returned per retrieval")); err != nil {
		return err
	}
	if s.generations, err = s.meter.Int64Counter("ragchat.generations",
		metric.WithDescription("Completed generation calls")); err != nil {
		return err
	}
	if s.genDuration, err = s.meter.Float64Histogram("ragchat.generation.duration",
		metric.WithDescription("Generation duration in seconds"), metric.WithUnit("s")); err != nil {
		return err
	}
	if s.errorsByKind, err = s.meter.Int64Counter("ragchat.errors",
		metric.WithDescription("Terminal errors by taxonomy kind")); err != nil {
		return err
	}
	return nil
}

// IngestionCompleted implements driven.TelemetrySink.
func (s *Sink) IngestionCompleted(ctx context.Context, documentID string, chunkCount int, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.Bool("success", err == nil),
	)
	s.ingestions.Add(ctx, 1, attrs)
	s.ingestDuration.Record(ctx, elapsed.Seconds(), attrs)

	_, span := s.tracer.Start(ctx, "ingestion",
		trace.WithTimestamp(time.Now().Add(-elapsed)),
		trace.WithAttributes(
			attribute.String("document.id", documentID),
			attribute.Int("chunk.count", chunkCount),
		))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// RetrievalCompleted implements driven.TelemetrySink.
func (s *Sink) RetrievalCompleted(ctx context.Context, hits int, elapsed time.Duration) {
	s.retrievals.Add(ctx, 1)
	s.retrievalHits.Record(ctx, int64(hits))

	_, span := s.tracer.Start(ctx, "retrieval",
		trace.WithTimestamp(time.Now().Add(-elapsed)),
		trace.WithAttributes(attribute.Int("hits", hits)))
	span.End()
}

// GenerationCompleted implements driven.TelemetrySink.
func (s *Sink) GenerationCompleted(ctx context.Context, modelAlias string, fragments int, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", modelAlias),
		attribute.Bool("success", err == nil),
	)
	s.generations.Add(ctx, 1, attrs)
	s.genDuration.Record(ctx, elapsed.Seconds(), attrs)

	_, span := s.tracer.Start(ctx, "generation",
		trace.WithTimestamp(time.Now().Add(-elapsed)),
		trace.WithAttributes(
			attribute.String("model", modelAlias),
			attribute.Int("fragments", fragments),
		))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// ErrorRecorded implements driven.TelemetrySink.
func (s *Sink) ErrorRecorded(ctx context.Context, kind string) {
	s.errorsByKind.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// Shutdown flushes and closes the exporters.
func (s *Sink) Shutdown(ctx context.Context) {
	if err := s.shutdown(ctx); err != nil {
		logger.Warn("Telemetry shutdown: %v", err)
	}
}
