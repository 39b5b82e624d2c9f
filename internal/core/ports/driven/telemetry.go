package driven

import (
	"context"
	"time"
)

// TelemetrySink receives structured events from the orchestration core.
// The core owns what is emitted; transport and storage belong to the
// adapter. Implementations must be safe for concurrent use and must
// never block the turn pipeline.
type TelemetrySink interface {
	// IngestionCompleted records the outcome of one ingest.
	IngestionCompleted(ctx context.Context, documentID string, chunkCount int, elapsed time.Duration, err error)

	// RetrievalCompleted records one retrieval query.
	RetrievalCompleted(ctx context.Context, hits int, elapsed time.Duration)

	// GenerationCompleted records one generation call.
	GenerationCompleted(ctx context.Context, modelAlias string, fragments int, elapsed time.Duration, err error)

	// ErrorRecorded records a terminal error by taxonomy kind.
	ErrorRecorded(ctx context.Context, kind string)
}

// NoopTelemetry discards all events. Used when telemetry is disabled
// and as the default in tests.
type NoopTelemetry struct{}

var _ TelemetrySink = NoopTelemetry{}

// IngestionCompleted implements TelemetrySink.
func (NoopTelemetry) IngestionCompleted(context.Context, string, int, time.Duration, error) {}

// RetrievalCompleted implements TelemetrySink.
func (NoopTelemetry) RetrievalCompleted(context.Context, int, time.Duration) {}

// GenerationCompleted implements TelemetrySink.
func (NoopTelemetry) GenerationCompleted(context.Context, string, int, time.Duration, error) {}

// ErrorRecorded implements TelemetrySink.
func (NoopTelemetry) ErrorRecorded(context.Context, string) {}
