// Package observability provides the metrics and tracing sinks used by the
// docchain engine and lifecycle hooks.
package observability

import (
	"context"
	"time"

	"docchain/pkg/domain"
)

// Recorder receives engine and migration outcomes.
type Recorder interface {
	// Observe records a timed engine operation.
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	// Migration records one strategy run for a document.
	Migration(collection string, version int, err error)
	// Classification records an after-load classification.
	Classification(collection string, state domain.MigrationState)
	// Rejection records a before-write rejection.
	Rejection(collection, op string)
}

// TraceSpan ends a traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around engine operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) Observe(context.Context, string, bool, time.Duration) {}
func (NopRecorder) Migration(string, int, error)                         {}
func (NopRecorder) Classification(string, domain.MigrationState)        {}
func (NopRecorder) Rejection(string, string)                            {}

// NopTracer starts spans that do nothing.
type NopTracer struct{}

func (NopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) End(error) {}

// Multi fans out to several recorders.
type Multi []Recorder

func (m Multi) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		r.Observe(ctx, operation, success, duration)
	}
}

func (m Multi) Migration(collection string, version int, err error) {
	for _, r := range m {
		r.Migration(collection, version, err)
	}
}

func (m Multi) Classification(collection string, state domain.MigrationState) {
	for _, r := range m {
		r.Classification(collection, state)
	}
}

func (m Multi) Rejection(collection, op string) {
	for _, r := range m {
		r.Rejection(collection, op)
	}
}
