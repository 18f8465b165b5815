// Package telemetry is the ambient logging/metrics/tracing facade the turn
// workflow uses to observe a turn's phase progression. It mirrors the
// teacher's runtime telemetry facade: a small interface set so call sites
// stay provider-agnostic, with a Clue/OpenTelemetry-backed implementation
// and a no-op implementation for tests.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging for turn-phase execution.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter/timer/gauge helpers for turn instrumentation
// (tool calls per step, phase durations, cap-reached counts, ...).
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer starts spans bracketing each turn phase.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span is an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// Facade bundles the three observability surfaces a turn needs. A nil field
// falls back to its no-op counterpart so a caller may construct a partial
// Facade (e.g. logging only) without nil-checking at every call site.
type Facade struct {
	Log    Logger
	Metric Metrics
	Trace  Tracer
}

// Noop returns a Facade that discards everything, used in tests and the CLI
// harness when no OTEL/Clue collector is configured.
func Noop() Facade {
	return Facade{Log: NoopLogger{}, Metric: NoopMetrics{}, Trace: NoopTracer{}}
}

func (f Facade) logger() Logger {
	if f.Log == nil {
		return NoopLogger{}
	}
	return f.Log
}

func (f Facade) metrics() Metrics {
	if f.Metric == nil {
		return NoopMetrics{}
	}
	return f.Metric
}

func (f Facade) tracer() Tracer {
	if f.Trace == nil {
		return NoopTracer{}
	}
	return f.Trace
}

// PhaseStart logs and traces the beginning of a turn phase (Understand,
// Think, Act, QuickAct, Reply, Summarize), returning the child context and a
// function that ends the span and records its duration.
func (f Facade) PhaseStart(ctx context.Context, phase string, turnID int) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := f.tracer().Start(ctx, "turn.phase."+phase)
	f.logger().Info(ctx, "phase started", "phase", phase, "turn_id", turnID)
	return ctx, func(err error) {
		dur := time.Since(start)
		f.metrics().RecordTimer("alfred_phase_duration", dur, "phase", phase)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			f.logger().Error(ctx, "phase failed", "phase", phase, "turn_id", turnID, "error", err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
			f.logger().Info(ctx, "phase completed", "phase", phase, "turn_id", turnID, "duration_ms", dur.Milliseconds())
		}
		span.End()
	}
}
