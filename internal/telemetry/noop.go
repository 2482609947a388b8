package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Recorder is a Logger+Metrics+Tracer that discards output but remembers
// enough to let tests assert on what was emitted (counters incremented,
// timers recorded, error logs written). Production code uses the Clue
// implementations; tests that care about telemetry assertions use Recorder
// instead of a pure no-op so SLA-violation and breaker-trip counters
// are actually observable from test code.
type Recorder struct {
	mu       sync.Mutex
	Errors   []string
	Counters map[string]float64
	Timers   map[string][]time.Duration
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{Counters: make(map[string]float64), Timers: make(map[string][]time.Duration)}
}

func (r *Recorder) Debug(context.Context, string, ...any) {}
func (r *Recorder) Info(context.Context, string, ...any)  {}
func (r *Recorder) Warn(context.Context, string, ...any)  {}

func (r *Recorder) Error(_ context.Context, msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, msg)
}

func (r *Recorder) IncCounter(name string, value float64, _ ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters[name] += value
}

func (r *Recorder) RecordTimer(name string, d time.Duration, _ ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Timers[name] = append(r.Timers[name], d)
}

func (r *Recorder) RecordGauge(string, float64, ...string) {}

func (r *Recorder) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, Span) {
	return ctx, recorderSpan{}
}

func (r *Recorder) Span(context.Context) Span { return recorderSpan{} }

// Count returns the accumulated value of a named counter.
func (r *Recorder) Count(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counters[name]
}

type recorderSpan struct{}

func (recorderSpan) End(...trace.SpanEndOption)          {}
func (recorderSpan) AddEvent(string, ...any)             {}
func (recorderSpan) SetStatus(codes.Code, string)        {}
func (recorderSpan) RecordError(error, ...trace.EventOption) {}

var (
	_ Logger  = (*Recorder)(nil)
	_ Metrics = (*Recorder)(nil)
	_ Tracer  = (*Recorder)(nil)
)
