package core

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"timetable/pkg/domain"
)

// MetricsRecorder observes the outcome of every facade operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer opens a span around every facade operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is closed with the operation's error, nil on success.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// PrometheusMetricsRecorder exports operation counters and latency histograms.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder builds a recorder and registers its collectors
// with reg. A nil registerer leaves the collectors unregistered.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetable",
			Name:      "operations_total",
			Help:      "Schedule facade operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "timetable",
			Name:      "operation_duration_seconds",
			Help:      "Schedule facade operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"operation"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{r.operations, r.durations} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register timetable metrics: %w", err)
			}
		}
	}
	return r, nil
}

// Observe records a service operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.operations.WithLabelValues(operation, statusLabel(success)).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ExpvarMetricsRecorder keeps per-operation counters in an expvar.Map.
// Keys are "<operation>.success", "<operation>.error" and "<operation>.ms".
type ExpvarMetricsRecorder struct {
	vars *expvar.Map
}

// NewExpvarMetricsRecorder builds a recorder. A non-empty name also publishes
// the map on the process-wide expvar registry, which panics on reuse.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	vars := new(expvar.Map).Init()
	if name != "" {
		expvar.Publish(name, vars)
	}
	return &ExpvarMetricsRecorder{vars: vars}
}

// Vars exposes the underlying map.
func (r *ExpvarMetricsRecorder) Vars() *expvar.Map {
	return r.vars
}

// Count returns how many times operation finished with the given outcome.
func (r *ExpvarMetricsRecorder) Count(operation string, success bool) int64 {
	if v, ok := r.vars.Get(operation + "." + statusLabel(success)).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

// WriteTo writes the map as a single JSON object followed by a newline.
func (r *ExpvarMetricsRecorder) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintln(w, r.vars.String())
	return int64(n), err
}

// Observe records a service operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.vars.Add(operation+"."+statusLabel(success), 1)
	r.vars.AddFloat(operation+".ms", float64(duration)/float64(time.Millisecond))
}

// TraceLine is one finished operation as written by JSONLineTracer.
type TraceLine struct {
	Operation string            `json:"op"`
	Status    string            `json:"status"`
	Kind      domain.ErrorKind  `json:"kind,omitempty"`
	Entity    domain.EntityType `json:"entity,omitempty"`
	ID        int               `json:"id,omitempty"`
	Error     string            `json:"error,omitempty"`
	Start     time.Time         `json:"start"`
	ElapsedMS float64           `json:"elapsed_ms"`
}

// JSONLineTracer writes one JSON object per finished operation. Failures carry
// the error kind and the offending record when the error names one.
type JSONLineTracer struct {
	mu    sync.Mutex
	enc   *json.Encoder
	clock Clock
}

// NewJSONLineTracer writes spans to w. A nil clock reads time.Now.
func NewJSONLineTracer(w io.Writer, clock Clock) *JSONLineTracer {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	return &JSONLineTracer{enc: json.NewEncoder(w), clock: clock}
}

// Start implements the Tracer interface.
func (t *JSONLineTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonLineSpan{tracer: t, line: TraceLine{Operation: operation, Start: t.clock.Now()}}
}

type jsonLineSpan struct {
	tracer *JSONLineTracer
	line   TraceLine
}

func (s *jsonLineSpan) End(err error) {
	line := s.line
	line.ElapsedMS = float64(s.tracer.clock.Now().Sub(line.Start)) / float64(time.Millisecond)
	line.Status = statusLabel(err == nil)
	if err != nil {
		line.Kind = domain.KindOf(err)
		line.Error = err.Error()
		var derr *domain.Error
		if errors.As(err, &derr) {
			line.Entity = derr.Entity
			line.ID = derr.ID
		}
	}
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	_ = s.tracer.enc.Encode(line)
}
