package observability

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"docchain/pkg/domain"
)

var expvarSeq uint64

// ExpvarRecorder publishes aggregate counters via expvar for deployments that
// scrape /debug/vars instead of Prometheus.
type ExpvarRecorder struct {
	name            string
	mu              sync.Mutex
	durations       map[string]float64
	results         map[string]map[string]int64
	migrations      map[string]map[string]int64
	classifications map[string]map[string]int64
	rejections      map[string]map[string]int64
}

// ExpvarSnapshot is a read-only copy of the recorded counters.
type ExpvarSnapshot struct {
	DurationsMS     map[string]float64          `json:"durations_ms_total"`
	Results         map[string]map[string]int64 `json:"results_total"`
	Migrations      map[string]map[string]int64 `json:"migrations_total"`
	Classifications map[string]map[string]int64 `json:"classifications_total"`
	Rejections      map[string]map[string]int64 `json:"rejections_total"`
	RecordedAt      time.Time                   `json:"recorded_at"`
}

// NewExpvarRecorder publishes a recorder under name. An empty name gets a
// unique generated one; expvar panics on duplicate names.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("docchain_metrics_%d", id)
	}
	rec := &ExpvarRecorder{
		name:            name,
		durations:       make(map[string]float64),
		results:         make(map[string]map[string]int64),
		migrations:      make(map[string]map[string]int64),
		classifications: make(map[string]map[string]int64),
		rejections:      make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Snapshot returns a copy of the aggregated counters.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	return ExpvarSnapshot{
		DurationsMS:     durations,
		Results:         copyCounts(r.results),
		Migrations:      copyCounts(r.migrations),
		Classifications: copyCounts(r.classifications),
		Rejections:      copyCounts(r.rejections),
		RecordedAt:      time.Now().UTC(),
	}
}

func (r *ExpvarRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	r.durations[operation] += float64(duration) / float64(time.Millisecond)
	bump(r.results, operation, resultLabel(success))
	r.mu.Unlock()
}

func (r *ExpvarRecorder) Migration(collection string, version int, err error) {
	r.mu.Lock()
	bump(r.migrations, collection, fmt.Sprintf("%s:%s", domain.VersionKey(version), resultLabel(err == nil)))
	r.mu.Unlock()
}

func (r *ExpvarRecorder) Classification(collection string, state domain.MigrationState) {
	r.mu.Lock()
	bump(r.classifications, collection, string(state))
	r.mu.Unlock()
}

func (r *ExpvarRecorder) Rejection(collection, op string) {
	r.mu.Lock()
	bump(r.rejections, collection, op)
	r.mu.Unlock()
}

func bump(m map[string]map[string]int64, outer, inner string) {
	if _, ok := m[outer]; !ok {
		m[outer] = make(map[string]int64, 2)
	}
	m[outer][inner]++
}

func copyCounts(in map[string]map[string]int64) map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(in))
	for k, counts := range in {
		cp := make(map[string]int64, len(counts))
		for status, n := range counts {
			cp[status] = n
		}
		out[k] = cp
	}
	return out
}

// TraceEntry is one span written by JSONTracer.
type TraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTracer writes spans as JSON lines and keeps them for inspection.
type JSONTracer struct {
	mu      sync.Mutex
	entries []TraceEntry
	enc     *json.Encoder
}

// NewJSONTracer returns a tracer writing to w; w may be nil.
func NewJSONTracer(w io.Writer) *JSONTracer {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &JSONTracer{enc: enc}
}

// Entries returns a copy of all recorded spans.
func (t *JSONTracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

type jsonSpan struct {
	tracer    *JSONTracer
	operation string
	started   time.Time
}

func (s *jsonSpan) End(err error) {
	status := "success"
	var errMsg string
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}
	ended := time.Now().UTC()
	entry := TraceEntry{
		Operation:  s.operation,
		Status:     status,
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		Error:      errMsg,
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}
