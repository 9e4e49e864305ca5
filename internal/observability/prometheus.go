package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"docchain/pkg/domain"
)

// PrometheusRecorder exports docchain counters and latencies.
type PrometheusRecorder struct {
	operations      *prometheus.HistogramVec
	migrations      *prometheus.CounterVec
	classifications *prometheus.CounterVec
	rejections      *prometheus.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusRecorder{
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docchain_operation_duration_seconds",
			Help:    "Duration of engine operations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.25},
		}, []string{"operation", "result"}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docchain_migrations_total",
			Help: "Migration strategy runs by collection, target version and result",
		}, []string{"collection", "version", "result"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docchain_classifications_total",
			Help: "After-load classifications by collection and state",
		}, []string{"collection", "state"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docchain_write_rejections_total",
			Help: "Writes rejected by latest-schema validation",
		}, []string{"collection", "op"}),
	}
	for _, c := range []prometheus.Collector{r.operations, r.migrations, r.classifications, r.rejections} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.operations.WithLabelValues(operation, resultLabel(success)).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) Migration(collection string, version int, err error) {
	r.migrations.WithLabelValues(collection, strconv.Itoa(version), resultLabel(err == nil)).Inc()
}

func (r *PrometheusRecorder) Classification(collection string, state domain.MigrationState) {
	r.classifications.WithLabelValues(collection, string(state)).Inc()
}

func (r *PrometheusRecorder) Rejection(collection, op string) {
	r.rejections.WithLabelValues(collection, op).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
