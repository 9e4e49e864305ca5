package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docchain/internal/platform/logger"
	"docchain/internal/staged"
	"docchain/pkg/domain"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	rec.Migration("notes", 2, nil)
	rec.Migration("notes", 2, errors.New("boom"))
	rec.Classification("notes", domain.StatePending)
	rec.Rejection("notes", "insert")
	rec.Observe(context.Background(), "get", true, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	assert.Equal(t, 1.0, promtest.ToFloat64(rec.migrations.WithLabelValues("notes", "2", "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(rec.migrations.WithLabelValues("notes", "2", "error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(rec.classifications.WithLabelValues("notes", "pending")))
	assert.Equal(t, 1.0, promtest.ToFloat64(rec.rejections.WithLabelValues("notes", "insert")))
	assert.Equal(t, 1, promtest.CollectAndCount(rec.operations))

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err, "duplicate registration is reported")
}

func TestExpvarRecorderSnapshot(t *testing.T) {
	rec := NewExpvarRecorder("")
	rec.Observe(context.Background(), "get", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "get", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)
	rec.Migration("notes", 1, nil)
	rec.Classification("notes", domain.StateCurrent)
	rec.Rejection("notes", "update")

	snap := rec.Snapshot()
	assert.InDelta(t, 3.0, snap.DurationsMS["get"], 0.001)
	assert.Equal(t, int64(1), snap.Results["get"]["success"])
	assert.Equal(t, int64(1), snap.Results["get"]["error"])
	assert.Equal(t, int64(1), snap.Migrations["notes"]["v1:success"])
	assert.Equal(t, int64(1), snap.Classifications["notes"]["current"])
	assert.Equal(t, int64(1), snap.Rejections["notes"]["update"])

	published := expvar.Get(rec.Name())
	require.NotNil(t, published)
	assert.Contains(t, published.String(), "migrations_total")

	other := NewExpvarRecorder("")
	assert.NotEqual(t, rec.Name(), other.Name())
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "insert")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "get")
	span.End(errors.New("not found"))

	entries := tracer.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "success", entries[0].Status)
	assert.Equal(t, "error", entries[1].Status)
	assert.Equal(t, "not found", entries[1].Error)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var decoded TraceEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	assert.Equal(t, "get", decoded.Operation)

	_, span = NewJSONTracer(nil).Start(context.Background(), "noop")
	span.End(nil)
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewExpvarRecorder(""), NewExpvarRecorder("")
	m := Multi{a, b, NopRecorder{}}
	m.Observe(context.Background(), "find", true, time.Millisecond)
	m.Migration("notes", 1, nil)
	m.Classification("notes", domain.StateUnrecognized)
	m.Rejection("notes", "insert")
	for _, r := range []*ExpvarRecorder{a, b} {
		snap := r.Snapshot()
		assert.Equal(t, int64(1), snap.Results["find"]["success"])
		assert.Equal(t, int64(1), snap.Migrations["notes"]["v1:success"])
		assert.Equal(t, int64(1), snap.Classifications["notes"]["unrecognized"])
		assert.Equal(t, int64(1), snap.Rejections["notes"]["insert"])
	}
	ctx, span := NopTracer{}.Start(context.Background(), "x")
	assert.NotNil(t, ctx)
	span.End(nil)
}

func TestHookObserverLogsAndCounts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := NewExpvarRecorder("")
	obs := NewHookObserver(logger.FromZap(zap.New(core)), rec)

	obs.Classified("notes", staged.Classification{State: domain.StateCurrent})
	obs.Classified("notes", staged.Classification{State: domain.StateUnrecognized, Reason: "bad"})
	obs.Classified("notes", staged.Classification{
		State:  domain.StatePending,
		Staged: &domain.StagedMigration{FromVersion: 0, ToVersion: 2},
	})
	obs.Rejected("notes", "insert", errors.New("mismatch"))

	snap := rec.Snapshot()
	assert.Equal(t, int64(1), snap.Classifications["notes"]["current"])
	assert.Equal(t, int64(1), snap.Classifications["notes"]["pending"])
	assert.Equal(t, int64(1), snap.Rejections["notes"]["insert"])

	assert.Equal(t, 1, logs.FilterMessage("document matches neither latest schema nor any migration variant").Len())
	assert.Equal(t, 1, logs.FilterMessage("staged migration available").Len())
	assert.Equal(t, 1, logs.FilterMessage("write rejected").Len())

	NewHookObserver(nil, nil).Classified("notes", staged.Classification{State: domain.StateCurrent})
}
