package interceptor

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bxshcn/geesql/dialect"
	"github.com/bxshcn/geesql/internal/fakedb"
	"github.com/bxshcn/geesql/session"
)

var (
	ctx  = context.Background()
	boom = errors.New("boom")
)

func newSession(t *testing.T, db *fakedb.DB, interceptors ...session.Interceptor) *session.Session {
	t.Helper()
	d, _ := dialect.GetDialect("sqlite3")
	sqlDB := db.Open()
	s := session.New(sqlDB, d, session.WithInterceptors(interceptors...))
	t.Cleanup(func() {
		_ = s.Close()
		_ = sqlDB.Close()
	})
	return s
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	d, _ := dialect.GetDialect("sqlite3")
	db := fakedb.New().Script(fakedb.Rule{Match: "fail", ExecErr: boom})
	s := newSession(t, db, Logging(zap.New(core), d))

	_, err := s.Update(ctx, "update t set a = :a", map[string]interface{}{"a": "x"}, &session.StatementOptions{Name: "upd"})
	require.NoError(t, err)
	entries := logs.TakeAll()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, "statement executed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "upd", fields["name"])
	assert.Equal(t, []interface{}{"update t set a = 'x'"}, fields["sql"])
	assert.Contains(t, fields, "execute")
	assert.Contains(t, fields, "total")

	_, err = s.Update(ctx, "update fail set a = 1", nil, nil)
	require.Error(t, err)
	entries = logs.TakeAll()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Equal(t, "statement failed", entries[0].Message)
	assert.Equal(t, "bound", entries[0].ContextMap()["stage"])
}

func TestLoggingSkipsRenderingAboveDebug(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d, _ := dialect.GetDialect("sqlite3")
	s := newSession(t, fakedb.New(), Logging(zap.New(core), d))
	_, err := s.Update(ctx, "update t set a = 1", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	i, err := Metrics(reg)
	require.NoError(t, err)
	m := i.(*metrics)

	db := fakedb.New().Script(fakedb.Rule{Match: "fail", ExecErr: boom})
	s := newSession(t, db, i)
	_, err = s.Update(ctx, "update t set a = 1", nil, &session.StatementOptions{Name: "upd"})
	require.NoError(t, err)
	_, err = s.Update(ctx, "update fail set a = 1", nil, nil)
	require.Error(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(m.execute))
	assert.Equal(t, 1, testutil.CollectAndCount(m.fetch))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failures.WithLabelValues(unnamed)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.failures.WithLabelValues("upd")))

	again, err := Metrics(reg)
	require.NoError(t, err)
	assert.Same(t, m.failures, again.(*metrics).failures)
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	db := fakedb.New().Script(fakedb.Rule{Match: "fail", ExecErr: boom})
	s := newSession(t, db, Tracing(tp.Tracer("geesql")))

	_, err := s.Update(ctx, "update t set a = 1", nil, &session.StatementOptions{Name: "upd"})
	require.NoError(t, err)
	_, err = s.Update(ctx, "update fail set a = 1", nil, nil)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "geesql.upd", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "executed", spans[0].Events()[0].Name)

	assert.Equal(t, "geesql.unnamed", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.NotEmpty(t, spans[1].Events(), "the error is recorded as an event")
}

func TestInterceptorsCompose(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	d, _ := dialect.GetDialect("sqlite3")
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	m, err := Metrics(prometheus.NewRegistry())
	require.NoError(t, err)

	s := newSession(t, fakedb.New(), Logging(zap.New(core), d), m, Tracing(tp.Tracer("geesql")))
	_, err = s.BatchUpdate(ctx, "insert into t values (:a)", []map[string]interface{}{{"a": 1}, {"a": 2}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
	assert.Len(t, sr.Ended(), 1)
}
