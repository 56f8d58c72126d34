package interceptor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bxshcn/geesql/session"
)

const unnamed = "unnamed"

type metrics struct {
	session.NopInterceptor
	execute  *prometheus.HistogramVec
	fetch    *prometheus.HistogramVec
	failures *prometheus.CounterVec
	started  *session.Slot[time.Time]
	executed *session.Slot[time.Time]
}

// Metrics records execute latency (from preparing to executed), fetch
// latency (from executed to closed) and failures, labelled by statement
// name. Registering twice on the same registerer reuses the collectors.
func Metrics(reg prometheus.Registerer) (session.Interceptor, error) {
	m := &metrics{
		execute: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geesql_statement_execute_seconds",
			Help:    "Time from preparing a statement until the driver returned from executing it.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
		fetch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geesql_statement_fetch_seconds",
			Help:    "Time spent consuming results and closing a statement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geesql_statement_errors_total",
			Help: "Statements that failed at any stage.",
		}, []string{"name"}),
		started:  session.NewSlot[time.Time]("metrics.started"),
		executed: session.NewSlot[time.Time]("metrics.executed"),
	}
	var err error
	if m.execute, err = register(reg, m.execute); err != nil {
		return nil, err
	}
	if m.fetch, err = register(reg, m.fetch); err != nil {
		return nil, err
	}
	if m.failures, err = register(reg, m.failures); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "register statement metrics")
	}
	return c, nil
}

func label(st *session.Statement) string {
	if st.Options.Name == "" {
		return unnamed
	}
	return st.Options.Name
}

func (m *metrics) Preparing(_ context.Context, st *session.Statement) *session.Statement {
	m.started.Set(st, time.Now())
	return nil
}

func (m *metrics) Executed(_ context.Context, st *session.Statement) *session.Statement {
	now := time.Now()
	if start, ok := m.started.Get(st); ok {
		m.execute.WithLabelValues(label(st)).Observe(now.Sub(start).Seconds())
	}
	m.executed.Set(st, now)
	return nil
}

func (m *metrics) Exception(_ context.Context, st *session.Statement, err error) error {
	m.failures.WithLabelValues(label(st)).Inc()
	return nil
}

func (m *metrics) Closed(_ context.Context, st *session.Statement) *session.Statement {
	if executed, ok := m.executed.Get(st); ok {
		m.fetch.WithLabelValues(label(st)).Observe(time.Since(executed).Seconds())
	}
	return nil
}
