package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bxshcn/geesql/dialect"
	"github.com/bxshcn/geesql/internal/fakedb"
)

func newTestSession(t *testing.T, db *fakedb.DB, opts ...Option) *Session {
	t.Helper()
	d, ok := dialect.GetDialect("sqlite3")
	require.True(t, ok)
	sqlDB := db.Open()
	s := New(sqlDB, d, opts...)
	t.Cleanup(func() {
		_ = s.Close()
		_ = sqlDB.Close()
	})
	return s
}

// recorder logs every hook call and keeps the statement seen by Closed.
type recorder struct {
	NopInterceptor
	name   string
	events []string
	last   *Statement
	errs   []error
}

func (r *recorder) add(event string) {
	if r.name != "" {
		event = r.name + ":" + event
	}
	r.events = append(r.events, event)
}

func (r *recorder) Construct(_ context.Context, st *Statement) *Statement {
	r.add("construct")
	return nil
}

func (r *recorder) Preparing(_ context.Context, st *Statement) *Statement {
	r.add("preparing")
	return nil
}

func (r *recorder) Prepared(_ context.Context, st *Statement) *Statement {
	r.add("prepared")
	return nil
}

func (r *recorder) Executed(_ context.Context, st *Statement) *Statement {
	r.add("executed")
	return nil
}

func (r *recorder) Exception(_ context.Context, st *Statement, err error) error {
	r.add("exception")
	r.errs = append(r.errs, err)
	return nil
}

func (r *recorder) Closed(_ context.Context, st *Statement) *Statement {
	r.add("closed")
	r.last = st
	return nil
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func stages(st *Statement) []Stage {
	var out []Stage
	for _, t := range st.History() {
		out = append(out, t.Stage)
	}
	return out
}
