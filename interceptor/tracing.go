package interceptor

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bxshcn/geesql/session"
)

type tracing struct {
	session.NopInterceptor
	tracer trace.Tracer
	span   *session.Slot[trace.Span]
}

// Tracing opens a client span per statement, from construction until the
// statement is closed.
func Tracing(tracer trace.Tracer) session.Interceptor {
	return &tracing{tracer: tracer, span: session.NewSlot[trace.Span]("tracing.span")}
}

func (t *tracing) Construct(ctx context.Context, st *session.Statement) *session.Statement {
	name := "geesql." + label(st)
	_, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("geesql.statement.id", st.ID),
			attribute.String("geesql.statement.name", st.Options.Name),
			attribute.Int("geesql.batch_size", st.BatchSize()),
		),
	)
	t.span.Set(st, span)
	return nil
}

func (t *tracing) Prepared(_ context.Context, st *session.Statement) *session.Statement {
	if span, ok := t.span.Get(st); ok {
		span.SetAttributes(attribute.String("db.statement", st.PreparedSQL))
	}
	return nil
}

func (t *tracing) Executed(_ context.Context, st *session.Statement) *session.Statement {
	if span, ok := t.span.Get(st); ok {
		span.AddEvent("executed")
	}
	return nil
}

func (t *tracing) Exception(_ context.Context, st *session.Statement, err error) error {
	if span, ok := t.span.Get(st); ok {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return nil
}

func (t *tracing) Closed(_ context.Context, st *session.Statement) *session.Statement {
	if span, ok := t.span.Get(st); ok {
		if len(st.RowsAffected) > 0 {
			span.SetAttributes(attribute.Int64Slice("geesql.rows_affected", st.RowsAffected))
		}
		span.End()
	}
	return nil
}
