// Package interceptor provides ready-made statement interceptors.
package interceptor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bxshcn/geesql/dialect"
	"github.com/bxshcn/geesql/session"
)

type logging struct {
	session.NopInterceptor
	logger  *zap.Logger
	dialect dialect.Dialect
}

// Logging logs every completed statement at debug level, with its SQL
// rendered with the bound values, and every failure at error level.
func Logging(logger *zap.Logger, d dialect.Dialect) session.Interceptor {
	return &logging{logger: logger, dialect: d}
}

func (l *logging) Exception(_ context.Context, st *session.Statement, err error) error {
	l.logger.Error("statement failed",
		zap.String("id", st.ID),
		zap.String("name", st.Options.Name),
		zap.String("stage", lastStage(st).String()),
		zap.String("sql", st.PreparedSQL),
		zap.Error(err))
	return nil
}

func (l *logging) Closed(_ context.Context, st *session.Statement) *session.Statement {
	if st.Failed() || !l.logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	fields := []zap.Field{
		zap.String("id", st.ID),
		zap.String("name", st.Options.Name),
		zap.Int("batch", st.BatchSize()),
		zap.Int64s("rows_affected", st.RowsAffected),
	}
	if bound, err := st.BoundSQL(l.dialect); err == nil {
		fields = append(fields, zap.Strings("sql", bound))
	} else {
		fields = append(fields, zap.String("sql", st.PreparedSQL))
	}
	if d, ok := between(st, session.StagePrepared, session.StageExecuted); ok {
		fields = append(fields, zap.Duration("execute", d))
	}
	if d, ok := between(st, session.StageConstructed, session.StageClosed); ok {
		fields = append(fields, zap.Duration("total", d))
	}
	l.logger.Debug("statement executed", fields...)
	return nil
}

// lastStage is the stage reached before the statement failed.
func lastStage(st *session.Statement) session.Stage {
	history := st.History()
	for i := len(history) - 1; i >= 0; i-- {
		if s := history[i].Stage; s != session.StageFailed && s != session.StageClosed {
			return s
		}
	}
	return session.StageConstructed
}

func between(st *session.Statement, from, to session.Stage) (time.Duration, bool) {
	start, ok := st.Reached(from)
	if !ok {
		return 0, false
	}
	end, ok := st.Reached(to)
	if !ok {
		return 0, false
	}
	return end.Sub(start), true
}
