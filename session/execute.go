package session

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/bxshcn/geesql/log"
	"github.com/bxshcn/geesql/namedsql"
	"github.com/bxshcn/geesql/stmtcache"
)

// phase holds the variant specific part of an execution. execute performs
// the driver call(s); consume, if set, reads the results once the executed
// hooks have run.
type phase struct {
	execute func(ctx context.Context, st *Statement) error
	consume func(ctx context.Context, st *Statement) error
}

func single(params map[string]interface{}) []map[string]interface{} {
	return []map[string]interface{}{params}
}

// run drives one statement through its lifecycle. Whatever happens, the
// native statement is released and the closed hooks fire exactly once,
// after any error went through the exception hooks.
func (s *Session) run(ctx context.Context, sqlText string, paramsList []map[string]interface{}, opts *StatementOptions, ph phase) (err error) {
	if s.closed {
		return precondition("execute", "session is closed")
	}
	st := newStatement(sqlText, paramsList, copyOptions(opts))
	cancel := context.CancelFunc(func() {})
	defer func() { cancel() }()

	defer func() {
		p := recover()
		if p != nil {
			err = errors.Errorf("panic during %s: %v", st.Stage(), p)
		}
		if err != nil {
			st.advance(StageFailed)
			err = s.interceptors.exception(ctx, st, err)
		}
		s.release(st)
		st.advance(StageClosed)
		st = s.interceptors.closed(ctx, st)
		if p != nil {
			panic(p)
		}
	}()

	st = s.interceptors.construct(ctx, st)
	if st.Options.QueryTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, st.Options.QueryTimeout)
	}

	if err = s.compile(st); err != nil {
		return err
	}
	if st, err = s.prepare(ctx, st); err != nil {
		return err
	}
	if err = s.bind(st); err != nil {
		return err
	}
	if hook := st.Options.BeforeExecution; hook != nil {
		if err = hook(ctx, st); err != nil {
			return err
		}
	}
	if err = ph.execute(ctx, st); err != nil {
		return err
	}
	st.advance(StageExecuted)
	st = s.interceptors.executed(ctx, st)
	if ph.consume != nil {
		if err = ph.consume(ctx, st); err != nil {
			return err
		}
	}
	st.advance(StageRowsConsumed)
	return nil
}

func (s *Session) compile(st *Statement) error {
	sizes, err := inClauseSizes(st.ParamsList)
	if err != nil {
		return err
	}
	opts := &st.Options
	hasLimit, hasOffset := opts.hasLimit(), opts.hasOffset()
	returning := opts.returning(s.dialect.SupportsReturning())
	key := stmtcache.NewKey(st.SQL, sizes, opts.Name, hasLimit, hasOffset, returning)
	q, err := s.statements.GetOrCompute(key, func() (*namedsql.Query, error) {
		text := s.dialect.ApplyLimitOffset(st.SQL, hasLimit, hasOffset)
		if len(returning) > 0 {
			text += s.dialect.Returning(returning)
		}
		return namedsql.Compile(s.dialect, text, sizes)
	})
	if err != nil {
		return &PreconditionError{Op: "compile", Reason: "malformed named SQL", Err: err}
	}
	st.query = q
	st.PreparedSQL = q.SQL
	st.PreparedParams = q.Params
	st.InClauseSizes = q.InClauseSizes
	if opts.ApplyNameToQuery && opts.Name != "" {
		st.PreparedSQL = "/* " + strings.ReplaceAll(opts.Name, "*/", "* /") + " */ " + q.SQL
	}
	st.advance(StageCompiled)
	return nil
}

func (s *Session) prepare(ctx context.Context, st *Statement) (*Statement, error) {
	st = s.interceptors.preparing(ctx, st)
	db, err := s.DB(ctx)
	if err != nil {
		return st, err
	}
	stmt, err := db.PrepareContext(ctx, st.PreparedSQL)
	if err != nil {
		return st, &ExecutionError{Stage: StagePrepared, SQL: st.PreparedSQL, Err: err}
	}
	st.Stmt = stmt
	st.advance(StagePrepared)
	return s.interceptors.prepared(ctx, st), nil
}

func (s *Session) bind(st *Statement) error {
	b := &binder{query: st.query, opts: &st.Options, eager: s.eagerStreams}
	for _, params := range st.ParamsList {
		args, shown, err := b.bind(params)
		if err != nil {
			return err
		}
		st.BoundArgs = append(st.BoundArgs, args)
		st.display = append(st.display, shown)
	}
	st.advance(StageBound)
	return nil
}

// release closes the result set and the native statement. Failures are
// logged; they never replace the outcome of the call.
func (s *Session) release(st *Statement) {
	if st.rows != nil {
		if err := st.rows.Close(); err != nil {
			log.Errorf("close rows of statement %s: %v", st.ID, err)
		}
		st.rows = nil
	}
	if st.Stmt != nil {
		if err := st.Stmt.Close(); err != nil {
			log.Errorf("close statement %s: %v", st.ID, err)
		}
	}
}

func (s *Session) executeUpdates(ctx context.Context, st *Statement) error {
	for _, args := range st.BoundArgs {
		res, err := st.Stmt.ExecContext(ctx, args...)
		if err != nil {
			return &ExecutionError{Stage: StageExecuted, SQL: st.PreparedSQL, Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		st.RowsAffected = append(st.RowsAffected, n)
	}
	return nil
}

func (s *Session) executeQuery(ctx context.Context, st *Statement) error {
	rows, err := st.Stmt.QueryContext(ctx, st.BoundArgs[0]...)
	if err != nil {
		return &ExecutionError{Stage: StageExecuted, SQL: st.PreparedSQL, Err: err}
	}
	st.rows = rows
	return nil
}

// eachRow reads rows into fn, stopping after limit rows when limit > 0.
func (st *Statement) eachRow(rows *sql.Rows, limit int, fn func(*Row) error) error {
	columns, err := rows.Columns()
	if err != nil {
		return &ExecutionError{Stage: StageRowsConsumed, SQL: st.PreparedSQL, Err: err}
	}
	for n := 0; (limit <= 0 || n < limit) && rows.Next(); n++ {
		row, err := scanRow(rows, columns, st.Options.MaxFieldSize)
		if err != nil {
			return &ExecutionError{Stage: StageRowsConsumed, SQL: st.PreparedSQL, Err: err}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &ExecutionError{Stage: StageRowsConsumed, SQL: st.PreparedSQL, Err: err}
	}
	return nil
}

// Select runs a query and maps every row. The result is empty, not nil,
// when no rows match.
func Select[T any](ctx context.Context, s *Session, sqlText string, params map[string]interface{}, opts *StatementOptions, mapper Mapper[T]) ([]T, error) {
	out := make([]T, 0)
	err := s.run(ctx, sqlText, single(params), opts, phase{
		execute: s.executeQuery,
		consume: func(_ context.Context, st *Statement) error {
			return st.eachRow(st.rows, st.Options.MaxRows, func(r *Row) error {
				v, err := mapper(r)
				if err != nil {
					return err
				}
				out = append(out, v)
				return nil
			})
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SelectOne maps the first row only, returning sql.ErrNoRows when there is
// none.
func SelectOne[T any](ctx context.Context, s *Session, sqlText string, params map[string]interface{}, opts *StatementOptions, mapper Mapper[T]) (T, error) {
	var (
		out   T
		found bool
	)
	err := s.run(ctx, sqlText, single(params), opts, phase{
		execute: s.executeQuery,
		consume: func(_ context.Context, st *Statement) error {
			return st.eachRow(st.rows, 1, func(r *Row) error {
				v, err := mapper(r)
				if err != nil {
					return err
				}
				out, found = v, true
				return nil
			})
		},
	})
	if err != nil {
		return out, err
	}
	if !found {
		return out, sql.ErrNoRows
	}
	return out, nil
}

// ForEach streams rows into fn without materializing them.
func (s *Session) ForEach(ctx context.Context, sqlText string, params map[string]interface{}, opts *StatementOptions, fn func(*Row) error) error {
	return s.run(ctx, sqlText, single(params), opts, phase{
		execute: s.executeQuery,
		consume: func(_ context.Context, st *Statement) error {
			return st.eachRow(st.rows, st.Options.MaxRows, fn)
		},
	})
}

// Sequence exposes the rows of a query to block as a lazy, forward-only
// cursor. The cursor is only valid while block runs.
func Sequence[T any](ctx context.Context, s *Session, sqlText string, params map[string]interface{}, opts *StatementOptions, mapper Mapper[T], block func(*Cursor[T]) error) error {
	return s.run(ctx, sqlText, single(params), opts, phase{
		execute: s.executeQuery,
		consume: func(_ context.Context, st *Statement) error {
			c := newCursor(st, mapper)
			defer c.close()
			if err := block(c); err != nil {
				return err
			}
			return c.Err()
		},
	})
}

// Update executes a single statement and returns the affected row count.
func (s *Session) Update(ctx context.Context, sqlText string, params map[string]interface{}, opts *StatementOptions) (int64, error) {
	var n int64
	err := s.run(ctx, sqlText, single(params), opts, phase{
		execute: func(ctx context.Context, st *Statement) error {
			if err := s.executeUpdates(ctx, st); err != nil {
				return err
			}
			n = st.RowsAffected[0]
			return nil
		},
	})
	return n, err
}

// BatchUpdate executes the statement once per parameter map and returns
// the affected row count of each. An empty batch is rejected before any
// interceptor or driver call.
func (s *Session) BatchUpdate(ctx context.Context, sqlText string, paramsList []map[string]interface{}, opts *StatementOptions) ([]int64, error) {
	if len(paramsList) == 0 {
		return nil, precondition("batch update", "empty batch")
	}
	var counts []int64
	err := s.run(ctx, sqlText, paramsList, opts, phase{
		execute: func(ctx context.Context, st *Statement) error {
			if err := s.executeUpdates(ctx, st); err != nil {
				return err
			}
			counts = append([]int64(nil), st.RowsAffected...)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Exec runs a statement, typically DDL, and returns the driver result.
func (s *Session) Exec(ctx context.Context, sqlText string, params map[string]interface{}) (sql.Result, error) {
	var result sql.Result
	err := s.run(ctx, sqlText, single(params), nil, phase{
		execute: func(ctx context.Context, st *Statement) error {
			res, err := st.Stmt.ExecContext(ctx, st.BoundArgs[0]...)
			if err != nil {
				return &ExecutionError{Stage: StageExecuted, SQL: st.PreparedSQL, Err: err}
			}
			if n, err := res.RowsAffected(); err == nil {
				st.RowsAffected = append(st.RowsAffected, n)
			}
			result = res
			return nil
		},
	})
	return result, err
}

// InsertWithKeys executes an insert and maps its generated key.
func InsertWithKeys[K any](ctx context.Context, s *Session, sqlText string, params map[string]interface{}, opts *StatementOptions, mapper Mapper[K]) (int64, K, error) {
	var zero K
	keys, counts, err := insertWithKeys(ctx, s, sqlText, single(params), opts, mapper)
	if err != nil {
		return 0, zero, err
	}
	return counts[0], keys[0], nil
}

// BatchInsertWithKeys executes an insert per parameter map and maps one
// generated key per map.
func BatchInsertWithKeys[K any](ctx context.Context, s *Session, sqlText string, paramsList []map[string]interface{}, opts *StatementOptions, mapper Mapper[K]) ([]K, error) {
	if len(paramsList) == 0 {
		return nil, precondition("batch insert", "empty batch")
	}
	keys, _, err := insertWithKeys(ctx, s, sqlText, paramsList, opts, mapper)
	return keys, err
}

// insertWithKeys reads generated keys through RETURNING when the dialect
// supports it and key columns were named, and through LastInsertId
// otherwise. The number of keys must match the number of parameter maps.
func insertWithKeys[K any](ctx context.Context, s *Session, sqlText string, paramsList []map[string]interface{}, opts *StatementOptions, mapper Mapper[K]) ([]K, []int64, error) {
	o := copyOptions(opts)
	o.UseGeneratedKeys = true
	var (
		keyRows []*Row
		keys    []K
		counts  []int64
	)
	err := s.run(ctx, sqlText, paramsList, &o, phase{
		execute: func(ctx context.Context, st *Statement) error {
			if len(st.Options.returning(s.dialect.SupportsReturning())) > 0 {
				return s.executeReturning(ctx, st, &keyRows)
			}
			return s.executeLastInsertID(ctx, st, &keyRows)
		},
		consume: func(_ context.Context, st *Statement) error {
			if len(keyRows) != len(st.ParamsList) {
				return precondition("insert", "driver returned %d generated keys for %d rows", len(keyRows), len(st.ParamsList))
			}
			for _, r := range keyRows {
				k, err := mapper(r)
				if err != nil {
					return err
				}
				keys = append(keys, k)
			}
			counts = append([]int64(nil), st.RowsAffected...)
			return nil
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return keys, counts, nil
}

// executeReturning buffers the RETURNING rows of every batch element so
// that the executed hooks still fire before keys are mapped.
func (s *Session) executeReturning(ctx context.Context, st *Statement, keyRows *[]*Row) error {
	for _, args := range st.BoundArgs {
		rows, err := st.Stmt.QueryContext(ctx, args...)
		if err != nil {
			return &ExecutionError{Stage: StageExecuted, SQL: st.PreparedSQL, Err: err}
		}
		st.rows = rows
		var n int64
		err = st.eachRow(rows, 0, func(r *Row) error {
			*keyRows = append(*keyRows, r)
			n++
			return nil
		})
		st.rows = nil
		if cerr := rows.Close(); cerr != nil {
			log.Errorf("close rows of statement %s: %v", st.ID, cerr)
		}
		if err != nil {
			return err
		}
		st.RowsAffected = append(st.RowsAffected, n)
	}
	return nil
}

func (s *Session) executeLastInsertID(ctx context.Context, st *Statement, keyRows *[]*Row) error {
	column := "id"
	if cols := st.Options.GeneratedKeyColumns; len(cols) > 0 {
		column = cols[0]
	}
	for _, args := range st.BoundArgs {
		res, err := st.Stmt.ExecContext(ctx, args...)
		if err != nil {
			return &ExecutionError{Stage: StageExecuted, SQL: st.PreparedSQL, Err: err}
		}
		id, err := res.LastInsertId()
		if err != nil {
			return &PreconditionError{Op: "insert", Reason: "driver did not report generated keys", Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		st.RowsAffected = append(st.RowsAffected, n)
		*keyRows = append(*keyRows, NewRow([]string{column}, []interface{}{id}))
	}
	return nil
}

// Render returns the diagnostic SQL of st with literals inlined.
func (s *Session) Render(st *Statement) ([]string, error) {
	return st.BoundSQL(s.dialect)
}
