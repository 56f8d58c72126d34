// Package session executes named SQL on a single connection.
//
// Every statement runs through the same lifecycle: constructed, compiled
// (through the shared statement cache), prepared, bound, executed, rows
// consumed and closed. Interceptors observe each transition.
package session

import (
	"context"
	"database/sql"

	"go.uber.org/multierr"

	"github.com/bxshcn/geesql/clause"
	"github.com/bxshcn/geesql/dialect"
	"github.com/bxshcn/geesql/log"
	"github.com/bxshcn/geesql/schema"
	"github.com/bxshcn/geesql/stmtcache"
)

// CommonDB is satisfied by both *sql.Conn and *sql.Tx.
type CommonDB interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Session owns at most one connection and one transaction. It is not safe
// for concurrent use: use one session per goroutine or unit of work.
type Session struct {
	db           *sql.DB
	conn         *sql.Conn
	dialect      dialect.Dialect
	statements   *stmtcache.Statements
	interceptors Chain
	eagerStreams bool
	tx           *Transaction
	closed       bool

	// record helper state
	refTable *schema.Schema
	clause   clause.Clause
	limit    int64
	offset   int64
	err      error
}

type Option func(*Session)

// WithStatements shares a statement cache between sessions.
func WithStatements(statements *stmtcache.Statements) Option {
	return func(s *Session) { s.statements = statements }
}

func WithInterceptors(interceptors ...Interceptor) Option {
	return func(s *Session) { s.interceptors = append(Chain(nil), interceptors...) }
}

// WithEagerStreams shows the content of stream parameters in rendered
// diagnostic SQL.
func WithEagerStreams(eager bool) Option {
	return func(s *Session) { s.eagerStreams = eager }
}

func New(db *sql.DB, dialect dialect.Dialect, opts ...Option) *Session {
	s := &Session{db: db, dialect: dialect}
	for _, opt := range opts {
		opt(s)
	}
	if s.statements == nil {
		s.statements = stmtcache.New(nil)
	}
	return s
}

func (s *Session) Dialect() dialect.Dialect { return s.dialect }

func (s *Session) Statements() *stmtcache.Statements { return s.statements }

// DB returns the active transaction if there is one, otherwise the
// session's connection, acquiring it on first use.
func (s *Session) DB(ctx context.Context) (CommonDB, error) {
	if s.closed {
		return nil, precondition("session", "session is closed")
	}
	if s.tx != nil {
		return s.tx.tx, nil
	}
	return s.connection(ctx)
}

func (s *Session) connection(ctx context.Context) (*sql.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, &ExecutionError{Stage: StagePrepared, Err: err}
	}
	s.conn = conn
	return conn, nil
}

// Close rolls back an open transaction and releases the connection. It is
// safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.tx != nil && s.tx.State() == TxActive {
		log.Info("session closed with an open transaction, rolling back")
		err = multierr.Append(err, s.tx.Rollback())
	}
	if s.conn != nil {
		err = multierr.Append(err, s.conn.Close())
		s.conn = nil
	}
	if err != nil {
		log.Error(err)
	}
	return err
}

// Clear resets the record helper state.
func (s *Session) Clear() {
	s.clause = clause.Clause{}
	s.limit, s.offset = 0, 0
	s.err = nil
}
