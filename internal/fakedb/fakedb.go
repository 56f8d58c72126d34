// Package fakedb is a scriptable database/sql driver that records every
// call made against it.
package fakedb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrNoLastInsertID is returned by results when the DB is configured not
// to report generated keys.
var ErrNoLastInsertID = errors.New("fakedb: LastInsertId is not supported")

// Rule scripts the outcome of statements whose SQL contains Match.
type Rule struct {
	Match        string
	Columns      []string
	Rows         [][]driver.Value
	RowsAffected int64
	PrepareErr   error
	ExecErr      error
	// NextErr is returned while iterating the rows of a query.
	NextErr error
}

// Call is one execution of a prepared statement.
type Call struct {
	SQL  string
	Args []driver.Value
}

type DB struct {
	mu             sync.Mutex
	rules          []Rule
	events         []string
	prepares       []string
	execs          []Call
	queries        []Call
	stmtCloses     int
	begins         int
	commits        int
	rollbacks      int
	connCloses     int
	lastInsertID   int64
	noLastInsertID bool
}

func New() *DB {
	return &DB{}
}

// Open returns a *sql.DB backed by db.
func (db *DB) Open() *sql.DB {
	return sql.OpenDB(&connector{db: db})
}

// Script adds a rule. Rules are matched in the order they were added.
func (db *DB) Script(r Rule) *DB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rules = append(db.rules, r)
	return db
}

// NoLastInsertID makes every result fail LastInsertId.
func (db *DB) NoLastInsertID() *DB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.noLastInsertID = true
	return db
}

// SetLastInsertID sets the id reported by the next insert; later inserts
// count up from it.
func (db *DB) SetLastInsertID(id int64) *DB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.lastInsertID = id - 1
	return db
}

func (db *DB) rule(query string) Rule {
	for _, r := range db.rules {
		if strings.Contains(query, r.Match) {
			return r
		}
	}
	return Rule{RowsAffected: 1}
}

func (db *DB) record(event string) {
	db.events = append(db.events, event)
}

// Events lists recorded calls in order: prepare, exec, query, stmt-close,
// begin, commit, rollback and conn-close.
func (db *DB) Events() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]string(nil), db.events...)
}

func (db *DB) Prepares() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]string(nil), db.prepares...)
}

func (db *DB) Execs() []Call {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]Call(nil), db.execs...)
}

func (db *DB) Queries() []Call {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]Call(nil), db.queries...)
}

func (db *DB) StmtCloses() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.stmtCloses
}

func (db *DB) Begins() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.begins
}

func (db *DB) Commits() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commits
}

func (db *DB) Rollbacks() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rollbacks
}

func (db *DB) ConnCloses() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.connCloses
}

type connector struct {
	db *DB
}

func (c *connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{db: c.db}, nil
}

func (c *connector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("fakedb: use DB.Open")
}

type conn struct {
	db *DB
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	db := c.db
	db.mu.Lock()
	defer db.mu.Unlock()
	db.record("prepare")
	db.prepares = append(db.prepares, query)
	if r := db.rule(query); r.PrepareErr != nil {
		return nil, r.PrepareErr
	}
	return &stmt{db: db, query: query}, nil
}

func (c *conn) Close() error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.record("conn-close")
	c.db.connCloses++
	return nil
}

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.record("begin")
	c.db.begins++
	return &tx{db: c.db}, nil
}

type tx struct {
	db *DB
}

func (t *tx) Commit() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.record("commit")
	t.db.commits++
	return nil
}

func (t *tx) Rollback() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.record("rollback")
	t.db.rollbacks++
	return nil
}

type stmt struct {
	db    *DB
	query string
}

func (s *stmt) Close() error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.record("stmt-close")
	s.db.stmtCloses++
	return nil
}

// NumInput is unknown so that database/sql leaves argument counting to us.
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	db.record("exec")
	db.execs = append(db.execs, Call{SQL: s.query, Args: args})
	r := db.rule(s.query)
	if r.ExecErr != nil {
		return nil, r.ExecErr
	}
	db.lastInsertID++
	return &result{id: db.lastInsertID, affected: r.RowsAffected, noID: db.noLastInsertID}, nil
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	db.record("query")
	db.queries = append(db.queries, Call{SQL: s.query, Args: args})
	r := db.rule(s.query)
	if r.ExecErr != nil {
		return nil, r.ExecErr
	}
	return &rows{columns: r.Columns, data: r.Rows, nextErr: r.NextErr}, nil
}

type result struct {
	id       int64
	affected int64
	noID     bool
}

func (r *result) LastInsertId() (int64, error) {
	if r.noID {
		return 0, ErrNoLastInsertID
	}
	return r.id, nil
}

func (r *result) RowsAffected() (int64, error) { return r.affected, nil }

type rows struct {
	columns []string
	data    [][]driver.Value
	pos     int
	nextErr error
}

func (r *rows) Columns() []string { return r.columns }

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		if r.nextErr != nil {
			return r.nextErr
		}
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}
