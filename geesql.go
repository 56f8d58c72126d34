// Package geesql runs named SQL through an observable statement lifecycle.
//
// An Engine owns the database handle, the dialect, the shared statement
// cache and the interceptors; sessions created from it share all four.
package geesql

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"

	"github.com/bxshcn/geesql/config"
	"github.com/bxshcn/geesql/dialect"
	"github.com/bxshcn/geesql/interceptor"
	"github.com/bxshcn/geesql/log"
	"github.com/bxshcn/geesql/session"
	"github.com/bxshcn/geesql/stmtcache"
)

var (
	// ErrCacheInUse is returned when the statement cache is replaced after
	// a session has been created.
	ErrCacheInUse = errors.New("geesql: statement cache already in use")
	// ErrNoScope is returned by SessionFrom outside Engine.Scope.
	ErrNoScope = errors.New("geesql: no session scope in context")
)

type Engine struct {
	db      *sql.DB
	dialect dialect.Dialect

	mu           sync.Mutex
	statements   *stmtcache.Statements
	interceptors []session.Interceptor
	eagerStreams bool
	inUse        bool
}

func NewEngine(driver, source string) (*Engine, error) {
	db, err := sql.Open(driver, source)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	// Open only validates its arguments; a failed ping is reported but the
	// pool may still connect later.
	if err = db.Ping(); err != nil {
		log.Error(err)
	}
	e, err := NewEngineWithDB(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("connect database successfully.")
	return e, nil
}

// NewEngineWithDB wraps an existing handle. The engine takes ownership:
// Close closes db.
func NewEngineWithDB(db *sql.DB, dialectName string) (*Engine, error) {
	d, ok := dialect.GetDialect(dialectName)
	if !ok {
		log.Errorf("dialect %s Not Found", dialectName)
		return nil, errors.Errorf("geesql: dialect %q not found", dialectName)
	}
	return &Engine{db: db, dialect: d, statements: stmtcache.New(nil)}, nil
}

// NewEngineFromConfig validates cfg, applies its log level and builds an
// engine with the configured cache and interceptors. Metrics register on
// the default prometheus registerer and spans use the global tracer
// provider.
func NewEngineFromConfig(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(lvl)

	statements, err := cfg.Statements()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	if err = db.Ping(); err != nil {
		log.Error(err)
	}
	e, err := NewEngineWithDB(db, cfg.DialectName())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	e.statements = statements
	e.eagerStreams = cfg.EagerStreams

	if cfg.Interceptors.Logging {
		e.Use(interceptor.Logging(log.Logger(), e.dialect))
	}
	if cfg.Interceptors.Metrics {
		m, err := interceptor.Metrics(prometheus.DefaultRegisterer)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		e.Use(m)
	}
	if cfg.Interceptors.Tracing {
		e.Use(interceptor.Tracing(otel.Tracer("github.com/bxshcn/geesql")))
	}
	return e, nil
}

func (e *Engine) Dialect() dialect.Dialect { return e.dialect }

func (e *Engine) DB() *sql.DB { return e.db }

// Statements returns the cache shared by the engine's sessions.
func (e *Engine) Statements() *stmtcache.Statements {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statements
}

// Use appends interceptors. Sessions created earlier keep the chain they
// were created with.
func (e *Engine) Use(interceptors ...session.Interceptor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interceptors = append(e.interceptors, interceptors...)
}

// SetEagerStreams controls whether rendered SQL shows stream contents.
func (e *Engine) SetEagerStreams(eager bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eagerStreams = eager
}

// SetStatementCache replaces the cache policy. It must be called before
// the first session is created.
func (e *Engine) SetStatementCache(c stmtcache.Cache) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inUse {
		return ErrCacheInUse
	}
	e.statements = stmtcache.New(c)
	return nil
}

func (e *Engine) NewSession() *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inUse = true
	return session.New(e.db, e.dialect,
		session.WithStatements(e.statements),
		session.WithInterceptors(e.interceptors...),
		session.WithEagerStreams(e.eagerStreams),
	)
}

// Transaction runs fn on a new session inside a transaction, committing
// when fn returns nil and rolling back when it fails or panics. The session
// is closed afterwards.
func (e *Engine) Transaction(ctx context.Context, fn func(*session.Session) error) (err error) {
	s := e.NewSession()
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return s.Transaction(ctx, func(*session.Transaction) error {
		return fn(s)
	})
}

func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		log.Error(err)
		return err
	}
	log.Info("Close database connection successfully")
	return nil
}

type scopeKey struct{}

type scope struct {
	engine  *Engine
	session *session.Session
}

// Scope runs fn with a context carrying a lazily created session, reached
// through SessionFrom. When fn returns, a transaction still open on that
// session is committed, or rolled back if fn failed, panicked or marked it
// rollback-only, and the session is closed. A nested Scope on the same
// engine joins the outer one.
func (e *Engine) Scope(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if sc, ok := ctx.Value(scopeKey{}).(*scope); ok && sc.engine == e {
		return fn(ctx)
	}
	sc := &scope{engine: e}
	defer func() {
		if sc.session == nil {
			return
		}
		p := recover()
		var cerr error
		if tx := sc.session.ActiveTransaction(); tx != nil {
			if p != nil || err != nil {
				cerr = tx.Rollback()
			} else {
				cerr = tx.Commit()
			}
		}
		cerr = multierr.Append(cerr, sc.session.Close())
		if p != nil {
			panic(p)
		}
		if err == nil {
			err = cerr
		}
	}()
	return fn(context.WithValue(ctx, scopeKey{}, sc))
}

// SessionFrom returns the session of the enclosing Scope, creating it on
// first use.
func SessionFrom(ctx context.Context) (*session.Session, error) {
	sc, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok {
		return nil, ErrNoScope
	}
	if sc.session == nil {
		sc.session = sc.engine.NewSession()
	}
	return sc.session, nil
}
