package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bxshcn/geesql/log"
)

type TxState int

const (
	TxActive TxState = iota
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled back"
	}
	return fmt.Sprintf("TxState(%d)", int(s))
}

// Transaction is a unit of work on the session's connection.
type Transaction struct {
	s            *Session
	tx           *sql.Tx
	state        TxState
	rollbackOnly bool
	after        []func(committed bool)
}

// Begin starts a transaction on the session's connection. A session holds
// at most one transaction; savepoints are not supported.
func (s *Session) Begin(ctx context.Context) (*Transaction, error) {
	if s.tx != nil {
		return nil, precondition("begin", "a transaction is already active")
	}
	if s.closed {
		return nil, precondition("begin", "session is closed")
	}
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("transaction begin")
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	s.tx = &Transaction{s: s, tx: tx}
	return s.tx, nil
}

// ActiveTransaction returns the transaction in progress, or nil.
func (s *Session) ActiveTransaction() *Transaction {
	return s.tx
}

func (t *Transaction) State() TxState { return t.state }

// SetRollbackOnly marks the transaction so that it can only roll back.
// The mark cannot be cleared.
func (t *Transaction) SetRollbackOnly() { t.rollbackOnly = true }

func (t *Transaction) RollbackOnly() bool { return t.rollbackOnly }

// AfterCompletion registers fn to run once the transaction committed or
// rolled back.
func (t *Transaction) AfterCompletion(fn func(committed bool)) {
	t.after = append(t.after, fn)
}

// Commit commits the transaction, or rolls it back if it was marked
// rollback-only.
func (t *Transaction) Commit() error {
	if t.state != TxActive {
		return precondition("commit", "transaction already %s", t.state)
	}
	if t.rollbackOnly {
		log.Info("transaction is rollback-only, rolling back instead of committing")
		return t.Rollback()
	}
	log.Info("transaction commit")
	err := t.tx.Commit()
	if err != nil {
		log.Error(err)
		t.finish(TxRolledBack)
		return errors.Wrap(err, "commit")
	}
	t.finish(TxCommitted)
	return nil
}

func (t *Transaction) Rollback() error {
	if t.state != TxActive {
		return precondition("rollback", "transaction already %s", t.state)
	}
	log.Info("transaction rollback")
	err := t.tx.Rollback()
	t.finish(TxRolledBack)
	if err != nil {
		log.Error(err)
		return errors.Wrap(err, "rollback")
	}
	return nil
}

func (t *Transaction) finish(state TxState) {
	t.state = state
	if t.s.tx == t {
		t.s.tx = nil
	}
	for _, fn := range t.after {
		fn(state == TxCommitted)
	}
}

// Transaction runs fn inside a transaction. If one is already active on
// the session, fn joins it; a failure inside a joined call marks the
// transaction rollback-only. Otherwise a new transaction is committed
// when fn returns nil and rolled back when fn fails, panics or marked it
// rollback-only.
func (s *Session) Transaction(ctx context.Context, fn func(*Transaction) error) (err error) {
	if tx := s.tx; tx != nil {
		defer func() {
			if p := recover(); p != nil {
				tx.SetRollbackOnly()
				panic(p)
			}
			if err != nil {
				tx.SetRollbackOnly()
			}
		}()
		return fn(tx)
	}

	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if tx.State() != TxActive {
			return
		}
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-throw panic after Rollback
		} else if err != nil {
			_ = tx.Rollback() // err is non-nil; don't change it
		} else {
			err = tx.Commit() // rolls back when rollback-only
		}
	}()
	return fn(tx)
}
