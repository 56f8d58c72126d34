package session

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bxshcn/geesql/dialect"
	"github.com/bxshcn/geesql/namedsql"
)

// Stage is a step of a statement's lifecycle. Stages only move forward;
// StageFailed may follow any stage before StageClosed.
type Stage int

const (
	StageConstructed Stage = iota
	StageCompiled
	StagePrepared
	StageBound
	StageExecuted
	StageRowsConsumed
	StageClosed
	StageFailed
)

var stageNames = [...]string{
	StageConstructed:  "constructed",
	StageCompiled:     "compiled",
	StagePrepared:     "prepared",
	StageBound:        "bound",
	StageExecuted:     "executed",
	StageRowsConsumed: "rows consumed",
	StageClosed:       "closed",
	StageFailed:       "failed",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Transition records when a statement reached a stage.
type Transition struct {
	Stage Stage
	At    time.Time
}

// Statement is the state of one execution, threaded through every
// interceptor hook. It is owned by the executing call and must not be
// retained or shared once the call returns.
type Statement struct {
	ID string
	// SQL is the named SQL as supplied by the caller.
	SQL string
	// PreparedSQL is the positional SQL handed to the driver.
	PreparedSQL string
	// PreparedParams lists parameter names in placeholder order.
	PreparedParams []string
	// ParamsList holds one parameter map per batch element.
	ParamsList    []map[string]interface{}
	Options       StatementOptions
	Stmt          *sql.Stmt
	InClauseSizes map[string]int
	// RowsAffected holds one count per executed batch element.
	RowsAffected []int64
	// BoundArgs holds the positional arguments of each batch element.
	BoundArgs [][]interface{}

	query   *namedsql.Query
	display [][]interface{}
	rows    *sql.Rows
	slots   map[interface{}]interface{}
	history []Transition
}

func newStatement(sqlText string, paramsList []map[string]interface{}, opts StatementOptions) *Statement {
	st := &Statement{
		ID:         uuid.NewString(),
		SQL:        sqlText,
		ParamsList: paramsList,
		Options:    opts,
	}
	st.advance(StageConstructed)
	return st
}

func (st *Statement) advance(stage Stage) {
	st.history = append(st.history, Transition{Stage: stage, At: time.Now()})
}

// Stage returns the most recent stage reached.
func (st *Statement) Stage() Stage {
	if len(st.history) == 0 {
		return StageConstructed
	}
	return st.history[len(st.history)-1].Stage
}

// History returns every stage transition in order.
func (st *Statement) History() []Transition {
	return append([]Transition(nil), st.history...)
}

// Reached returns the time the statement first entered stage.
func (st *Statement) Reached(stage Stage) (time.Time, bool) {
	for _, t := range st.history {
		if t.Stage == stage {
			return t.At, true
		}
	}
	return time.Time{}, false
}

// BatchSize is the number of parameter maps being executed.
func (st *Statement) BatchSize() int {
	return len(st.ParamsList)
}

// BoundSQL renders the statement once per batch element with its bound
// values inlined as literals. Stream contents are only shown when the
// session reads streams eagerly. The result is for diagnostics only.
func (st *Statement) BoundSQL(d dialect.Dialect) ([]string, error) {
	if st.query == nil {
		return nil, precondition("render", "statement %s is not compiled", st.ID)
	}
	out := make([]string, 0, len(st.display))
	for _, args := range st.display {
		s, err := namedsql.Render(d, st.query.Original, st.query.InClauseSizes, args, func(v interface{}) string {
			if m, ok := v.(streamMarker); ok {
				return m.String()
			}
			return d.BindLiteral(v)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Slot is a typed, per-statement storage cell owned by one interceptor.
type Slot[T any] struct {
	name string
}

// NewSlot creates a slot. Each call returns a distinct slot, even for the
// same name; the name only shows up in diagnostics.
func NewSlot[T any](name string) *Slot[T] {
	return &Slot[T]{name: name}
}

func (s *Slot[T]) Name() string { return s.name }

func (s *Slot[T]) Get(st *Statement) (T, bool) {
	v, ok := st.slots[s]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

func (s *Slot[T]) Set(st *Statement, v T) {
	if st.slots == nil {
		st.slots = make(map[interface{}]interface{})
	}
	st.slots[s] = v
}

// Failed reports whether any stage of the statement failed.
func (st *Statement) Failed() bool {
	for _, t := range st.history {
		if t.Stage == StageFailed {
			return true
		}
	}
	return false
}
