package session

import (
	"iter"
)

// Cursor is a lazy, single-pass, forward-only view over the rows of a
// query. It is bound to the block passed to Sequence and fails with a
// precondition error once that block has returned.
type Cursor[T any] struct {
	st       *Statement
	mapper   Mapper[T]
	columns  []string
	value    T
	err      error
	count    int
	done     bool
	closed   bool
	iterated bool
}

func newCursor[T any](st *Statement, mapper Mapper[T]) *Cursor[T] {
	c := &Cursor[T]{st: st, mapper: mapper}
	columns, err := st.rows.Columns()
	if err != nil {
		c.err = &ExecutionError{Stage: StageRowsConsumed, SQL: st.PreparedSQL, Err: err}
		c.done = true
	}
	c.columns = columns
	return c
}

// Next advances to the next row and maps it. It returns false at the end
// of the rows or on the first error, which Err reports.
func (c *Cursor[T]) Next() bool {
	if c.closed {
		c.err = precondition("cursor", "cursor used after its scope ended")
		return false
	}
	if c.done {
		return false
	}
	if max := c.st.Options.MaxRows; max > 0 && c.count >= max {
		c.done = true
		return false
	}
	rows := c.st.rows
	if !rows.Next() {
		c.done = true
		if err := rows.Err(); err != nil {
			c.err = &ExecutionError{Stage: StageRowsConsumed, SQL: c.st.PreparedSQL, Err: err}
		}
		return false
	}
	row, err := scanRow(rows, c.columns, c.st.Options.MaxFieldSize)
	if err != nil {
		c.err = &ExecutionError{Stage: StageRowsConsumed, SQL: c.st.PreparedSQL, Err: err}
		c.done = true
		return false
	}
	v, err := c.mapper(row)
	if err != nil {
		c.err = err
		c.done = true
		return false
	}
	c.value = v
	c.count++
	return true
}

// Value returns the value mapped by the last successful Next, or the zero
// value once the block passed to Sequence has returned; Err then reports
// a precondition error.
func (c *Cursor[T]) Value() T {
	return c.value
}

func (c *Cursor[T]) Err() error {
	return c.err
}

// All returns the remaining rows as an iterator. It can be ranged over
// once; a second range, or one after the block returned, yields a single
// precondition error.
func (c *Cursor[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if c.closed {
			yield(zero, precondition("cursor", "cursor used after its scope ended"))
			return
		}
		if c.iterated {
			yield(zero, precondition("cursor", "sequence is not restartable"))
			return
		}
		c.iterated = true
		for c.Next() {
			if !yield(c.value, nil) {
				return
			}
		}
		if c.err != nil {
			yield(zero, c.err)
		}
	}
}

func (c *Cursor[T]) close() {
	var zero T
	c.closed = true
	c.done = true
	c.value = zero
	if c.err == nil {
		c.err = precondition("cursor", "cursor used after its scope ended")
	}
}
