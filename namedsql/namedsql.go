// Package namedsql compiles SQL containing :name parameters into the
// positional form understood by database/sql drivers.
package namedsql

import (
	"strings"

	"github.com/bxshcn/geesql/dialect"
)

// Query is a compiled named query. It is immutable once Compile returns
// and may be shared between goroutines.
type Query struct {
	// Original is the SQL handed to Compile.
	Original string
	// SQL is the compiled statement with positional placeholders.
	SQL string
	// Params holds one entry per :name token in placeholder order,
	// repeats included.
	Params []string
	// InClauseSizes is the collection cardinality each expanded name was
	// compiled for.
	InClauseSizes map[string]int
}

// Slots is the number of placeholders reserved for a collection of the
// given size. An empty collection still gets one slot, bound to null.
func Slots(size int) int {
	if size < 1 {
		return 1
	}
	return size
}

// Count returns the number of positional placeholders in q.SQL.
func (q *Query) Count() int {
	n := 0
	for _, name := range q.Params {
		if size, ok := q.InClauseSizes[name]; ok {
			n += Slots(size)
		} else {
			n++
		}
	}
	return n
}

// Size approximates the memory held by q in bytes.
func (q *Query) Size() int {
	n := len(q.Original) + len(q.SQL)
	for _, p := range q.Params {
		n += len(p)
	}
	return n + 16*len(q.InClauseSizes)
}

// Compile replaces each :name token in sql with the dialect's positional
// placeholder. Names present in sizes are collection parameters and
// expand to Slots(size) comma separated placeholders, for IN (:ids).
func Compile(d dialect.Dialect, sql string, sizes map[string]int) (*Query, error) {
	var (
		b      strings.Builder
		params []string
		n      int
		in     map[string]int
	)
	b.Grow(len(sql) + 16)
	sc := &scanner{
		sql:    sql,
		syntax: d.Syntax(),
		text:   func(s string) { b.WriteString(s) },
		param: func(name string) {
			params = append(params, name)
			size, ok := sizes[name]
			if !ok {
				n++
				b.WriteString(d.Placeholder(n))
				return
			}
			if in == nil {
				in = make(map[string]int)
			}
			in[name] = size
			for i := 0; i < Slots(size); i++ {
				if i > 0 {
					b.WriteString(", ")
				}
				n++
				b.WriteString(d.Placeholder(n))
			}
		},
	}
	if err := sc.run(); err != nil {
		return nil, err
	}
	return &Query{Original: sql, SQL: b.String(), Params: params, InClauseSizes: in}, nil
}

// Names returns the distinct parameter names referenced by sql in order
// of first appearance.
func Names(d dialect.Dialect, sql string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	sc := &scanner{
		sql:    sql,
		syntax: d.Syntax(),
		text:   func(string) {},
		param: func(name string) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		},
	}
	if err := sc.run(); err != nil {
		return nil, err
	}
	return names, nil
}

// Render substitutes literals for the :name tokens of sql, consuming args
// in the order Compile numbered the placeholders. It reconstructs readable
// SQL for diagnostics and must never be executed.
func Render(d dialect.Dialect, sql string, sizes map[string]int, args []interface{}, literal func(interface{}) string) (string, error) {
	if literal == nil {
		literal = d.BindLiteral
	}
	var b strings.Builder
	next := 0
	arg := func() string {
		if next >= len(args) {
			return "?"
		}
		next++
		return literal(args[next-1])
	}
	sc := &scanner{
		sql:    sql,
		syntax: d.Syntax(),
		text:   func(s string) { b.WriteString(s) },
		param: func(name string) {
			size, ok := sizes[name]
			if !ok {
				b.WriteString(arg())
				return
			}
			for i := 0; i < Slots(size); i++ {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(arg())
			}
		},
	}
	if err := sc.run(); err != nil {
		return "", err
	}
	return b.String(), nil
}
