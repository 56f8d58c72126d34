package session

import (
	"context"
	"time"
)

// StatementOptions configures a single execution. The zero value executes
// the SQL as written.
type StatementOptions struct {
	// Limit and Offset paginate a query through the dialect's reserved
	// LimitParam and OffsetParam. Zero means unset.
	Limit  int64
	Offset int64
	// QueryTimeout bounds prepare, execute and row fetching.
	QueryTimeout time.Duration
	// MaxRows stops row consumption once reached. Zero means unlimited.
	MaxRows int
	// MaxFieldSize truncates string and byte column values, in bytes.
	MaxFieldSize int
	// UseGeneratedKeys requests the keys of inserted rows. Set implicitly
	// by the insert-with-keys variants.
	UseGeneratedKeys bool
	// GeneratedKeyColumns names the key columns returned through a
	// RETURNING clause on dialects that support it.
	GeneratedKeyColumns []string
	// Name labels the statement for interceptors and caching.
	Name string
	// ApplyNameToQuery prefixes the SQL sent to the driver with a
	// /* Name */ comment.
	ApplyNameToQuery bool
	// BeforeExecution runs after binding, right before the driver call.
	BeforeExecution func(ctx context.Context, st *Statement) error
}

func (o *StatementOptions) hasLimit() bool  { return o.Limit > 0 }
func (o *StatementOptions) hasOffset() bool { return o.Offset > 0 }

func (o *StatementOptions) returning(supported bool) []string {
	if o.UseGeneratedKeys && supported && len(o.GeneratedKeyColumns) > 0 {
		return o.GeneratedKeyColumns
	}
	return nil
}

func copyOptions(opts *StatementOptions) StatementOptions {
	if opts == nil {
		return StatementOptions{}
	}
	o := *opts
	o.GeneratedKeyColumns = append([]string(nil), opts.GeneratedKeyColumns...)
	return o
}
