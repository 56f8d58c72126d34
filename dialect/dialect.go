package dialect

import (
	"reflect"
	"sort"
	"sync"
)

// Reserved parameter names bound from the statement's pagination options
// rather than from the caller's parameter map.
const (
	LimitParam  = "LimitParam"
	OffsetParam = "OffsetParam"
)

// Syntax describes the lexical rules the named-SQL scanner needs to skip
// literals, quoted identifiers and comments.
type Syntax struct {
	// IdentifierQuotes lists the characters that open and close a quoted identifier.
	IdentifierQuotes string
	// StringQuotes lists characters besides '\'' that delimit string
	// literals, e.g. '"' for mysql.
	StringQuotes string
	// BracketIdentifiers enables [identifier] quoting.
	BracketIdentifiers bool
	// HashComments enables '#' single line comments.
	HashComments bool
	// NestedComments makes /* */ comments nest.
	NestedComments bool
	// DollarQuotes enables $tag$...$tag$ string constants.
	DollarQuotes bool
	// BackslashEscapes lets '\' escape the next character inside string literals.
	BackslashEscapes bool
}

type Dialect interface {
	// Name is the name the dialect was registered under.
	Name() string
	// DataTypeOf maps a Go type onto the column type used in DDL.
	DataTypeOf(typ reflect.Type) string
	// TableExistSQL returns named SQL selecting the table name when the
	// table exists; the table is bound to :name.
	TableExistSQL(tableName string) string
	// Placeholder renders the n-th (1-based) positional parameter.
	Placeholder(n int) string
	// BindLiteral renders a bound value as a SQL literal. Only used for
	// diagnostics, never for execution.
	BindLiteral(v interface{}) string
	// ApplyLimitOffset appends pagination to sql using the reserved
	// LimitParam and OffsetParam tokens.
	ApplyLimitOffset(sql string, hasLimit, hasOffset bool) string
	Syntax() Syntax
	// SupportsReturning reports whether inserts can return generated keys
	// through a RETURNING clause.
	SupportsReturning() bool
	// Returning renders the clause appended to an insert to return columns.
	Returning(columns []string) string
	QuoteIdentifier(name string) string
}

var (
	mu          sync.RWMutex
	dialectsMap = map[string]Dialect{}
)

func RegisterDialect(name string, dialect Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialectsMap[name] = dialect
}

func GetDialect(name string) (dialect Dialect, ok bool) {
	mu.RLock()
	defer mu.RUnlock()
	dialect, ok = dialectsMap[name]
	return
}

// Names lists the registered dialect names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialectsMap))
	for name := range dialectsMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
