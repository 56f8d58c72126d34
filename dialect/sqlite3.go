package dialect

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

type sqlite3 struct{}

func init() {
	RegisterDialect("sqlite3", &sqlite3{})
}

func (s *sqlite3) Name() string { return "sqlite3" }

// DataTypeOf returns a declared type whose affinity matches the Go type.
// See https://www.sqlite.org/datatype3.html
func (s *sqlite3) DataTypeOf(dataType reflect.Type) string {
	switch dataType.Kind() {
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uintptr:
		return "integer"
	case reflect.Int64, reflect.Uint64:
		return "bigint"
	case reflect.Float32, reflect.Float64:
		return "real"
	case reflect.String:
		return "text"
	case reflect.Array, reflect.Slice:
		return "blob"
	case reflect.Ptr:
		return s.DataTypeOf(dataType.Elem())
	case reflect.Struct:
		if dataType == reflect.TypeOf(time.Time{}) {
			return "datetime"
		}
	}
	panic(fmt.Sprintf("invalid sql type %s (%s)", dataType.Name(), dataType.Kind()))
}

func (s *sqlite3) TableExistSQL(tableName string) string {
	return "select name from sqlite_master where type='table' and name = :name"
}

func (s *sqlite3) Placeholder(n int) string { return "?" }

func (s *sqlite3) BindLiteral(v interface{}) string {
	return renderLiteral(v, quoteString, hexBlob)
}

// sqlite requires a limit whenever an offset is present; -1 means no limit.
func (s *sqlite3) ApplyLimitOffset(sql string, hasLimit, hasOffset bool) string {
	switch {
	case hasLimit && hasOffset:
		return sql + "\nlimit :" + LimitParam + " offset :" + OffsetParam
	case hasLimit:
		return sql + "\nlimit :" + LimitParam
	case hasOffset:
		return sql + "\nlimit -1 offset :" + OffsetParam
	}
	return sql
}

func (s *sqlite3) Syntax() Syntax {
	return Syntax{IdentifierQuotes: "\"`", BracketIdentifiers: true}
}

func (s *sqlite3) SupportsReturning() bool { return true }

func (s *sqlite3) Returning(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = s.QuoteIdentifier(c)
	}
	return " returning " + strings.Join(quoted, ", ")
}

func (s *sqlite3) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
