package dialect

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

type mysql struct{}

func init() {
	RegisterDialect("mysql", &mysql{})
}

func (m *mysql) Name() string { return "mysql" }

func (m *mysql) DataTypeOf(dataType reflect.Type) string {
	switch dataType.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int8:
		return "tinyint"
	case reflect.Int16:
		return "smallint"
	case reflect.Int, reflect.Int32:
		return "int"
	case reflect.Uint8:
		return "tinyint unsigned"
	case reflect.Uint16:
		return "smallint unsigned"
	case reflect.Uint, reflect.Uint32:
		return "int unsigned"
	case reflect.Int64:
		return "bigint"
	case reflect.Uint64:
		return "bigint unsigned"
	case reflect.Float32:
		return "float"
	case reflect.Float64:
		return "double"
	case reflect.String:
		return "varchar(255)"
	case reflect.Array, reflect.Slice:
		return "longblob"
	case reflect.Ptr:
		return m.DataTypeOf(dataType.Elem())
	case reflect.Struct:
		if dataType == reflect.TypeOf(time.Time{}) {
			return "datetime(6)"
		}
	}
	panic(fmt.Sprintf("invalid sql type %s (%s)", dataType.Name(), dataType.Kind()))
}

func (m *mysql) TableExistSQL(tableName string) string {
	return "select table_name from information_schema.tables where table_schema = database() and table_name = :name"
}

func (m *mysql) Placeholder(n int) string { return "?" }

func (m *mysql) BindLiteral(v interface{}) string {
	return renderLiteral(v, func(s string) string {
		s = strings.ReplaceAll(s, `\`, `\\`)
		return quoteString(s)
	}, hexBlob)
}

// mysql has no offset without limit; the largest unsigned bigint stands in
// for "no limit".
func (m *mysql) ApplyLimitOffset(sql string, hasLimit, hasOffset bool) string {
	switch {
	case hasLimit && hasOffset:
		return sql + "\nlimit :" + LimitParam + " offset :" + OffsetParam
	case hasLimit:
		return sql + "\nlimit :" + LimitParam
	case hasOffset:
		return sql + "\nlimit 18446744073709551615 offset :" + OffsetParam
	}
	return sql
}

func (m *mysql) Syntax() Syntax {
	return Syntax{IdentifierQuotes: "`", StringQuotes: `"`, HashComments: true, BackslashEscapes: true}
}

func (m *mysql) SupportsReturning() bool { return false }

func (m *mysql) Returning(columns []string) string { return "" }

func (m *mysql) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
