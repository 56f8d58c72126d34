package dialect

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

type postgres struct{}

func init() {
	RegisterDialect("postgres", &postgres{})
	RegisterDialect("pgx", &postgres{})
}

func (p *postgres) Name() string { return "postgres" }

func (p *postgres) DataTypeOf(dataType reflect.Type) string {
	switch dataType.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return "smallint"
	case reflect.Int, reflect.Int32, reflect.Uint16:
		return "integer"
	case reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return "bigint"
	case reflect.Float32:
		return "real"
	case reflect.Float64:
		return "double precision"
	case reflect.String:
		return "text"
	case reflect.Array, reflect.Slice:
		if dataType.Elem().Kind() == reflect.Uint8 {
			return "bytea"
		}
		return p.DataTypeOf(dataType.Elem()) + "[]"
	case reflect.Ptr:
		return p.DataTypeOf(dataType.Elem())
	case reflect.Struct:
		if dataType == reflect.TypeOf(time.Time{}) {
			return "timestamp with time zone"
		}
	}
	panic(fmt.Sprintf("invalid sql type %s (%s)", dataType.Name(), dataType.Kind()))
}

func (p *postgres) TableExistSQL(tableName string) string {
	return "select table_name from information_schema.tables where table_schema = current_schema() and table_name = :name"
}

func (p *postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (p *postgres) BindLiteral(v interface{}) string {
	return renderLiteral(v, pq.QuoteLiteral, func(b []byte) string {
		return `'\x` + hex.EncodeToString(b) + `'::bytea`
	})
}

func (p *postgres) ApplyLimitOffset(sql string, hasLimit, hasOffset bool) string {
	if hasLimit {
		sql += "\nlimit :" + LimitParam
	}
	if hasOffset {
		sql += "\noffset :" + OffsetParam
	}
	return sql
}

func (p *postgres) Syntax() Syntax {
	return Syntax{IdentifierQuotes: `"`, NestedComments: true, DollarQuotes: true}
}

func (p *postgres) SupportsReturning() bool { return true }

func (p *postgres) Returning(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = p.QuoteIdentifier(c)
	}
	return " returning " + strings.Join(quoted, ", ")
}

func (p *postgres) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}
