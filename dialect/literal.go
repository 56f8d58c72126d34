package dialect

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05.999999999"

// quoteString doubles embedded single quotes.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// renderLiteral is shared by the built-in dialects. quote and blob render
// the dialect specific forms of strings and byte slices.
func renderLiteral(v interface{}, quote func(string) string, blob func([]byte) string) string {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return fmt.Sprintf("<%v>", err)
		}
		v = dv
	}
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return quote(x)
	case []byte:
		return blob(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case time.Time:
		return quote(x.Format(timestampLayout))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case fmt.Stringer:
		return quote(x.String())
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "null"
		}
		return renderLiteral(rv.Elem().Interface(), quote, blob)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.String:
		return quote(rv.String())
	}
	return quote(fmt.Sprint(v))
}

func hexBlob(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}
