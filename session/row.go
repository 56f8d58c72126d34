package session

import (
	"database/sql"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/bxshcn/geesql/schema"
)

// Mapper turns the current row into a value. It is called once per row.
type Mapper[T any] func(*Row) (T, error)

// Row is one result row. Values are copied out of the driver, so a Row
// stays valid after the cursor moves on.
type Row struct {
	columns []string
	values  []interface{}
}

// NewRow builds a row from column names and values.
func NewRow(columns []string, values []interface{}) *Row {
	return &Row{columns: columns, values: values}
}

// truncateString cuts s to at most n bytes without splitting a rune.
func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func scanRow(rows *sql.Rows, columns []string, maxFieldSize int) (*Row, error) {
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	if maxFieldSize > 0 {
		for i, v := range values {
			switch x := v.(type) {
			case string:
				values[i] = truncateString(x, maxFieldSize)
			case []byte:
				if len(x) > maxFieldSize {
					values[i] = x[:maxFieldSize]
				}
			}
		}
	}
	return &Row{columns: columns, values: values}, nil
}

func (r *Row) Columns() []string { return r.columns }

func (r *Row) Len() int { return len(r.values) }

// Value returns the raw driver value of the i-th column.
func (r *Row) Value(i int) interface{} { return r.values[i] }

func (r *Row) index(column string) (int, error) {
	for i, c := range r.columns {
		if c == column {
			return i, nil
		}
	}
	for i, c := range r.columns {
		if strings.EqualFold(c, column) {
			return i, nil
		}
	}
	return -1, errors.Errorf("column %q not in result %v", column, r.columns)
}

// Get returns the raw value of column.
func (r *Row) Get(column string) (interface{}, error) {
	i, err := r.index(column)
	if err != nil {
		return nil, err
	}
	return r.values[i], nil
}

func (r *Row) IsNull(column string) bool {
	v, err := r.Get(column)
	return err == nil && v == nil
}

func (r *Row) String(column string) (string, error) {
	v, err := r.Get(column)
	if err != nil {
		return "", err
	}
	return cast.ToStringE(normalize(v))
}

func (r *Row) Int64(column string) (int64, error) {
	v, err := r.Get(column)
	if err != nil {
		return 0, err
	}
	return cast.ToInt64E(normalize(v))
}

func (r *Row) Float64(column string) (float64, error) {
	v, err := r.Get(column)
	if err != nil {
		return 0, err
	}
	return cast.ToFloat64E(normalize(v))
}

func (r *Row) Bool(column string) (bool, error) {
	v, err := r.Get(column)
	if err != nil {
		return false, err
	}
	return cast.ToBoolE(normalize(v))
}

func (r *Row) Time(column string) (time.Time, error) {
	v, err := r.Get(column)
	if err != nil {
		return time.Time{}, err
	}
	return cast.ToTimeE(normalize(v))
}

func (r *Row) Bytes(column string) ([]byte, error) {
	v, err := r.Get(column)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	s, err := cast.ToStringE(v)
	return []byte(s), err
}

// Scan copies the row's columns into dest, in column order.
func (r *Row) Scan(dest ...interface{}) error {
	if len(dest) != len(r.values) {
		return errors.Errorf("expected %d destination arguments in Scan, not %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		if err := assign(d, r.values[i]); err != nil {
			return errors.Wrapf(err, "scan column %d (%s)", i, r.columns[i])
		}
	}
	return nil
}

// normalize turns text protocol bytes into a string for conversion.
func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func assign(dest, src interface{}) error {
	switch d := dest.(type) {
	case sql.Scanner:
		return d.Scan(src)
	case *interface{}:
		*d = src
		return nil
	case *[]byte:
		switch x := src.(type) {
		case nil:
			*d = nil
		case []byte:
			*d = append([]byte(nil), x...)
		case string:
			*d = []byte(x)
		default:
			s, err := cast.ToStringE(x)
			if err != nil {
				return err
			}
			*d = []byte(s)
		}
		return nil
	}

	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return errors.Errorf("destination %T is not a non-nil pointer", dest)
	}
	elem := dv.Elem()
	if src == nil {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
			elem.Set(reflect.Zero(elem.Type()))
			return nil
		}
		return errors.Errorf("converting NULL to %s is unsupported", elem.Type())
	}
	if elem.Kind() == reflect.Ptr {
		nv := reflect.New(elem.Type().Elem())
		if err := assign(nv.Interface(), src); err != nil {
			return err
		}
		elem.Set(nv)
		return nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(elem.Type()) {
		elem.Set(sv)
		return nil
	}
	src = normalize(src)
	if elem.Type() == reflect.TypeOf(time.Time{}) {
		t, err := cast.ToTimeE(src)
		if err != nil {
			return err
		}
		elem.Set(reflect.ValueOf(t))
		return nil
	}
	switch elem.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(src)
		if err != nil {
			return err
		}
		elem.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(src)
		if err != nil {
			return err
		}
		elem.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(src)
		if err != nil {
			return err
		}
		if elem.OverflowInt(n) {
			return errors.Errorf("value %d overflows %s", n, elem.Type())
		}
		elem.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(src)
		if err != nil {
			return err
		}
		if elem.OverflowUint(n) {
			return errors.Errorf("value %d overflows %s", n, elem.Type())
		}
		elem.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(src)
		if err != nil {
			return err
		}
		elem.SetFloat(f)
	default:
		if sv.Type().ConvertibleTo(elem.Type()) {
			elem.Set(sv.Convert(elem.Type()))
			return nil
		}
		return errors.Errorf("unsupported Scan, storing %T into %s", src, elem.Type())
	}
	return nil
}

// Scalar maps the first column of each row onto T.
func Scalar[T any]() Mapper[T] {
	return func(r *Row) (T, error) {
		var v T
		if r.Len() == 0 {
			return v, errors.New("row has no columns")
		}
		err := assign(&v, r.values[0])
		return v, err
	}
}

// StructMapper maps columns onto the fields of T, a struct or a pointer to
// one, by `db` tag or field name. Columns without a field are ignored.
func StructMapper[T any]() Mapper[T] {
	return func(r *Row) (T, error) {
		var out T
		v := reflect.ValueOf(&out).Elem()
		if v.Kind() == reflect.Ptr {
			v.Set(reflect.New(v.Type().Elem()))
			v = v.Elem()
		}
		if err := scanStruct(v, r); err != nil {
			return out, err
		}
		return out, nil
	}
}

func scanStruct(v reflect.Value, r *Row) error {
	if v.Kind() != reflect.Struct {
		return errors.Errorf("cannot map a row onto %s", v.Type())
	}
	for i, index := range schema.Traversals(v.Type(), r.columns) {
		if len(index) == 0 {
			continue
		}
		f := schema.FieldByIndexes(v, index)
		if err := assign(f.Addr().Interface(), r.values[i]); err != nil {
			return errors.Wrapf(err, "column %s", r.columns[i])
		}
	}
	return nil
}
