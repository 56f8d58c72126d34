package session

import (
	"database/sql/driver"
	"fmt"
	"io"
	"reflect"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/bxshcn/geesql/dialect"
	"github.com/bxshcn/geesql/namedsql"
)

// SQLType is an explicit SQL type code for a Typed parameter.
type SQLType int

const (
	TypeNull SQLType = iota
	TypeBoolean
	TypeInteger
	TypeBigInt
	TypeDouble
	TypeVarchar
	TypeBinary
	TypeTimestamp
)

func (t SQLType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInteger:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	case TypeDouble:
		return "DOUBLE"
	case TypeVarchar:
		return "VARCHAR"
	case TypeBinary:
		return "BINARY"
	case TypeTimestamp:
		return "TIMESTAMP"
	}
	return fmt.Sprintf("SQLType(%d)", int(t))
}

// Typed binds Value converted to an explicit SQL type.
type Typed struct {
	Type  SQLType
	Value interface{}
}

// BinaryStream binds the content of a reader as a blob.
type BinaryStream struct {
	io.Reader
}

// CharacterStream binds the content of a reader as text.
type CharacterStream struct {
	io.Reader
}

// streamMarker stands in for stream contents in diagnostic output when
// streams are not read eagerly.
type streamMarker struct {
	kind string
	n    int
}

func (m streamMarker) String() string {
	return fmt.Sprintf("<%s stream, %d bytes>", m.kind, m.n)
}

// isCollection reports whether v expands into an IN list. Byte slices and
// driver.Valuer implementations bind as a single value.
func isCollection(v interface{}) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	if _, ok := v.(driver.Valuer); ok {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return reflect.Value{}, false
		}
		return rv, true
	}
	return reflect.Value{}, false
}

// inClauseSizes derives collection sizes from the first parameter map and
// checks that every other map agrees.
func inClauseSizes(paramsList []map[string]interface{}) (map[string]int, error) {
	if len(paramsList) == 0 {
		return nil, nil
	}
	var sizes map[string]int
	for name, v := range paramsList[0] {
		if rv, ok := isCollection(v); ok {
			if sizes == nil {
				sizes = make(map[string]int)
			}
			sizes[name] = rv.Len()
		}
	}
	for i, params := range paramsList[1:] {
		for name, v := range params {
			rv, ok := isCollection(v)
			size, expected := sizes[name]
			switch {
			case !ok && !expected:
			case ok && expected && rv.Len() == size:
			case ok && expected:
				return nil, precondition("bind", "batch element %d binds %d values to %q, the first element binds %d", i+1, rv.Len(), name, size)
			default:
				return nil, precondition("bind", "batch element %d binds %q inconsistently with the first element", i+1, name)
			}
		}
		for name := range sizes {
			if _, ok := params[name]; !ok {
				return nil, precondition("bind", "batch element %d is missing collection parameter %q", i+1, name)
			}
		}
	}
	return sizes, nil
}

// binder turns one parameter map into positional arguments following the
// compiled parameter order.
type binder struct {
	query  *namedsql.Query
	opts   *StatementOptions
	eager  bool
	args   []interface{}
	output []interface{}
}

func (b *binder) bind(params map[string]interface{}) ([]interface{}, []interface{}, error) {
	b.args = make([]interface{}, 0, b.query.Count())
	b.output = make([]interface{}, 0, b.query.Count())
	for _, name := range b.query.Params {
		v, err := b.lookup(name, params)
		if err != nil {
			return nil, nil, err
		}
		size, ok := b.query.InClauseSizes[name]
		if !ok {
			if err := b.add(name, v); err != nil {
				return nil, nil, err
			}
			continue
		}
		rv, isColl := isCollection(v)
		if !isColl {
			return nil, nil, precondition("bind", "parameter %q was compiled as a collection of %d", name, size)
		}
		n := rv.Len()
		if n > size {
			return nil, nil, precondition("bind", "parameter %q has %d values for %d slots", name, n, size)
		}
		for i := 0; i < namedsql.Slots(size); i++ {
			var elem interface{}
			if i < n {
				elem = rv.Index(i).Interface()
			}
			if err := b.add(name, elem); err != nil {
				return nil, nil, err
			}
		}
	}
	return b.args, b.output, nil
}

func (b *binder) lookup(name string, params map[string]interface{}) (interface{}, error) {
	switch {
	case name == dialect.LimitParam && b.opts.hasLimit():
		return b.opts.Limit, nil
	case name == dialect.OffsetParam && b.opts.hasOffset():
		return b.opts.Offset, nil
	}
	v, ok := params[name]
	if !ok {
		return nil, precondition("bind", "unknown parameter %q, supplied %v", name, paramNames(params))
	}
	return v, nil
}

func (b *binder) add(name string, v interface{}) error {
	arg, shown, err := b.convert(v)
	if err != nil {
		return &BindingError{Param: name, Err: err}
	}
	b.args = append(b.args, arg)
	b.output = append(b.output, shown)
	return nil
}

// convert returns the driver argument and the value shown in diagnostics.
func (b *binder) convert(v interface{}) (interface{}, interface{}, error) {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, nil, nil
	}
	switch x := v.(type) {
	case nil:
		return nil, nil, nil
	case Typed:
		arg, err := convertTyped(x)
		return arg, arg, err
	case *Typed:
		arg, err := convertTyped(*x)
		return arg, arg, err
	case BinaryStream:
		return b.drain("binary", x.Reader, false)
	case CharacterStream:
		return b.drain("character", x.Reader, true)
	case proto.Message:
		arg, err := convertProto(x)
		return arg, arg, err
	case driver.Valuer:
		return v, v, nil
	case io.Reader:
		return b.drain("binary", x, false)
	}
	return v, v, nil
}

// drain reads a stream at bind time. database/sql has no streaming
// parameters and a stream can only be read once.
func (b *binder) drain(kind string, r io.Reader, text bool) (interface{}, interface{}, error) {
	if r == nil {
		return nil, nil, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read %s stream", kind)
	}
	var arg interface{} = data
	if text {
		arg = string(data)
	}
	if b.eager {
		return arg, arg, nil
	}
	return arg, streamMarker{kind: kind, n: len(data)}, nil
}

func convertTyped(t Typed) (interface{}, error) {
	if t.Value == nil || t.Type == TypeNull {
		return nil, nil
	}
	var (
		v   interface{}
		err error
	)
	switch t.Type {
	case TypeBoolean:
		v, err = cast.ToBoolE(t.Value)
	case TypeInteger, TypeBigInt:
		v, err = cast.ToInt64E(t.Value)
	case TypeDouble:
		v, err = cast.ToFloat64E(t.Value)
	case TypeVarchar:
		v, err = cast.ToStringE(t.Value)
	case TypeBinary:
		if bs, ok := t.Value.([]byte); ok {
			return bs, nil
		}
		var s string
		s, err = cast.ToStringE(t.Value)
		v = []byte(s)
	case TypeTimestamp:
		v, err = cast.ToTimeE(t.Value)
	default:
		return nil, errors.Errorf("unsupported SQL type %s", t.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "convert to %s", t.Type)
	}
	return v, nil
}

// convertProto unwraps well-known wrapper types and binds every other
// message in its binary wire form.
func convertProto(m proto.Message) (interface{}, error) {
	switch x := m.(type) {
	case *wrapperspb.StringValue:
		return x.GetValue(), nil
	case *wrapperspb.BoolValue:
		return x.GetValue(), nil
	case *wrapperspb.Int32Value:
		return int64(x.GetValue()), nil
	case *wrapperspb.Int64Value:
		return x.GetValue(), nil
	case *wrapperspb.UInt32Value:
		return int64(x.GetValue()), nil
	case *wrapperspb.UInt64Value:
		return x.GetValue(), nil
	case *wrapperspb.DoubleValue:
		return x.GetValue(), nil
	case *wrapperspb.FloatValue:
		return float64(x.GetValue()), nil
	case *wrapperspb.BytesValue:
		return x.GetValue(), nil
	case *timestamppb.Timestamp:
		if err := x.CheckValid(); err != nil {
			return nil, err
		}
		return x.AsTime(), nil
	case *durationpb.Duration:
		if err := x.CheckValid(); err != nil {
			return nil, err
		}
		return int64(x.AsDuration()), nil
	}
	data, err := proto.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal protobuf message")
	}
	return data, nil
}

// paramNames lists the keys of params in sorted order.
func paramNames(params map[string]interface{}) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
