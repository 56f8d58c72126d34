package schema

import (
	"reflect"

	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"

	"github.com/bxshcn/geesql/dialect"
	"github.com/bxshcn/geesql/log"
)

// TagName carries column constraints used by CreateTable, e.g.
// `geesql:"PRIMARY KEY"`. Column names come from the `db` tag and default
// to the Go field name.
const TagName = "geesql"

var mapper = reflectx.NewMapperFunc("db", func(s string) string { return s })

type Field struct {
	// Name is the column name.
	Name string
	// GoName is the struct field name.
	GoName string
	Type   string
	Tag    string
	index  []int
}

// Schema maps a struct type onto a table. It describes the type, never a
// particular record.
type Schema struct {
	Model      reflect.Type
	Name       string
	Fields     []*Field
	FieldNames []string
	fieldMap   map[string]*Field
}

func (schema *Schema) GetField(name string) *Field {
	return schema.fieldMap[name]
}

// Parse builds the schema of obj, a struct or a pointer to one. Embedded
// structs contribute their fields.
func Parse(obj interface{}, d dialect.Dialect) (*Schema, error) {
	value := reflect.Indirect(reflect.ValueOf(obj))
	if value.Kind() != reflect.Struct {
		log.Errorf("schema: %T is not a struct", obj)
		return nil, errors.Errorf("schema: %T is not a struct", obj)
	}
	typ := value.Type()
	schema := &Schema{
		Model:    typ,
		Name:     typ.Name(),
		fieldMap: make(map[string]*Field),
	}
	tm := mapper.TypeMap(typ)
	var walk func(fi *reflectx.FieldInfo)
	walk = func(fi *reflectx.FieldInfo) {
		for _, child := range fi.Children {
			if child == nil {
				continue
			}
			sf := child.Field
			if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
				walk(child)
				continue
			}
			if sf.PkgPath != "" {
				continue
			}
			if _, dup := schema.fieldMap[child.Name]; dup {
				continue
			}
			field := &Field{
				Name:   child.Name,
				GoName: sf.Name,
				Type:   d.DataTypeOf(sf.Type),
				index:  child.Index,
			}
			if v, ok := sf.Tag.Lookup(TagName); ok {
				field.Tag = v
			}
			schema.Fields = append(schema.Fields, field)
			schema.FieldNames = append(schema.FieldNames, field.Name)
			schema.fieldMap[field.Name] = field
		}
	}
	walk(tm.Tree)
	return schema, nil
}

// RecordValues returns the column values of obj keyed by column name.
func (schema *Schema) RecordValues(obj interface{}) map[string]interface{} {
	objValue := reflect.Indirect(reflect.ValueOf(obj))
	values := make(map[string]interface{}, len(schema.Fields))
	for _, field := range schema.Fields {
		values[field.Name] = objValue.FieldByIndex(field.index).Interface()
	}
	return values
}

// Traversals returns, for each column, the field index path inside typ.
// Columns without a matching field get a nil path.
func Traversals(typ reflect.Type, columns []string) [][]int {
	return mapper.TraversalsByName(typ, columns)
}

// FieldByIndexes returns the field at index inside v, allocating nil
// embedded pointers on the way.
func FieldByIndexes(v reflect.Value, index []int) reflect.Value {
	return reflectx.FieldByIndexes(v, index)
}
