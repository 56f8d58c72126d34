package clause

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type generator func(values ...interface{}) (string, map[string]interface{})

var generators map[Type]generator

func init() {
	generators = make(map[Type]generator)
	generators[INSERT] = _insert
	generators[VALUES] = _values
	generators[SELECT] = _select
	generators[WHERE] = _where
	generators[ORDERBY] = _orderBy
	generators[UPDATE] = _update
	generators[DELETE] = _delete
	generators[COUNT] = _count
}

// SetPrefix prefixes the parameters bound by an UPDATE's SET list so that
// they cannot clash with WHERE parameters.
const SetPrefix = "set_"

func bindVars(fields []string) string {
	vars := make([]string, len(fields))
	for i, f := range fields {
		vars[i] = ":" + f
	}
	return strings.Join(vars, ", ")
}

// INSERT INTO $tableName ($fields)
func _insert(values ...interface{}) (string, map[string]interface{}) {
	tableName := values[0]
	fields := strings.Join(values[1].([]string), ", ")
	return fmt.Sprintf("INSERT INTO %s (%v)", tableName, fields), nil
}

// VALUES (:field1, :field2); the values come from each record.
func _values(values ...interface{}) (string, map[string]interface{}) {
	return fmt.Sprintf("VALUES (%s)", bindVars(values[0].([]string))), nil
}

// SELECT $fields FROM $tableName
func _select(values ...interface{}) (string, map[string]interface{}) {
	tableName := values[0]
	fields := strings.Join(values[1].([]string), ", ")
	return fmt.Sprintf("SELECT %v FROM %s", fields, tableName), nil
}

// Pairs turns name, value pairs into a parameter map.
func Pairs(kv ...interface{}) (map[string]interface{}, error) {
	if len(kv)%2 != 0 {
		return nil, errors.Errorf("odd number of name, value arguments: %d", len(kv))
	}
	params := make(map[string]interface{}, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			return nil, errors.Errorf("argument %d: name must be a string, got %T", i, kv[i])
		}
		params[name] = kv[i+1]
	}
	return params, nil
}

// WHERE $desc, with the parameter map for the :name tokens in desc.
func _where(values ...interface{}) (string, map[string]interface{}) {
	var params map[string]interface{}
	if len(values) > 1 {
		params, _ = values[1].(map[string]interface{})
	}
	return fmt.Sprintf("WHERE %s", values[0]), params
}

func _orderBy(values ...interface{}) (string, map[string]interface{}) {
	return fmt.Sprintf("ORDER BY %s", values[0]), nil
}

// UPDATE $tableName SET col = :set_col; columns are sorted so that the
// same map always yields the same SQL.
func _update(values ...interface{}) (string, map[string]interface{}) {
	tableName := values[0]
	m := values[1].(map[string]interface{})
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make(map[string]interface{}, len(m))
	sets := make([]string, len(keys))
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = :%s%s", k, SetPrefix, k)
		params[SetPrefix+k] = m[k]
	}
	return fmt.Sprintf("UPDATE %s SET %s", tableName, strings.Join(sets, ", ")), params
}

func _delete(values ...interface{}) (string, map[string]interface{}) {
	return fmt.Sprintf("DELETE FROM %s", values[0]), nil
}

func _count(values ...interface{}) (string, map[string]interface{}) {
	return _select(values[0], []string{"count(*)"})
}
