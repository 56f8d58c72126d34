package session

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/bxshcn/geesql/clause"
)

// ErrRecordNotFound is returned by First when no record matches.
var ErrRecordNotFound = errors.New("record not found")

// Insert inserts records of a single model type as one batch and returns
// the number of rows inserted.
func (s *Session) Insert(ctx context.Context, values ...interface{}) (int64, error) {
	defer s.Clear()
	if len(values) == 0 {
		return 0, nil
	}
	table, err := s.Model(values[0]).table()
	if err != nil {
		return 0, err
	}
	paramsList := make([]map[string]interface{}, 0, len(values))
	for _, value := range values {
		if reflect.Indirect(reflect.ValueOf(value)).Type() != table.Model {
			return 0, errors.Errorf("insert: %T is not a %s", value, table.Model)
		}
		if err := s.CallMethod(BeforeInsert, value); err != nil {
			return 0, err
		}
		paramsList = append(paramsList, table.RecordValues(value))
	}
	s.clause.Set(clause.INSERT, table.Name, table.FieldNames)
	s.clause.Set(clause.VALUES, table.FieldNames)
	sql, _ := s.clause.Build(clause.INSERT, clause.VALUES)

	counts, err := s.BatchUpdate(ctx, sql, paramsList, nil)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, c := range counts {
		n += c
	}
	return n, s.CallMethod(AfterInsert, nil)
}

// Find loads the matching records into values, a pointer to a slice of
// structs.
func (s *Session) Find(ctx context.Context, values interface{}) error {
	defer s.Clear()
	destSlice := reflect.Indirect(reflect.ValueOf(values))
	if destSlice.Kind() != reflect.Slice {
		return errors.Errorf("find: %T is not a pointer to a slice", values)
	}
	destType := destSlice.Type().Elem()
	table, err := s.Model(reflect.New(destType).Elem().Interface()).table()
	if err != nil {
		return err
	}
	if err := s.CallMethod(BeforeQuery, nil); err != nil {
		return err
	}

	s.clause.Set(clause.SELECT, table.Name, table.FieldNames)
	sql, params := s.clause.Build(clause.SELECT, clause.WHERE, clause.ORDERBY)
	opts := &StatementOptions{Limit: s.limit, Offset: s.offset}
	return s.ForEach(ctx, sql, params, opts, func(r *Row) error {
		dest := reflect.New(destType).Elem()
		if err := scanStruct(dest, r); err != nil {
			return err
		}
		if err := s.CallMethod(AfterQuery, dest.Addr().Interface()); err != nil {
			return err
		}
		destSlice.Set(reflect.Append(destSlice, dest))
		return nil
	})
}

// First loads the first matching record into value.
func (s *Session) First(ctx context.Context, value interface{}) error {
	dest := reflect.Indirect(reflect.ValueOf(value))
	destSlice := reflect.New(reflect.SliceOf(dest.Type())).Elem()
	if err := s.Limit(1).Find(ctx, destSlice.Addr().Interface()); err != nil {
		return err
	}
	if destSlice.Len() == 0 {
		return ErrRecordNotFound
	}
	dest.Set(destSlice.Index(0))
	return nil
}

// UpdateFields updates the matching records. It takes either a
// map[string]interface{} or column, value pairs: "Name", "Tom", "Age", 18.
func (s *Session) UpdateFields(ctx context.Context, kv ...interface{}) (int64, error) {
	defer s.Clear()
	table, err := s.table()
	if err != nil {
		return 0, err
	}
	if len(kv) == 0 {
		return 0, errors.New("update: no fields")
	}
	m, ok := kv[0].(map[string]interface{})
	if !ok {
		if m, err = clause.Pairs(kv...); err != nil {
			return 0, errors.Wrap(err, "update")
		}
	}
	if err := s.CallMethod(BeforeUpdate, nil); err != nil {
		return 0, err
	}
	s.clause.Set(clause.UPDATE, table.Name, m)
	sql, params := s.clause.Build(clause.UPDATE, clause.WHERE)
	n, err := s.Update(ctx, sql, params, nil)
	if err != nil {
		return 0, err
	}
	return n, s.CallMethod(AfterUpdate, nil)
}

// Delete deletes the matching records.
func (s *Session) Delete(ctx context.Context) (int64, error) {
	defer s.Clear()
	table, err := s.table()
	if err != nil {
		return 0, err
	}
	if err := s.CallMethod(BeforeDelete, nil); err != nil {
		return 0, err
	}
	s.clause.Set(clause.DELETE, table.Name)
	sql, params := s.clause.Build(clause.DELETE, clause.WHERE)
	n, err := s.Update(ctx, sql, params, nil)
	if err != nil {
		return 0, err
	}
	return n, s.CallMethod(AfterDelete, nil)
}

// Count counts the matching records.
func (s *Session) Count(ctx context.Context) (int64, error) {
	defer s.Clear()
	table, err := s.table()
	if err != nil {
		return 0, err
	}
	s.clause.Set(clause.COUNT, table.Name)
	sql, params := s.clause.Build(clause.COUNT, clause.WHERE)
	return SelectOne(ctx, s, sql, params, nil, Scalar[int64]())
}

// Limit caps the number of records Find returns.
func (s *Session) Limit(num int) *Session {
	s.limit = int64(num)
	return s
}

// Offset skips records in Find.
func (s *Session) Offset(num int) *Session {
	s.offset = int64(num)
	return s
}

// Where filters by desc, whose :name tokens are bound from name, value
// pairs: Where("Age > :age", "age", 18). Malformed pairs fail the next
// record operation.
func (s *Session) Where(desc string, kv ...interface{}) *Session {
	params, err := clause.Pairs(kv...)
	if err != nil {
		s.err = errors.Wrap(err, "where")
		return s
	}
	s.clause.Set(clause.WHERE, desc, params)
	return s
}

// OrderBy sorts Find results.
func (s *Session) OrderBy(desc string) *Session {
	s.clause.Set(clause.ORDERBY, desc)
	return s
}
