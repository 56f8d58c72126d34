package session

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/bxshcn/geesql/log"
	"github.com/bxshcn/geesql/schema"
)

// Model sets the table the record helpers work on, parsed from value's
// struct type. It returns s for chaining.
func (s *Session) Model(value interface{}) *Session {
	if s.refTable == nil || reflect.Indirect(reflect.ValueOf(value)).Type() != s.refTable.Model {
		table, err := schema.Parse(value, s.dialect)
		if err != nil {
			log.Error(err)
			s.refTable = nil
			return s
		}
		s.refTable = table
	}
	return s
}

func (s *Session) RefTable() *schema.Schema {
	return s.refTable
}

func (s *Session) table() (*schema.Schema, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.refTable == nil {
		log.Error("model is not set")
		return nil, errors.New("model is not set")
	}
	return s.refTable, nil
}

func (s *Session) CreateTable(ctx context.Context) error {
	table, err := s.table()
	if err != nil {
		return err
	}
	columns := make([]string, 0, len(table.Fields))
	for _, field := range table.Fields {
		columns = append(columns, strings.TrimSpace(fmt.Sprintf("%s %s %s", field.Name, field.Type, field.Tag)))
	}
	desc := strings.Join(columns, ", ")
	_, err = s.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table.Name, desc), nil)
	return err
}

func (s *Session) DropTable(ctx context.Context) error {
	table, err := s.table()
	if err != nil {
		return err
	}
	_, err = s.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table.Name), nil)
	return err
}

func (s *Session) HasTable(ctx context.Context) bool {
	table, err := s.table()
	if err != nil {
		return false
	}
	sql := s.dialect.TableExistSQL(table.Name)
	name, err := SelectOne(ctx, s, sql, map[string]interface{}{"name": table.Name}, nil, Scalar[string]())
	if err != nil {
		return false
	}
	return name == table.Name
}
