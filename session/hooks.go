package session

import (
	"reflect"

	"github.com/bxshcn/geesql/log"
)

// Hook methods a model may implement, each as func(*Session) error on the
// model's pointer type.
const (
	BeforeQuery  = "BeforeQuery"
	AfterQuery   = "AfterQuery"
	BeforeUpdate = "BeforeUpdate"
	AfterUpdate  = "AfterUpdate"
	BeforeDelete = "BeforeDelete"
	AfterDelete  = "AfterDelete"
	BeforeInsert = "BeforeInsert"
	AfterInsert  = "AfterInsert"
)

// CallMethod calls the hook named method on value, or on a zero model
// value when value is nil. A hook error aborts the operation.
func (s *Session) CallMethod(method string, value interface{}) error {
	table := s.RefTable()
	if table == nil {
		return nil
	}
	fm := reflect.New(table.Model).MethodByName(method)
	if value != nil {
		fm = reflect.ValueOf(value).MethodByName(method)
	}
	if !fm.IsValid() {
		return nil
	}
	param := []reflect.Value{reflect.ValueOf(s)}
	if v := fm.Call(param); len(v) > 0 {
		if err, ok := v[0].Interface().(error); ok && err != nil {
			log.Errorf("%s hook: %v", method, err)
			return err
		}
	}
	return nil
}
