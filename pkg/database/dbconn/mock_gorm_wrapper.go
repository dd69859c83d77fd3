package dbconn

import (
	"errors"
	"reflect"
)

type MockGormWrapper interface {
	GormWrapper
	Created() []interface{}
	Chain() []Call
	SetError(error) MockGormWrapper
	SetResult(interface{}) MockGormWrapper
}

// Call is one recorded method invocation on the mock.
type Call struct {
	Method string
	Args   []interface{}
}

type mockGormWrapper struct {
	error   error
	created []interface{}
	chain   []Call
	result  interface{}
}

func Mock() MockGormWrapper {
	return &mockGormWrapper{}
}

func (w *mockGormWrapper) Created() []interface{} {
	return w.created
}

func (w *mockGormWrapper) Chain() []Call {
	return w.chain
}

func (w *mockGormWrapper) SetError(e error) MockGormWrapper {
	w.error = e
	return w
}

func (w *mockGormWrapper) SetResult(r interface{}) MockGormWrapper {
	w.result = r
	return w
}

func (w *mockGormWrapper) record(method string, args ...interface{}) {
	w.chain = append(w.chain, Call{Method: method, Args: args})
}

func (w *mockGormWrapper) Error() error {
	return w.error
}

func (w *mockGormWrapper) AutoMigrate(...interface{}) error {
	return w.error
}

func (w *mockGormWrapper) Create(value interface{}) GormWrapper {
	w.record("Create", value)
	if w.error == nil {
		w.created = append(w.created, value)
	}
	return w
}

func (w *mockGormWrapper) Where(query interface{}, args ...interface{}) GormWrapper {
	w.record("Where", append([]interface{}{query}, args...)...)
	return w
}

func (w *mockGormWrapper) Order(value interface{}) GormWrapper {
	w.record("Order", value)
	return w
}

func (w *mockGormWrapper) First(dest interface{}, conds ...interface{}) GormWrapper {
	w.record("First", conds...)
	return w.fill(dest)
}

func (w *mockGormWrapper) Find(dest interface{}, conds ...interface{}) GormWrapper {
	w.record("Find", conds...)
	return w.fill(dest)
}

func (w *mockGormWrapper) Model(value interface{}) GormWrapper {
	w.record("Model", value)
	return w
}

func (w *mockGormWrapper) Updates(values interface{}) GormWrapper {
	w.record("Updates", values)
	return w
}

func (w *mockGormWrapper) Delete(value interface{}, conds ...interface{}) GormWrapper {
	w.record("Delete", append([]interface{}{value}, conds...)...)
	return w
}

func (w *mockGormWrapper) Close() error {
	return nil
}

func (w *mockGormWrapper) fill(dest interface{}) GormWrapper {
	if w.error != nil || w.result == nil {
		return w
	}
	w.error = Replace(dest, w.result)
	return w
}

func Replace(i, v interface{}) error {
	val := reflect.ValueOf(i)
	if val.Kind() != reflect.Ptr {
		return errors.New("not a pointer")
	}

	val = val.Elem()

	newVal := reflect.Indirect(reflect.ValueOf(v))

	if !newVal.Type().AssignableTo(val.Type()) {
		return errors.New("mismatched types")
	}

	val.Set(newVal)
	return nil
}
