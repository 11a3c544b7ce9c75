// Package core provides the fundamental building blocks of the docorm ODM.
// This file contains helper functions for reflection, identifier access and
// common value transformations.
package core

import (
	"reflect"
	"time"
	"unsafe"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// offsetOf returns the memory offset of a struct field selected by the given selector function.
//
// Example:
//
//	type User struct {
//	    ID   int
//	    Name string
//	}
//
//	offset := offsetOf(func(u *User) *string { return &u.Name })
func offsetOf[T any, F any](selector func(*T) *F) uintptr {
	var zero T
	base := uintptr(unsafe.Pointer(&zero))
	ptr := selector(&zero)
	return uintptr(unsafe.Pointer(ptr)) - base
}

// offsetOfAny is offsetOf for selectors returning the field pointer as any.
func offsetOfAny[T any](selector func(*T) any) uintptr {
	var zero T
	base := uintptr(unsafe.Pointer(&zero))
	ptr := reflect.ValueOf(selector(&zero))
	if ptr.Kind() != reflect.Pointer {
		panic("core: selector must return a pointer to a field")
	}
	return ptr.Pointer() - base
}

var objectIDType = reflect.TypeOf(primitive.ObjectID{})

// usesGeneratedID reports whether the schema follows the default identifier
// strategy: an ObjectID assigned at insert time.
func (s *SchemaCore) usesGeneratedID() bool {
	return s.idField.Type == objectIDType
}

// idValue returns the identifier field of doc.
func (s *SchemaCore) idValue(doc any) reflect.Value {
	return reflect.ValueOf(doc).Elem().FieldByIndex(s.idField.Index)
}

// idOf returns the identifier of doc and whether it is set.
func (s *SchemaCore) idOf(doc any) (any, bool) {
	field := s.idValue(doc)
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			return nil, false
		}
		field = field.Elem()
	}
	return field.Interface(), !field.IsZero()
}

// setID writes an identifier returned by the driver back onto doc.
func (s *SchemaCore) setID(doc any, id any) {
	field := s.idValue(doc)
	value := reflect.ValueOf(id)
	if !value.IsValid() || !field.CanSet() {
		return
	}
	switch {
	case value.Type().AssignableTo(field.Type()):
		field.Set(value)
	case value.Type().ConvertibleTo(field.Type()):
		field.Set(value.Convert(field.Type()))
	}
}

// setTimeField sets a time.Time value into a struct field, supporting both
// value and pointer kinds.
//
// If the field is a struct time.Time, it sets the value directly.
// If the field is a *time.Time, it sets or allocates as needed.
func setTimeField(field reflect.Value, t time.Time) {
	if !field.IsValid() || !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.Struct:
		if field.Type() == timeType {
			field.Set(reflect.ValueOf(t))
		}
	case reflect.Pointer:
		if field.Type().Elem() == timeType {
			if field.IsNil() {
				ptr := reflect.New(timeType)
				ptr.Elem().Set(reflect.ValueOf(t))
				field.Set(ptr)
			} else {
				field.Elem().Set(reflect.ValueOf(t))
			}
		}
	}
}

// stampTimes sets the updatedAt field of doc, and its createdAt field when
// created is true or the field is still zero.
func (s *SchemaMeta[T]) stampTimes(doc *T, created bool) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	value := reflect.ValueOf(doc).Elem()
	if s.createdAtField != nil {
		field := value.FieldByIndex(s.createdAtField.Index)
		if created || field.IsZero() {
			setTimeField(field, now)
		}
	}
	if s.updatedAtField != nil {
		setTimeField(value.FieldByIndex(s.updatedAtField.Index), now)
	}
}
