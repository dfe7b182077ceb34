// Package patch provides a tri-state optional field for partial updates:
// omitted, explicit null, or a value.
package patch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field records whether a JSON member was present and, if so, whether it was
// null. The zero value is an omitted field.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Of returns a field set to v.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a field explicitly set to null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// Apply writes the value into a nullable column. Omitted leaves dst alone,
// null clears it.
func (f Field[T]) Apply(dst **T) {
	if !f.Set {
		return
	}
	if f.Null {
		*dst = nil
		return
	}
	v := f.Value
	*dst = &v
}

// ApplyRequired writes the value into a non-nullable column. An explicit null
// is an error naming the field.
func (f Field[T]) ApplyRequired(name string, dst *T) error {
	if !f.Set {
		return nil
	}
	if f.Null {
		return fmt.Errorf("%s cannot be null", name)
	}
	*dst = f.Value
	return nil
}
