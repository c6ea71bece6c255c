// Package patch models partial updates where "field absent" and "field set to
// its zero value" are different things.
package patch

import (
	"bytes"
	"encoding/json"
)

// Field is one optional member of a patch command. The zero value is absent.
type Field[T any] struct {
	value T
	set   bool
}

// Set returns a present field holding v.
func Set[T any](v T) Field[T] {
	return Field[T]{value: v, set: true}
}

// Absent returns a field that leaves the target unchanged.
func Absent[T any]() Field[T] {
	return Field[T]{}
}

func (f Field[T]) IsSet() bool {
	return f.set
}

// Get returns the value and whether it is present.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.set
}

// Apply overwrites *dst when the field is present and reports whether it did.
func (f Field[T]) Apply(dst *T) bool {
	if !f.set {
		return false
	}
	*dst = f.value
	return true
}

// UnmarshalJSON marks the field present. A JSON null is a present zero value;
// encoding/json only calls this method for keys that appear in the payload.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.value = zero
		return nil
	}
	return json.Unmarshal(data, &f.value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
