package storage

import "encoding/json"

// Field is one value of a three-state merge patch. A field absent from the
// request leaves the target untouched, an explicit null unsets it, and a
// present value overwrites it. Every update operation depends on this
// distinction, so patches must be decoded through Field rather than plain
// pointers.
type Field[T any] struct {
	Present bool
	Null    bool
	Value   T
}

// Set returns a Field carrying v.
func Set[T any](v T) Field[T] {
	return Field[T]{Present: true, Value: v}
}

// Unset returns a Field that clears the target value.
func Unset[T any]() Field[T] {
	return Field[T]{Present: true, Null: true}
}

// UnmarshalJSON is only invoked for keys present in the document, so Present
// is true whenever it runs; absent fields keep the zero Field.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Present = true
	if string(data) == "null" {
		f.Null = true
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Present || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Apply merges the field into dst.
func (f Field[T]) Apply(dst *T) {
	if !f.Present {
		return
	}
	if f.Null {
		var zero T
		*dst = zero
		return
	}
	*dst = f.Value
}

// ApplyPtr merges the field into a nullable target, mapping an explicit null
// to nil.
func (f Field[T]) ApplyPtr(dst **T) {
	if !f.Present {
		return
	}
	if f.Null {
		*dst = nil
		return
	}
	v := f.Value
	*dst = &v
}
