package model

import "encoding/json"

// Optional is a tri-state JSON field for patch payloads: absent from the
// body (Set=false), present as null (Set=true, Valid=false), or present
// with a value (Set=true, Valid=true). encoding/json only invokes
// UnmarshalJSON for keys present in the body, which is what makes the
// absent case detectable.
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		var zero T
		o.Valid = false
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Ptr returns the value as a pointer, nil for null. Callers must check Set
// first to distinguish "leave unchanged".
func (o Optional[T]) Ptr() *T {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}
