package models

// Optional holds a value that may be absent. The zero Optional is absent.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// Or returns the held value, or fallback when absent.
func (o Optional[T]) Or(fallback T) T {
	if !o.Valid {
		return fallback
	}
	return o.Value
}
