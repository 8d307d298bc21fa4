package netcdf

import "fmt"

// Array is the materialized content of a variable: a flat row-major typed
// slice and its shape. A scalar has an empty shape and one element.
//
// Data holds one of []int8, []uint8, []int16, []uint16, []int32, []uint32,
// []int64, []uint64, []float32, []float64, []string or []Char.
type Array struct {
	Type  Type
	Shape []int
	Data  any
}

// NewArray wraps data, checking that its length matches shape.
func NewArray(t Type, shape []int, data any) (*Array, error) {
	a := &Array{Type: t, Shape: shape, Data: data}
	want := 1
	for _, n := range shape {
		want *= n
	}
	if got := a.Len(); got != want {
		return nil, fmt.Errorf("array of shape %v needs %d elements, got %d", shape, want, got)
	}
	return a, nil
}

// Rank is the number of dimensions.
func (a *Array) Rank() int { return len(a.Shape) }

// Len is the number of elements.
func (a *Array) Len() int {
	switch d := a.Data.(type) {
	case []int8:
		return len(d)
	case []uint8:
		return len(d)
	case []int16:
		return len(d)
	case []uint16:
		return len(d)
	case []int32:
		return len(d)
	case []uint32:
		return len(d)
	case []int64:
		return len(d)
	case []uint64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []string:
		return len(d)
	case []Char:
		return len(d)
	}
	return 0
}

// Value returns element i of the flat data as a Go scalar.
func (a *Array) Value(i int) any {
	switch d := a.Data.(type) {
	case []int8:
		return d[i]
	case []uint8:
		return d[i]
	case []int16:
		return d[i]
	case []uint16:
		return d[i]
	case []int32:
		return d[i]
	case []uint32:
		return d[i]
	case []int64:
		return d[i]
	case []uint64:
		return d[i]
	case []float32:
		return d[i]
	case []float64:
		return d[i]
	case []string:
		return d[i]
	case []Char:
		return d[i]
	}
	return nil
}

// IsNumeric reports whether the elements are integers or floats.
func (a *Array) IsNumeric() bool {
	return a.Type != CharType && a.Type != String
}
