package netcdfproc

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/Grismar/netcdfproc/netcdf"
)

// Coerce converts an attribute value or the values of a variable into
// plain JSON values: signed integers become int64, unsigned integers
// uint64, floats float64, and arrays and slices []any nested by shape.
// Strings and nil are returned unchanged. Any other value, including the
// characters of a text variable, is a *TypeError.
func Coerce(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int64, uint64, float64:
		return x, nil
	case int8, int16, int32, int:
		return cast.ToInt64E(x)
	case uint8, uint16, uint32, uint:
		return cast.ToUint64E(x)
	case float32:
		return cast.ToFloat64E(x)
	case *netcdf.Array:
		return coerceArray(x)
	case []int:
		return coerceSlice(x)
	case []int8:
		return coerceSlice(x)
	case []uint8:
		return coerceSlice(x)
	case []int16:
		return coerceSlice(x)
	case []uint16:
		return coerceSlice(x)
	case []int32:
		return coerceSlice(x)
	case []uint32:
		return coerceSlice(x)
	case []int64:
		return coerceSlice(x)
	case []uint64:
		return coerceSlice(x)
	case []float32:
		return coerceSlice(x)
	case []float64:
		return coerceSlice(x)
	case []string:
		return coerceSlice(x)
	case []any:
		return coerceSlice(x)
	case netcdf.Char, []netcdf.Char:
		return nil, &TypeError{Msg: "Object of type bytes is not JSON serializable"}
	}
	return nil, &TypeError{Msg: fmt.Sprintf("Object of type %T is not JSON serializable", v)}
}

func coerceSlice[T any](s []T) ([]any, error) {
	out := make([]any, len(s))
	for i, x := range s {
		c, err := Coerce(x)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// coerceArray nests the flat values of a by its shape. A scalar becomes a
// single value.
func coerceArray(a *netcdf.Array) (any, error) {
	if a.Rank() == 0 {
		if a.Len() == 0 {
			return nil, nil
		}
		return Coerce(a.Value(0))
	}
	v, _, err := nest(a, 0, 0)
	return v, err
}

// nest builds the list of axis starting at flat index i and returns the
// index that follows it.
func nest(a *netcdf.Array, axis, i int) ([]any, int, error) {
	n := a.Shape[axis]
	out := make([]any, n)
	for k := 0; k < n; k++ {
		if axis == a.Rank()-1 {
			c, err := Coerce(a.Value(i))
			if err != nil {
				return nil, 0, err
			}
			out[k] = c
			i++
			continue
		}
		sub, next, err := nest(a, axis+1, i)
		if err != nil {
			return nil, 0, err
		}
		out[k] = sub
		i = next
	}
	return out, i, nil
}
