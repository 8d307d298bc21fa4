package netcdf

import (
	"fmt"

	"github.com/spf13/cast"
)

// Packing attributes.
const (
	attrScaleFactor = "scale_factor"
	attrAddOffset   = "add_offset"
)

// unpack applies scale_factor and add_offset to a numeric array the way
// netCDF4-python auto-scaling does: a factor of 1 and an offset of 0 are
// not applied, and the result is float32 only when the stored values are
// float32 or integers of at most 16 bits and every applied packing
// attribute is float32.
func (v *Variable) unpack(a *Array) (*Array, error) {
	if !a.IsNumeric() {
		return a, nil
	}
	scale, hasScale, err := v.packing(attrScaleFactor)
	if err != nil {
		return nil, err
	}
	offset, hasOffset, err := v.packing(attrAddOffset)
	if err != nil {
		return nil, err
	}
	hasScale = hasScale && scale.value != 1
	hasOffset = hasOffset && offset.value != 0
	if !hasScale && !hasOffset {
		return a, nil
	}

	single := a.Type == Float || a.Type == Byte || a.Type == UByte || a.Type == Short || a.Type == UShort
	if hasScale {
		single = single && scale.single
	}
	if hasOffset {
		single = single && offset.single
	}

	out := make([]float64, a.Len())
	for i := range out {
		x, err := cast.ToFloat64E(a.Value(i))
		if err != nil {
			return nil, err
		}
		if hasScale {
			x *= scale.value
		}
		if hasOffset {
			x += offset.value
		}
		out[i] = x
	}
	if !single {
		return &Array{Type: Double, Shape: a.Shape, Data: out}, nil
	}
	f32 := make([]float32, len(out))
	for i, x := range out {
		f32[i] = float32(x)
	}
	return &Array{Type: Float, Shape: a.Shape, Data: f32}, nil
}

type packingValue struct {
	value  float64
	single bool
}

// packing reads a scalar packing attribute.
func (v *Variable) packing(name string) (packingValue, bool, error) {
	attr, ok := v.Attribute(name)
	if !ok {
		return packingValue{}, false, nil
	}
	x, err := cast.ToFloat64E(attr.Value)
	if err != nil {
		return packingValue{}, false, fmt.Errorf("%s: %s is not a number: %w", v.Path(), name, err)
	}
	return packingValue{value: x, single: attr.Type != Double}, true, nil
}
