package testing

import "fmt"

// ScaleAttrs returns the attributes netCDF-C gives a coordinate variable:
// a dimension scale named after the variable.
func ScaleAttrs(name string, id int32) []Attr {
	return []Attr{
		Text("CLASS", "DIMENSION_SCALE"),
		Text("NAME", name),
		Int32s("_Netcdf4Dimid", id),
	}
}

// DimensionAttrs returns the attributes of a dataset that only declares a
// dimension of the given length.
func DimensionAttrs(length uint64, id int32) []Attr {
	return []Attr{
		Text("CLASS", "DIMENSION_SCALE"),
		Text("NAME", fmt.Sprintf("This is a netCDF dimension but not a netCDF variable.%10d", length)),
		Int32s("_Netcdf4Dimid", id),
	}
}

// Dimension writes a dataset that declares a dimension without data.
func (b *Builder) Dimension(length uint64, id int32) uint64 {
	return b.Dataset(Dataset{
		Type:        Float32(),
		Dims:        []uint64{length},
		Data:        make([]byte, 4*length),
		Unallocated: true,
		Attrs:       DimensionAttrs(length, id),
	})
}
