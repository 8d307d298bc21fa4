package netcdf

import (
	"fmt"

	"github.com/Grismar/netcdfproc/internal/core"
)

// DataModel is the netCDF format variant of a file, named the way
// netCDF-C and netCDF4-python name it.
type DataModel string

// Data models.
const (
	Classic        DataModel = "NETCDF3_CLASSIC"
	Offset64       DataModel = "NETCDF3_64BIT_OFFSET"
	Data64         DataModel = "NETCDF3_64BIT_DATA"
	NetCDF4Classic DataModel = "NETCDF4_CLASSIC"
	NetCDF4        DataModel = "NETCDF4"
)

// Type is a netCDF external data type.
type Type int

// netCDF types. The zero value is invalid.
const (
	Byte Type = iota + 1
	UByte
	Short
	UShort
	Int
	UInt
	Int64
	UInt64
	Float
	Double
	CharType
	String
)

var typeNames = map[Type]string{
	Byte: "byte", UByte: "ubyte", Short: "short", UShort: "ushort",
	Int: "int", UInt: "uint", Int64: "int64", UInt64: "uint64",
	Float: "float", Double: "double", CharType: "char", String: "string",
}

// String returns the CDL name of the type.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Char is one cell of an NC_CHAR variable. Text variables are kept as
// characters, not joined into strings.
type Char byte

// typeOf maps an HDF5 datatype onto a netCDF type. Enums take the type of
// their base integer.
func typeOf(dt *core.Datatype) (Type, error) {
	switch dt.Class {
	case core.ClassFixed:
		return intType(dt.Size, dt.Signed())
	case core.ClassEnum:
		if dt.Base != nil && dt.Base.Class == core.ClassFixed {
			return intType(dt.Base.Size, dt.Base.Signed())
		}
	case core.ClassFloat:
		switch dt.Size {
		case 4:
			return Float, nil
		case 8:
			return Double, nil
		}
	case core.ClassString:
		if dt.Size == 1 {
			return CharType, nil
		}
		return String, nil
	case core.ClassVarLen:
		if dt.IsVarString() {
			return String, nil
		}
	}
	return 0, fmt.Errorf("HDF5 %s has no netCDF equivalent", dt)
}

func intType(size uint32, signed bool) (Type, error) {
	types := map[uint32][2]Type{1: {UByte, Byte}, 2: {UShort, Short}, 4: {UInt, Int}, 8: {UInt64, Int64}}
	pair, ok := types[size]
	if !ok {
		return 0, fmt.Errorf("%d-byte integers have no netCDF equivalent", size)
	}
	if signed {
		return pair[1], nil
	}
	return pair[0], nil
}
