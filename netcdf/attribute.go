package netcdf

import (
	"fmt"

	"github.com/Grismar/netcdfproc/internal/core"
)

// Attribute is a named netCDF attribute. Value holds a Go scalar for
// single-element attributes and a typed slice otherwise; text attributes
// are strings.
type Attribute struct {
	Name  string
	Type  Type
	Value any
}

// Attribute names netCDF-C and the HDF5 dimension scale API use for
// bookkeeping. They are not part of the netCDF data model.
const (
	attrClass        = "CLASS"
	attrName         = "NAME"
	attrRefList      = "REFERENCE_LIST"
	attrDimList      = "DIMENSION_LIST"
	attrDimID        = "_Netcdf4Dimid"
	attrCoordinates  = "_Netcdf4Coordinates"
	attrNC3Strict    = "_nc3_strict"
	attrNCProperties = "_NCProperties"
	attrIsNetcdf4    = "_IsNetcdf4"
	attrSBVersion    = "_SuperblockVersion"
)

var hiddenAttributes = map[string]bool{
	attrClass: true, attrName: true, attrRefList: true, attrDimList: true,
	attrDimID: true, attrCoordinates: true, attrNC3Strict: true,
	attrNCProperties: true, attrIsNetcdf4: true, attrSBVersion: true,
}

// dimensionScaleClass is the CLASS value of a dimension scale dataset.
const dimensionScaleClass = "DIMENSION_SCALE"

// hiddenDimensionPrefix starts the NAME of a dimension scale that only
// exists to define a dimension.
const hiddenDimensionPrefix = "This is a netCDF dimension but not a netCDF variable"

// decodeAttributes converts the visible attributes of an object.
func (f *File) decodeAttributes(raw []*core.Attribute) ([]Attribute, error) {
	out := make([]Attribute, 0, len(raw))
	for _, a := range raw {
		if hiddenAttributes[a.Name] {
			continue
		}
		attr, err := f.decodeAttribute(a)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		out = append(out, attr)
	}
	return out, nil
}

func (f *File) decodeAttribute(a *core.Attribute) (Attribute, error) {
	t, err := typeOf(a.Datatype)
	if err != nil {
		return Attribute{}, err
	}
	n, err := a.Dataspace.TotalElements()
	if err != nil {
		return Attribute{}, err
	}
	v, err := core.DecodeValues(a.Data, a.Datatype, n, f.heap, f.sb)
	if err != nil {
		return Attribute{}, err
	}

	// Text attributes are stored as one fixed-length string.
	if t == CharType {
		t = String
	}
	attr := Attribute{Name: a.Name, Type: t, Value: v}
	if n == 1 {
		attr.Value = (&Array{Type: t, Data: v}).Value(0)
	}
	return attr, nil
}

// decodeInt32s reads an integer attribute such as _Netcdf4Dimid as int32s.
func (f *File) decodeInt32s(a *core.Attribute) ([]int32, error) {
	n, err := a.Dataspace.TotalElements()
	if err != nil {
		return nil, err
	}
	v, err := core.DecodeValues(a.Data, a.Datatype, n, f.heap, f.sb)
	if err != nil {
		return nil, err
	}
	var out []int32
	switch d := v.(type) {
	case []int32:
		out = d
	case []uint32:
		for _, x := range d {
			out = append(out, int32(x)) //nolint:gosec // G115: dimension ids are small
		}
	case []int64:
		for _, x := range d {
			out = append(out, int32(x)) //nolint:gosec // G115: dimension ids are small
		}
	default:
		return nil, fmt.Errorf("%s is not an integer attribute", a.Name)
	}
	return out, nil
}

// decodeString reads a string attribute such as CLASS or NAME.
func (f *File) decodeString(a *core.Attribute) (string, bool) {
	if a.Datatype.Class != core.ClassString && !a.Datatype.IsVarString() {
		return "", false
	}
	v, err := core.DecodeValues(a.Data, a.Datatype, 1, f.heap, f.sb)
	if err != nil {
		return "", false
	}
	s, ok := v.([]string)
	if !ok || len(s) == 0 {
		return "", false
	}
	return s[0], true
}
