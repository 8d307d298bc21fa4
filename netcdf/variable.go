package netcdf

import (
	"fmt"

	"github.com/Grismar/netcdfproc/internal/core"
	"github.com/Grismar/netcdfproc/internal/utils"
)

// Variable is a netCDF variable backed by an HDF5 dataset.
type Variable struct {
	group *Group
	name  string
	ds    *core.Dataset
	raw   []*core.Attribute
	attrs []Attribute
	dims  []string

	typ    Type
	typErr error

	// scale marks a dimension scale; hidden marks one that defines a
	// dimension without being a variable.
	scale  bool
	hidden bool
}

func (g *Group) newVariable(name string, h *core.ObjectHeader) (*Variable, error) {
	f := g.file
	ds, err := core.NewDataset(h, f.sb)
	if err != nil {
		return nil, err
	}
	raw, err := f.rawAttributes(h)
	if err != nil {
		return nil, err
	}
	v := &Variable{group: g, name: name, ds: ds, raw: raw}
	v.typ, v.typErr = typeOf(ds.Datatype)

	if a, ok := findRaw(raw, attrClass); ok {
		if class, ok := f.decodeString(a); ok && class == dimensionScaleClass {
			v.scale = true
		}
	}
	if v.scale {
		if a, ok := findRaw(raw, attrName); ok {
			if n, ok := f.decodeString(a); ok && isHiddenScale(n) {
				v.hidden = true
			}
		}
	}
	return v, nil
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Path returns the full path of the variable.
func (v *Variable) Path() string { return joinPath(v.group.Path(), v.name) }

// Group returns the group holding the variable.
func (v *Variable) Group() *Group { return v.group }

// Type returns the netCDF type of the stored values. It is zero when the
// HDF5 datatype has no netCDF equivalent.
func (v *Variable) Type() Type { return v.typ }

// Shape returns the current length of each axis. Scalars have an empty
// shape.
func (v *Variable) Shape() []int {
	ds := v.ds.Dataspace
	if ds.Type != core.DataspaceSimple {
		return []int{}
	}
	shape := make([]int, len(ds.Dims))
	for i, n := range ds.Dims {
		shape[i] = int(n) //nolint:gosec // G115: dimension lengths fit in int
	}
	return shape
}

// DimensionNames returns the dimension name of each axis, in axis order.
func (v *Variable) DimensionNames() []string {
	out := make([]string, len(v.dims))
	copy(out, v.dims)
	return out
}

// Attributes returns the variable attributes in creation order.
func (v *Variable) Attributes() ([]Attribute, error) {
	if v.attrs == nil {
		attrs, err := v.group.file.decodeAttributes(v.raw)
		if err != nil {
			return nil, utils.WrapError(v.Path(), err)
		}
		v.attrs = attrs
	}
	return v.attrs, nil
}

// Attribute returns the named attribute.
func (v *Variable) Attribute(name string) (Attribute, bool) {
	attrs, err := v.Attributes()
	if err != nil {
		return Attribute{}, false
	}
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Values reads the whole variable. Packed variables are unpacked unless
// the file was opened WithUnpack(false).
func (v *Variable) Values() (*Array, error) {
	if v.typErr != nil {
		return nil, utils.WrapError(v.Path(), v.typErr)
	}
	f := v.group.file
	raw, err := v.ds.ReadRaw(f.r, f.sb)
	if err != nil {
		return nil, utils.WrapError(v.Path(), err)
	}
	n, err := v.ds.Dataspace.TotalElements()
	if err != nil {
		return nil, utils.WrapError(v.Path(), err)
	}

	var data any
	if v.typ == CharType {
		chars := make([]Char, n)
		for i := range chars {
			chars[i] = Char(raw[i])
		}
		data = chars
	} else if data, err = core.DecodeValues(raw, v.ds.Datatype, n, f.heap, f.sb); err != nil {
		return nil, utils.WrapError(v.Path(), err)
	}

	shape := v.Shape()
	if v.ds.Dataspace.Type == core.DataspaceNull {
		return &Array{Type: v.typ, Shape: shape, Data: data}, nil
	}
	a, err := NewArray(v.typ, shape, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.Path(), err)
	}
	if !f.opts.unpack {
		return a, nil
	}
	return v.unpack(a)
}
