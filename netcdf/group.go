package netcdf

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Grismar/netcdfproc/internal/core"
	"github.com/Grismar/netcdfproc/internal/utils"
)

// Dimension is a named axis length. Unlimited dimensions report their
// current length.
type Dimension struct {
	Name      string
	Size      int
	Unlimited bool
}

// Group is a netCDF group. Members are loaded on first use.
type Group struct {
	file   *File
	parent *Group
	name   string
	hdr    *core.ObjectHeader

	loaded  bool
	loadErr error
	groups  []*Group
	vars    []*Variable
	dims    []Dimension
	phony   []Dimension
	raw     []*core.Attribute
	attrs   []Attribute
}

// Name returns the group name; the root group is "/".
func (g *Group) Name() string { return g.name }

// Parent returns the enclosing group, nil for the root.
func (g *Group) Parent() *Group { return g.parent }

// Path returns the full path of the group.
func (g *Group) Path() string {
	if g.parent == nil {
		return "/"
	}
	return joinPath(g.parent.Path(), g.name)
}

// Attributes returns the group attributes in creation order.
func (g *Group) Attributes() ([]Attribute, error) {
	if err := g.load(); err != nil {
		return nil, err
	}
	if g.attrs == nil {
		attrs, err := g.file.decodeAttributes(g.raw)
		if err != nil {
			return nil, utils.WrapError(g.Path(), err)
		}
		g.attrs = attrs
	}
	return g.attrs, nil
}

// Groups returns the subgroups.
func (g *Group) Groups() ([]*Group, error) {
	if err := g.load(); err != nil {
		return nil, err
	}
	return g.groups, nil
}

// Variables returns the variables of the group. Dimension scales that only
// define a dimension are not variables.
func (g *Group) Variables() ([]*Variable, error) {
	if err := g.load(); err != nil {
		return nil, err
	}
	return g.vars, nil
}

// OwnDimensions returns the dimensions declared in this group, in
// declaration order, followed by the phony dimensions created for
// datasets without dimension scales.
func (g *Group) OwnDimensions() ([]Dimension, error) {
	if err := g.load(); err != nil {
		return nil, err
	}
	out := make([]Dimension, 0, len(g.dims)+len(g.phony))
	out = append(out, g.dims...)
	return append(out, g.phony...), nil
}

// Dimensions returns every dimension visible in the group: its own and
// those of enclosing groups. A name declared closer to the group wins.
func (g *Group) Dimensions() (map[string]Dimension, error) {
	out := make(map[string]Dimension)
	var chain []*Group
	for p := g; p != nil; p = p.parent {
		chain = append(chain, p)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		own, err := chain[i].OwnDimensions()
		if err != nil {
			return nil, err
		}
		for _, d := range own {
			out[d.Name] = d
		}
	}
	return out, nil
}

// rawAttribute returns the undecoded attribute name.
func (g *Group) rawAttribute(name string) (*core.Attribute, bool) {
	if err := g.load(); err != nil {
		return nil, false
	}
	return findRaw(g.raw, name)
}

func findRaw(attrs []*core.Attribute, name string) (*core.Attribute, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// load reads the group once. A failed load keeps failing.
func (g *Group) load() error {
	if !g.loaded {
		g.loaded = true
		g.loadErr = g.read()
	}
	return g.loadErr
}

// read reads the members of the group: subgroups, dimension scales and
// variables, then resolves variable dimension names.
func (g *Group) read() error {
	f := g.file
	log := f.opts.log.WithField("group", g.Path())

	raw, err := f.rawAttributes(g.hdr)
	if err != nil {
		return utils.WrapError(g.Path(), err)
	}
	g.raw = raw

	members, err := f.members(g.hdr)
	if err != nil {
		return utils.WrapError(g.Path(), err)
	}

	for _, m := range members {
		h, err := f.header(m.address)
		if err != nil {
			return utils.WrapError(joinPath(g.Path(), m.name), err)
		}
		switch {
		case core.IsDataset(h):
			v, err := g.newVariable(m.name, h)
			if err != nil {
				return utils.WrapError(joinPath(g.Path(), m.name), err)
			}
			if v.scale {
				g.declare(v)
			}
			if !v.hidden {
				g.vars = append(g.vars, v)
			}
		case isGroup(h):
			g.groups = append(g.groups, &Group{file: f, parent: g, name: m.name, hdr: h})
		default:
			log.WithField("object", m.name).Debug("skipping object that is neither group nor dataset")
		}
	}

	for _, v := range g.vars {
		if err := g.resolveDimensions(v); err != nil {
			return utils.WrapError(joinPath(g.Path(), v.name), err)
		}
	}
	log.WithFields(logrus.Fields{
		"groups": len(g.groups), "variables": len(g.vars), "dimensions": len(g.dims),
	}).Debug("loaded group")
	return nil
}

// declare registers a dimension scale dataset as a dimension of g.
func (g *Group) declare(v *Variable) {
	d := Dimension{Name: v.name}
	if ds := v.ds.Dataspace; len(ds.Dims) > 0 {
		d.Size = int(ds.Dims[0]) //nolint:gosec // G115: dimension lengths fit in int
		d.Unlimited = ds.IsUnlimited(0)
	}
	g.dims = append(g.dims, d)
	g.file.dimNames[v.ds.Address] = d.Name
	if a, ok := findRaw(v.raw, attrDimID); ok {
		if ids, err := g.file.decodeInt32s(a); err == nil && len(ids) == 1 {
			g.file.dimIDs[ids[0]] = d.Name
		}
	}
}

// resolveDimensions names the axes of v. In order of preference:
// DIMENSION_LIST references to dimension scales, _Netcdf4Coordinates
// dimension ids, the variable itself for a one-dimensional scale, and
// phony dimensions shared by length within the group.
func (g *Group) resolveDimensions(v *Variable) error {
	rank := len(v.ds.Dataspace.Dims)
	if v.ds.Dataspace.Type == core.DataspaceScalar || rank == 0 {
		return nil
	}
	f := g.file

	if a, ok := findRaw(v.raw, attrDimList); ok {
		names, err := f.dimensionList(a, rank)
		if err != nil {
			return err
		}
		if names != nil {
			v.dims = names
			return nil
		}
	}
	if a, ok := findRaw(v.raw, attrCoordinates); ok {
		if ids, err := f.decodeInt32s(a); err == nil && len(ids) == rank {
			names := make([]string, rank)
			complete := true
			for i, id := range ids {
				names[i], ok = f.dimIDs[id]
				complete = complete && ok
			}
			if complete {
				v.dims = names
				return nil
			}
		}
	}
	if v.scale && rank == 1 {
		v.dims = []string{v.name}
		return nil
	}

	v.dims = make([]string, rank)
	for i, n := range v.ds.Dataspace.Dims {
		v.dims[i] = g.phonyDimension(int(n), v.dims[:i]) //nolint:gosec // G115: dimension lengths fit in int
	}
	return nil
}

// phonyDimension returns a phony dimension of length n not already used by
// the same variable, creating one when needed.
func (g *Group) phonyDimension(n int, used []string) string {
	for _, d := range g.phony {
		if d.Size != n {
			continue
		}
		taken := false
		for _, u := range used {
			taken = taken || u == d.Name
		}
		if !taken {
			return d.Name
		}
	}
	d := Dimension{Name: g.file.nextPhony(), Size: n}
	g.phony = append(g.phony, d)
	return d.Name
}

// dimensionList resolves a DIMENSION_LIST attribute: one variable-length
// list of object references per axis. It returns nil when some reference
// does not point to a known dimension scale.
func (f *File) dimensionList(a *core.Attribute, rank int) ([]string, error) {
	n, err := a.Dataspace.TotalElements()
	if err != nil {
		return nil, err
	}
	v, err := core.DecodeValues(a.Data, a.Datatype, n, f.heap, f.sb)
	if err != nil {
		return nil, utils.WrapError(attrDimList, err)
	}
	lists, ok := v.([]any)
	if !ok || len(lists) != rank {
		return nil, nil
	}
	names := make([]string, rank)
	for i, l := range lists {
		refs, ok := l.([]uint64)
		if !ok || len(refs) == 0 {
			return nil, nil
		}
		name, ok := f.dimNames[refs[0]]
		if !ok {
			return nil, nil
		}
		names[i] = name
	}
	return names, nil
}

// isHiddenScale reports whether a NAME attribute marks a dimension without
// a variable.
func isHiddenScale(name string) bool {
	return strings.HasPrefix(name, hiddenDimensionPrefix)
}
