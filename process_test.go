package netcdfproc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Grismar/netcdfproc/netcdf"
)

type fakeVariable struct {
	name  string
	attrs []netcdf.Attribute
	dims  []string
	shape []int
	array *netcdf.Array
}

func (v *fakeVariable) Name() string                            { return v.name }
func (v *fakeVariable) Attributes() ([]netcdf.Attribute, error) { return v.attrs, nil }
func (v *fakeVariable) DimensionNames() []string                { return v.dims }
func (v *fakeVariable) Shape() []int                            { return v.shape }
func (v *fakeVariable) Values() (*netcdf.Array, error)          { return v.array, nil }

type fakeGroup struct {
	name   string
	path   string
	attrs  []netcdf.Attribute
	groups []Group
	vars   []Variable
	dims   map[string]netcdf.Dimension
}

func (g *fakeGroup) Name() string                                     { return g.name }
func (g *fakeGroup) Path() string                                     { return g.path }
func (g *fakeGroup) Attributes() ([]netcdf.Attribute, error)          { return g.attrs, nil }
func (g *fakeGroup) Groups() ([]Group, error)                         { return g.groups, nil }
func (g *fakeGroup) Variables() ([]Variable, error)                   { return g.vars, nil }
func (g *fakeGroup) Dimensions() (map[string]netcdf.Dimension, error) { return g.dims, nil }

// memFiles collects the files written through Options.Create.
type memFiles map[string]*bytes.Buffer

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (m memFiles) create(_ context.Context, path string) (io.WriteCloser, error) {
	b := &bytes.Buffer{}
	m[path] = b
	return nopCloser{b}, nil
}

var testDims = map[string]netcdf.Dimension{
	"x": {Name: "x", Size: 3},
	"y": {Name: "y", Size: 2},
	"t": {Name: "t", Size: 4, Unlimited: true},
}

func vector(name string) *fakeVariable {
	return &fakeVariable{
		name:  name,
		dims:  []string{"x"},
		shape: []int{3},
		array: &netcdf.Array{Type: netcdf.Int, Shape: []int{3}, Data: []int32{1, 2, 3}},
	}
}

func matrix(name string) *fakeVariable {
	return &fakeVariable{
		name:  name,
		dims:  []string{"y", "x"},
		shape: []int{2, 3},
		array: &netcdf.Array{Type: netcdf.Double, Shape: []int{2, 3}, Data: []float64{1, 2, 3, 4, 5, 6}},
	}
}

func scalar(name string) *fakeVariable {
	return &fakeVariable{
		name:  name,
		dims:  []string{},
		shape: []int{},
		array: &netcdf.Array{Type: netcdf.Float, Shape: []int{}, Data: []float32{1.5}},
	}
}

func TestProcessVariableSize(t *testing.T) {
	tests := []struct {
		name string
		v    *fakeVariable
		want []int
	}{
		{"scalar", scalar("s"), []int{1}},
		{"vector", vector("v"), []int{3}},
		{"matrix in variable order", matrix("m"), []int{2, 3}},
		{"unlimited", &fakeVariable{name: "u", dims: []string{"t"}, shape: []int{4},
			array: &netcdf.Array{Type: netcdf.Short, Shape: []int{4}, Data: []int16{1, 2, 3, 4}}}, []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, csv := range []bool{false, true} {
				files := memFiles{}
				opts := Options{CSV1D: csv, CSV2D: csv, Create: files.create}
				rec, _, err := ProcessVariable(context.Background(), tt.v, testDims, "in.nc", opts)
				require.NoError(t, err)
				assert.Equal(t, tt.want, rec.Size)
			}
		})
	}
}

func TestProcessVariableAttributes(t *testing.T) {
	v := vector("v")
	v.attrs = []netcdf.Attribute{
		{Name: "units", Type: netcdf.String, Value: "m"},
		{Name: "valid_range", Type: netcdf.Int, Value: []int32{0, 10}},
	}
	rec, _, err := ProcessVariable(context.Background(), v, testDims, "in.nc", Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"units", "valid_range"}, rec.Attributes.Keys())
	fields := rec.Fields()
	assert.Equal(t, []string{"units", "valid_range", "__size"}, fields.Keys())
	size, ok := fields.Get("__size")
	require.True(t, ok)
	assert.Equal(t, []int{3}, size)
}

func TestProcessVariableTooManyDimensions(t *testing.T) {
	v := &fakeVariable{
		name:  "cube",
		dims:  []string{"t", "y", "x"},
		shape: []int{4, 2, 3},
		array: &netcdf.Array{Type: netcdf.Byte, Shape: []int{4, 2, 3}, Data: make([]int8, 24)},
	}
	files := memFiles{}
	rec, data, err := ProcessVariable(context.Background(), v, testDims, "in.nc", Options{CSV1D: true, CSV2D: true, Create: files.create})

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "unexpected number of dimensions (>2)", pre.Msg)
	assert.Nil(t, rec)
	assert.Nil(t, data)
	assert.Empty(t, files)
}

func TestProcessVariableUnknownDimension(t *testing.T) {
	v := vector("v")
	v.dims = []string{"missing"}
	_, _, err := ProcessVariable(context.Background(), v, testDims, "in.nc", Options{})
	require.ErrorContains(t, err, `dimension "missing" not found`)
}

func TestRepresentationPolicy(t *testing.T) {
	tests := []struct {
		rank         int
		csv1d, csv2d bool
		wantCSV      bool
	}{
		{0, false, false, false},
		{0, true, true, false},
		{1, false, false, false},
		{1, true, false, true},
		{1, false, true, false},
		{2, false, false, false},
		{2, true, false, false},
		{2, false, true, true},
		{2, true, true, true},
	}
	for _, tt := range tests {
		var v *fakeVariable
		switch tt.rank {
		case 0:
			v = scalar("var")
		case 1:
			v = vector("var")
		case 2:
			v = matrix("var")
		}
		files := memFiles{}
		opts := Options{CSV1D: tt.csv1d, CSV2D: tt.csv2d, Create: files.create}
		_, data, err := ProcessVariable(context.Background(), v, testDims, "dir/in.nc", opts)
		require.NoError(t, err)

		if tt.wantCSV {
			require.Equal(t, CSVRef{Path: "dir/in.nc.var.csv"}, data, "rank %d", tt.rank)
			require.Contains(t, files, "dir/in.nc.var.csv")
		} else {
			require.Equal(t, Inline{Array: v.array}, data, "rank %d", tt.rank)
			require.Empty(t, files)
		}
	}
}

func TestProcessVariableCSVContent(t *testing.T) {
	files := memFiles{}
	opts := Options{CSV1D: true, CSV2D: true, Format: "%g", Create: files.create}
	ctx := context.Background()

	_, _, err := ProcessVariable(ctx, matrix("m"), testDims, "in.nc", opts)
	require.NoError(t, err)
	assert.Equal(t, "1,2,3\n4,5,6\n", files["in.nc.m.csv"].String())

	opts.Format = ""
	_, _, err = ProcessVariable(ctx, vector("v"), testDims, "in.nc", opts)
	require.NoError(t, err)
	assert.Equal(t,
		"1.000000000000000000e+00\n2.000000000000000000e+00\n3.000000000000000000e+00\n",
		files["in.nc.v.csv"].String())
}

func TestProcessVariableWriteError(t *testing.T) {
	failed := errors.New("disk full")
	opts := Options{CSV1D: true, Create: func(context.Context, string) (io.WriteCloser, error) {
		return nil, failed
	}}
	_, _, err := ProcessVariable(context.Background(), vector("v"), testDims, "in.nc", opts)
	require.ErrorIs(t, err, failed)
}

func TestProcessGroup(t *testing.T) {
	inner := &fakeGroup{
		name:  "inner",
		attrs: []netcdf.Attribute{{Name: "level", Type: netcdf.Int, Value: int32(2)}},
		vars:  []Variable{scalar("s")},
		dims:  testDims,
	}
	root := &fakeGroup{
		name: "/",
		attrs: []netcdf.Attribute{
			{Name: "title", Type: netcdf.String, Value: "test"},
			{Name: "history", Type: netcdf.String, Value: "created"},
		},
		groups: []Group{inner, &fakeGroup{name: "empty"}},
		vars:   []Variable{matrix("m"), vector("v"), scalar("s")},
		dims:   testDims,
	}
	files := memFiles{}
	rec, err := ProcessGroup(context.Background(), root, "in.nc", Options{CSV2D: true, Create: files.create})
	require.NoError(t, err)

	assert.Equal(t, []string{"inner", "empty"}, rec.Subgroups.Keys())
	assert.Equal(t, []string{"title", "history"}, rec.GlobalAttributes.Keys())
	assert.Equal(t, []string{"m", "v", "s"}, rec.Variables.Keys())
	assert.Equal(t, rec.Variables.Keys(), rec.Data.Keys())

	m, _ := rec.Data.Get("m")
	assert.Equal(t, CSVRef{Path: "in.nc.m.csv"}, m)
	v, _ := rec.Data.Get("v")
	assert.IsType(t, Inline{}, v)

	sub, ok := rec.Subgroups.Get("inner")
	require.True(t, ok)
	assert.Equal(t, []string{"s"}, sub.Variables.Keys())
	assert.Equal(t, sub.Variables.Keys(), sub.Data.Keys())
	level, _ := sub.GlobalAttributes.Get("level")
	assert.Equal(t, int32(2), level)

	empty, _ := rec.Subgroups.Get("empty")
	assert.Zero(t, empty.Variables.Len())
	assert.Zero(t, empty.Data.Len())
}

func TestProcessGroupPropagatesErrors(t *testing.T) {
	bad := &fakeGroup{
		name: "bad",
		vars: []Variable{&fakeVariable{name: "c", dims: []string{"x", "y", "t"}, shape: []int{3, 2, 4}}},
		dims: testDims,
	}
	root := &fakeGroup{name: "/", groups: []Group{bad}, vars: []Variable{vector("v")}, dims: testDims}
	_, err := ProcessGroup(context.Background(), root, "in.nc", Options{})
	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
}

func TestProcessGroupLogsPaths(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	outer := &fakeGroup{
		name:   "outer",
		path:   "/outer",
		groups: []Group{&fakeGroup{name: "inner", path: "/outer/inner"}},
	}
	root := &fakeGroup{
		name:   "/",
		path:   "/",
		groups: []Group{outer, &fakeGroup{name: "inner", path: "/inner"}},
	}
	_, err := ProcessGroup(context.Background(), root, "in.nc", Options{Log: log})
	require.NoError(t, err)

	var paths []any
	for _, e := range hook.AllEntries() {
		paths = append(paths, e.Data["group"])
	}
	assert.Equal(t, []any{"/outer/inner", "/outer", "/inner", "/"}, paths)
}

func TestOptionsLoggerIsShared(t *testing.T) {
	first := Options{}.logger()
	assert.Same(t, discard, first)
	assert.Same(t, first, Options{}.logger())

	log, _ := test.NewNullLogger()
	assert.Same(t, log, Options{Log: log}.logger())
}

func TestMap(t *testing.T) {
	var m Map[int]
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("b", 3)
	assert.Equal(t, []string{"b", "a"}, m.Keys())
	assert.Equal(t, 2, m.Len())
	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = m.Get("c")
	assert.False(t, ok)
}
