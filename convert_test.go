package netcdfproc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	h5test "github.com/Grismar/netcdfproc/internal/testing"
	"github.com/Grismar/netcdfproc/netcdf"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestConvertFileSample(t *testing.T) {
	path := writeFile(t, "sample.nc", h5test.Sample(h5test.FormatV2, false))
	dir := t.TempDir()

	rec, err := ConvertFile(context.Background(), path, Options{CSV2D: true, CSVDir: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "version", "__source"}, rec.GlobalAttributes.Keys())
	source, _ := rec.GlobalAttributes.Get("__source")
	assert.Equal(t, "sample.nc", source)

	assert.Equal(t, []string{"time", "temp", "pressure", "station_id", "label"}, rec.Variables.Keys())
	assert.Equal(t, rec.Variables.Keys(), rec.Data.Keys())
	temp, _ := rec.Variables.Get("temp")
	assert.Equal(t, []int{2, 4}, temp.Size)
	station, _ := rec.Variables.Get("station_id")
	assert.Equal(t, []int{1}, station.Size)

	data, _ := rec.Data.Get("temp")
	csvPath := filepath.Join(dir, "sample.nc.temp.csv")
	require.Equal(t, CSVRef{Path: csvPath}, data)
	content, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t,
		"1.000000000000000000e+00,2.000000000000000000e+00,3.000000000000000000e+00,4.000000000000000000e+00\n"+
			"5.000000000000000000e+00,6.000000000000000000e+00,7.000000000000000000e+00,8.000000000000000000e+00\n",
		string(content))

	data, _ = rec.Data.Get("station_id")
	inline, ok := data.(Inline)
	require.True(t, ok)
	assert.Equal(t, []int32{42}, inline.Array.Data)

	forecast, ok := rec.Subgroups.Get("forecast")
	require.True(t, ok)
	model, _ := forecast.GlobalAttributes.Get("model")
	assert.Equal(t, "gfs", model)
	_, ok = forecast.GlobalAttributes.Get("__source")
	assert.False(t, ok)
	grid, _ := forecast.Variables.Get("grid")
	assert.Equal(t, []int{5, 5}, grid.Size)
	wind, _ := forecast.Variables.Get("wind")
	assert.Equal(t, []int{4}, wind.Size)
	data, _ = forecast.Data.Get("grid")
	assert.Equal(t, CSVRef{Path: filepath.Join(dir, "sample.nc.grid.csv")}, data)
	data, _ = forecast.Data.Get("wind")
	assert.IsType(t, Inline{}, data)
}

func TestConvertFileUnpacking(t *testing.T) {
	path := writeFile(t, "sample.nc", h5test.Sample(h5test.FormatV0, false))
	ctx := context.Background()

	rec, err := ConvertFile(ctx, path, Options{})
	require.NoError(t, err)
	data, _ := rec.Data.Get("pressure")
	assert.Equal(t, []float32{100, 101, 102}, data.(Inline).Array.Data)

	rec, err = ConvertFile(ctx, path, Options{Raw: true})
	require.NoError(t, err)
	data, _ = rec.Data.Get("pressure")
	assert.Equal(t, []int16{0, 2, 4}, data.(Inline).Array.Data)
}

func TestConvertFileDataModel(t *testing.T) {
	ctx := context.Background()
	for name, data := range map[string][]byte{
		"classic.nc":        h5test.Sample(h5test.FormatV2, true),
		"netcdf3.nc":        append([]byte("CDF\x01"), make([]byte, 64)...),
		"netcdf3_offset.nc": append([]byte("CDF\x02"), make([]byte, 64)...),
	} {
		path := writeFile(t, name, data)
		dir := t.TempDir()
		rec, err := ConvertFile(ctx, path, Options{CSV1D: true, CSV2D: true, CSVDir: dir})
		var pre *PreconditionError
		require.ErrorAs(t, err, &pre, name)
		assert.Equal(t, "can only process netCDF4", pre.Msg)
		assert.Nil(t, rec)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, name)
	}
}

func TestConvertFileErrors(t *testing.T) {
	ctx := context.Background()
	_, err := ConvertFile(ctx, filepath.Join(t.TempDir(), "missing.nc"), Options{})
	require.ErrorIs(t, err, os.ErrNotExist)

	path := writeFile(t, "text.nc", []byte("just some text, not a netCDF file at all"))
	_, err = ConvertFile(ctx, path, Options{})
	require.ErrorIs(t, err, netcdf.ErrUnknownFormat)
}

func TestConvertFileLogs(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	path := writeFile(t, "sample.nc", h5test.Sample(h5test.FormatV2, false))

	_, err := ConvertFile(context.Background(), path, Options{Log: log})
	require.NoError(t, err)

	var groups []any
	for _, e := range hook.AllEntries() {
		if e.Message == "processed group" {
			groups = append(groups, e.Data["group"])
		}
	}
	assert.Equal(t, []any{"/forecast", "/"}, groups)
}

func TestConvertFileJSON(t *testing.T) {
	b := h5test.NewBuilder(h5test.FormatV2)
	x := b.Dataset(h5test.Dataset{
		Type:  h5test.Int(4, true),
		Dims:  []uint64{2},
		Data:  h5test.LE([]int32{1, 2}),
		Attrs: []h5test.Attr{h5test.Text("units", "m")},
	})
	path := writeFile(t, "small.nc", b.Bytes(b.Group([]h5test.Member{{Name: "x", Address: x}}, h5test.Text("title", "t"))))

	rec, err := ConvertFile(context.Background(), path, Options{})
	require.NoError(t, err)
	out, err := MarshalIndent(rec)
	require.NoError(t, err)
	assert.Equal(t, `{
    "subgroups": {},
    "global_attributes": {
        "title": "t",
        "__source": "small.nc"
    },
    "variables": {
        "x": {
            "units": "m",
            "__size": [
                2
            ]
        }
    },
    "data": {
        "x": [
            1,
            2
        ]
    }
}`, string(out))
}

func TestConvertFileTextVariable(t *testing.T) {
	path := writeFile(t, "sample.nc", h5test.Sample(h5test.FormatV2, false))
	rec, err := ConvertFile(context.Background(), path, Options{})
	require.NoError(t, err)

	_, err = MarshalIndent(rec)
	var typ *TypeError
	require.ErrorAs(t, err, &typ)
	assert.Equal(t, "Object of type bytes is not JSON serializable", typ.Msg)
}

func TestConvertFileTextVariableCSV(t *testing.T) {
	path := writeFile(t, "sample.nc", h5test.Sample(h5test.FormatV2, false))
	_, err := ConvertFile(context.Background(), path, Options{CSV1D: true, CSVDir: t.TempDir()})
	var typ *TypeError
	require.ErrorAs(t, err, &typ)
	assert.Contains(t, typ.Msg, "Mismatch between array dtype (char)")

	rec, err := ConvertFile(context.Background(), path, Options{CSV1D: true, Format: "%s", CSVDir: t.TempDir()})
	require.NoError(t, err)
	data, _ := rec.Data.Get("label")
	content, err := os.ReadFile(data.(CSVRef).Path)
	require.NoError(t, err)
	assert.Equal(t, "b'a'\nb'b'\nb'c'\nb'd'\n", string(content))
}
