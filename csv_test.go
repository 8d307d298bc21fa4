package netcdfproc

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Grismar/netcdfproc/netcdf"
)

func TestWriteCSV(t *testing.T) {
	ints := &netcdf.Array{Type: netcdf.Int, Shape: []int{2, 3}, Data: []int32{1, -2, 3, 40, 50, 60}}
	floats := &netcdf.Array{Type: netcdf.Double, Shape: []int{3}, Data: []float64{1.75, -0.5, 1e-7}}
	singles := &netcdf.Array{Type: netcdf.Float, Shape: []int{2}, Data: []float32{0.1, 2}}
	unsigned := &netcdf.Array{Type: netcdf.UInt64, Shape: []int{1}, Data: []uint64{math.MaxUint64}}

	tests := []struct {
		name   string
		array  *netcdf.Array
		format string
		want   string
	}{
		{"default 2d", ints, DefaultFormat,
			"1.000000000000000000e+00,-2.000000000000000000e+00,3.000000000000000000e+00\n" +
				"4.000000000000000000e+01,5.000000000000000000e+01,6.000000000000000000e+01\n"},
		{"integers", ints, "%d", "1,-2,3\n40,50,60\n"},
		{"width", ints, "%4d", "   1,  -2,   3\n  40,  50,  60\n"},
		{"left justified", ints, "%-3d", "1  ,-2 ,3  \n40 ,50 ,60 \n"},
		{"row format", ints, "%d;%d;%d", "1;-2;3\n40;50;60\n"},
		{"literals repeat per cell", ints, "<%d>", "<1>,<-2>,<3>\n<40>,<50>,<60>\n"},
		{"percent literal", ints, "%d%%", "1%,-2%,3%\n40%,50%,60%\n"},
		{"hex", ints, "%#x", "0x1,-0x2,0x3\n0x28,0x32,0x3c\n"},
		{"octal", ints, "%#o", "0o1,-0o2,0o3\n0o50,0o62,0o74\n"},
		{"fixed", floats, "%.2f", "1.75\n-0.50\n0.00\n"},
		{"sign", floats, "%+.1e", "+1.8e+00\n-5.0e-01\n+1.0e-07\n"},
		{"general", floats, "%g", "1.75\n-0.5\n1e-07\n"},
		{"truncate", floats, "%d", "1\n0\n0\n"},
		{"repr", floats, "%s", "1.75\n-0.5\n1e-07\n"},
		{"float32 repr", singles, "%s", "0.1\n2.0\n"},
		{"float32 widened", singles, "%.10f", "0.1000000015\n2.0000000000\n"},
		{"length modifier", ints, "%ld", "1,-2,3\n40,50,60\n"},
		{"large unsigned", unsigned, "%d", "18446744073709551615\n"},
		{"large unsigned hex", unsigned, "%x", "ffffffffffffffff\n"},
		{"empty", &netcdf.Array{Type: netcdf.Int, Shape: []int{0}, Data: []int32{}}, "%d", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, tt.array, tt.format))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriteCSVNonFinite(t *testing.T) {
	a := &netcdf.Array{Type: netcdf.Double, Shape: []int{3}, Data: []float64{math.NaN(), math.Inf(1), math.Inf(-1)}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, a, "%.3f"))
	assert.Equal(t, "nan\ninf\n-inf\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, a, "%+6E"))
	assert.Equal(t, "  +NAN\n  +INF\n  -INF\n", buf.String())

	buf.Reset()
	require.ErrorContains(t, WriteCSV(&buf, a, "%d"), "cannot convert float NaN to integer")
}

func TestWriteCSVErrors(t *testing.T) {
	ints := &netcdf.Array{Type: netcdf.Int, Shape: []int{2, 3}, Data: []int32{1, 2, 3, 4, 5, 6}}
	floats := &netcdf.Array{Type: netcdf.Float, Shape: []int{2}, Data: []float32{1, 2}}
	chars := &netcdf.Array{Type: netcdf.CharType, Shape: []int{2}, Data: []netcdf.Char{'a', 'b'}}

	var buf bytes.Buffer
	require.ErrorContains(t, WriteCSV(&buf, ints, "%d,%d"), "fmt has wrong number of % formats: %d,%d")
	require.ErrorContains(t, WriteCSV(&buf, ints, "no conversion"), "wrong number of % formats")
	require.ErrorContains(t, WriteCSV(&buf, ints, "%"), "incomplete format")
	require.ErrorContains(t, WriteCSV(&buf, ints, "%y"), "unsupported format character 'y'")
	require.ErrorContains(t, WriteCSV(&buf, &netcdf.Array{Type: netcdf.Int, Shape: []int{}, Data: []int32{1}}, "%d"),
		"expected 1D or 2D array, got 0D array instead")

	var typ *TypeError
	require.ErrorAs(t, WriteCSV(&buf, floats, "%x"), &typ)
	assert.Equal(t, "%x format: an integer is required, not float", typ.Msg)
	require.ErrorAs(t, WriteCSV(&buf, chars, DefaultFormat), &typ)
	assert.Equal(t, "Mismatch between array dtype (char) and format specifier (%e)", typ.Msg)

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, &netcdf.Array{Type: netcdf.String, Shape: []int{2}, Data: []string{"x", "y"}}, "%s"))
	assert.Equal(t, "x\ny\n", buf.String())
}
