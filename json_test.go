package netcdfproc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Grismar/netcdfproc/netcdf"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{math.Copysign(0, -1), "-0.0"},
		{1, "1.0"},
		{-2.5, "-2.5"},
		{0.1, "0.1"},
		{0.0001, "0.0001"},
		{0.00001, "1e-05"},
		{1.5e-7, "1.5e-07"},
		{123456789012345.0, "123456789012345.0"},
		{1e15, "1000000000000000.0"},
		{1e16, "1e+16"},
		{1.2345e20, "1.2345e+20"},
		{1e100, "1e+100"},
		{float64(float32(0.1)), "0.10000000149011612"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatFloat(tt.in), "%v", tt.in)
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"plain":          `"plain"`,
		`say "hi"`:       `"say \"hi\""`,
		`back\slash`:     `"back\\slash"`,
		"tab\tnew\nline": `"tab\tnew\nline"`,
		"\r\b\f":         `"\r\b\f"`,
		"\x01\x7f":       `"\u0001\u007f"`,
		"°C":             `"\u00b0C"`,
		"µm²":            `"\u00b5m\u00b2"`,
		"\U0001F600":     `"\ud83d\ude00"`,
	}
	for in, want := range tests {
		e := &encoder{}
		e.quote(in)
		assert.Equal(t, want, e.buf.String(), in)
	}
}

func TestMarshalIndent(t *testing.T) {
	sub := &GroupRecord{}
	sub.GlobalAttributes.Set("empty", []float64{})

	rec := &GroupRecord{}
	rec.Subgroups.Set("child", sub)
	rec.GlobalAttributes.Set("scale", float32(0.5))
	rec.GlobalAttributes.Set("ids", []uint16{7, 8})
	rec.GlobalAttributes.Set("missing", math.NaN())

	matrix := &VariableRecord{Size: []int{2, 2}}
	matrix.Attributes.Set("units", "K")
	rec.Variables.Set("m", matrix)
	rec.Variables.Set("s", &VariableRecord{Size: []int{1}})
	rec.Variables.Set("c", &VariableRecord{Size: []int{3}})

	rec.Data.Set("m", Inline{Array: &netcdf.Array{Type: netcdf.Short, Shape: []int{2, 2}, Data: []int16{1, -2, 3, -4}}})
	rec.Data.Set("s", Inline{Array: &netcdf.Array{Type: netcdf.Double, Shape: []int{}, Data: []float64{2}}})
	rec.Data.Set("c", CSVRef{Path: "in.nc.c.csv"})

	out, err := MarshalIndent(rec)
	require.NoError(t, err)
	assert.Equal(t, `{
    "subgroups": {
        "child": {
            "subgroups": {},
            "global_attributes": {
                "empty": []
            },
            "variables": {},
            "data": {}
        }
    },
    "global_attributes": {
        "scale": 0.5,
        "ids": [
            7,
            8
        ],
        "missing": NaN
    },
    "variables": {
        "m": {
            "units": "K",
            "__size": [
                2,
                2
            ]
        },
        "s": {
            "__size": [
                1
            ]
        },
        "c": {
            "__size": [
                3
            ]
        }
    },
    "data": {
        "m": [
            [
                1,
                -2
            ],
            [
                3,
                -4
            ]
        ],
        "s": 2.0,
        "c": "in.nc.c.csv"
    }
}`, string(out))
}

func TestMarshalIndentTypeError(t *testing.T) {
	rec := &GroupRecord{}
	rec.GlobalAttributes.Set("odd", struct{}{})
	_, err := MarshalIndent(rec)
	var typ *TypeError
	require.ErrorAs(t, err, &typ)
	assert.Equal(t, "Object of type struct {} is not JSON serializable", typ.Msg)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{int8(-3), int64(-3)},
		{int16(300), int64(300)},
		{int32(-70000), int64(-70000)},
		{uint8(200), uint64(200)},
		{uint32(4000000000), uint64(4000000000)},
		{uint64(math.MaxUint64), uint64(math.MaxUint64)},
		{float32(1.5), 1.5},
		{"text", "text"},
		{nil, nil},
		{[]int32{1, 2}, []any{int64(1), int64(2)}},
		{[]string{"a", "b"}, []any{"a", "b"}},
		{[]int{1}, []any{int64(1)}},
		{&netcdf.Array{Type: netcdf.UInt64, Shape: []int{2, 0}, Data: []uint64{}}, []any{[]any{}, []any{}}},
		{&netcdf.Array{Type: netcdf.Int, Shape: []int{}, Data: []int32{42}}, int64(42)},
		{&netcdf.Array{Type: netcdf.String, Shape: []int{2}, Data: []string{"x", "y"}}, []any{"x", "y"}},
		{&netcdf.Array{Type: netcdf.Double, Shape: []int{}, Data: []float64{}}, nil},
	}
	for _, tt := range tests {
		got, err := Coerce(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%#v", tt.in)
	}

	_, err := Coerce(&netcdf.Array{Type: netcdf.CharType, Shape: []int{1}, Data: []netcdf.Char{'a'}})
	var typ *TypeError
	require.ErrorAs(t, err, &typ)
	_, err = Coerce(map[string]int{})
	require.ErrorAs(t, err, &typ)
}
