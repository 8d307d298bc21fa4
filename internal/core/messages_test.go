package core

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	h5test "github.com/Grismar/netcdfproc/internal/testing"
)

func testSuperblock() *Superblock {
	return &Superblock{Version: 2, OffsetSize: 8, LengthSize: 8, Endianness: binary.LittleEndian}
}

func TestParseDataspace(t *testing.T) {
	sb := testSuperblock()

	t.Run("version 1 simple", func(t *testing.T) {
		data := []byte{1, 2, 0, 0, 0, 0, 0, 0}
		data = binary.LittleEndian.AppendUint64(data, 3)
		data = binary.LittleEndian.AppendUint64(data, 4)

		ds, err := ParseDataspace(data, sb)
		require.NoError(t, err)
		require.Equal(t, DataspaceSimple, ds.Type)
		require.Equal(t, []uint64{3, 4}, ds.Dims)
		n, err := ds.TotalElements()
		require.NoError(t, err)
		require.Equal(t, uint64(12), n)
	})

	t.Run("version 1 rank 0 is scalar", func(t *testing.T) {
		ds, err := ParseDataspace([]byte{1, 0, 0, 0, 0, 0, 0, 0}, sb)
		require.NoError(t, err)
		require.Equal(t, DataspaceScalar, ds.Type)
		n, err := ds.TotalElements()
		require.NoError(t, err)
		require.Equal(t, uint64(1), n)
	})

	t.Run("version 2 unlimited", func(t *testing.T) {
		data := []byte{2, 1, 1, 1}
		data = binary.LittleEndian.AppendUint64(data, 5)
		data = binary.LittleEndian.AppendUint64(data, ^uint64(0))

		ds, err := ParseDataspace(data, sb)
		require.NoError(t, err)
		require.Equal(t, []uint64{5}, ds.Dims)
		require.True(t, ds.IsUnlimited(0))
		require.False(t, ds.IsUnlimited(1))
	})

	t.Run("version 2 null", func(t *testing.T) {
		ds, err := ParseDataspace([]byte{2, 0, 0, 2}, sb)
		require.NoError(t, err)
		n, err := ds.TotalElements()
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ParseDataspace([]byte{1}, sb)
		require.Error(t, err)
		_, err = ParseDataspace([]byte{3, 0, 0, 0}, sb)
		require.ErrorContains(t, err, "unsupported dataspace version")
		_, err = ParseDataspace([]byte{2, 0, 0, 7}, sb)
		require.ErrorContains(t, err, "invalid dataspace type")
		_, err = ParseDataspace([]byte{2, 2, 0, 1, 1, 2}, sb)
		require.ErrorContains(t, err, "truncated")
	})
}

func TestParseDatatype(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		class  DatatypeClass
		size   uint32
		signed bool
		str    string
	}{
		{"int32", h5test.Int(4, true).Raw, ClassFixed, 4, true, "int32"},
		{"uint16", h5test.Int(2, false).Raw, ClassFixed, 2, false, "uint16"},
		{"float32", h5test.Float32().Raw, ClassFloat, 4, false, "float32"},
		{"float64", h5test.Float64().Raw, ClassFloat, 8, false, "float64"},
		{"fixed string", h5test.FixedString(12).Raw, ClassString, 12, false, "string (12 bytes)"},
		{"object reference", h5test.ObjectRef().Raw, ClassReference, 8, false, "reference (8 bytes)"},
		{"vlen string", h5test.VarString().Raw, ClassVarLen, 16, false, "variable-length string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, n, err := ParseDatatypeN(tt.raw)
			require.NoError(t, err)
			require.Equal(t, len(tt.raw), n)
			require.Equal(t, tt.class, dt.Class)
			require.Equal(t, tt.size, dt.Size)
			require.Equal(t, tt.signed, dt.Signed())
			require.Equal(t, tt.str, dt.String())
		})
	}
}

func TestParseDatatypeNested(t *testing.T) {
	t.Run("enum", func(t *testing.T) {
		raw := h5test.Enum("clear", "cloudy", "rain").Raw
		dt, n, err := ParseDatatypeN(raw)
		require.NoError(t, err)
		require.Equal(t, len(raw), n)
		require.Equal(t, ClassEnum, dt.Class)
		require.NotNil(t, dt.Base)
		require.Equal(t, uint32(1), dt.Base.Size)
	})

	t.Run("vlen of references", func(t *testing.T) {
		dt, err := ParseDatatype(h5test.VarLenOf(h5test.ObjectRef()).Raw)
		require.NoError(t, err)
		require.False(t, dt.IsVarString())
		require.True(t, dt.Base.IsObjectReference())
		require.Equal(t, "variable-length sequence of reference (8 bytes)", dt.String())
	})

	t.Run("big endian", func(t *testing.T) {
		dt, err := ParseDatatype(h5test.BigEndianInt(8, true).Raw)
		require.NoError(t, err)
		require.Equal(t, binary.BigEndian, dt.ByteOrder())
	})

	t.Run("array", func(t *testing.T) {
		raw := []byte{0x3A, 0, 0, 0, 24, 0, 0, 0, 2}
		raw = binary.LittleEndian.AppendUint32(raw, 2)
		raw = binary.LittleEndian.AppendUint32(raw, 3)
		raw = append(raw, h5test.Int(4, true).Raw...)
		dt, n, err := ParseDatatypeN(raw)
		require.NoError(t, err)
		require.Equal(t, len(raw), n)
		require.Equal(t, []uint32{2, 3}, dt.ArrayDims)
		require.Equal(t, ClassFixed, dt.Base.Class)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := ParseDatatype([]byte{0x10, 0, 0})
		require.Error(t, err)
		_, err = ParseDatatype(h5test.Float64().Raw[:12])
		require.ErrorContains(t, err, "truncated")
	})
}

func TestParseDataLayout(t *testing.T) {
	sb := testSuperblock()

	t.Run("compact", func(t *testing.T) {
		dl, err := ParseDataLayout([]byte{3, 0, 3, 0, 7, 8, 9}, sb)
		require.NoError(t, err)
		require.Equal(t, LayoutCompact, dl.Class)
		require.Equal(t, []byte{7, 8, 9}, dl.CompactData)
	})

	t.Run("contiguous", func(t *testing.T) {
		data := []byte{3, 1}
		data = binary.LittleEndian.AppendUint64(data, 0x800)
		data = binary.LittleEndian.AppendUint64(data, 96)
		dl, err := ParseDataLayout(data, sb)
		require.NoError(t, err)
		require.Equal(t, uint64(0x800), dl.Address)
		require.Equal(t, uint64(96), dl.Size)
	})

	t.Run("chunked v3", func(t *testing.T) {
		data := []byte{3, 2, 3}
		data = binary.LittleEndian.AppendUint64(data, 0x400)
		data = binary.LittleEndian.AppendUint32(data, 10)
		data = binary.LittleEndian.AppendUint32(data, 20)
		data = binary.LittleEndian.AppendUint32(data, 4)
		dl, err := ParseDataLayout(data, sb)
		require.NoError(t, err)
		require.Equal(t, IndexBTreeV1, dl.Index)
		require.Equal(t, []uint64{10, 20}, dl.ChunkDims)
		require.Equal(t, uint32(4), dl.ElementSize)
		require.Equal(t, uint64(0x400), dl.Address)
	})

	t.Run("chunked v4 filtered single chunk", func(t *testing.T) {
		data := []byte{4, 2, layoutV4Filtered, 2, 2, 16, 0, 8, 0, byte(IndexSingle)}
		data = binary.LittleEndian.AppendUint64(data, 77)
		data = binary.LittleEndian.AppendUint32(data, 0)
		data = binary.LittleEndian.AppendUint64(data, 0x1000)
		dl, err := ParseDataLayout(data, sb)
		require.NoError(t, err)
		require.Equal(t, IndexSingle, dl.Index)
		require.Equal(t, []uint64{16}, dl.ChunkDims)
		require.Equal(t, uint64(77), dl.SingleChunkSize)
		require.Equal(t, uint64(0x1000), dl.Address)
	})

	t.Run("chunked v4 implicit", func(t *testing.T) {
		data := []byte{4, 2, 0, 2, 1, 5, 4, byte(IndexImplicit)}
		data = binary.LittleEndian.AppendUint64(data, 0x2000)
		dl, err := ParseDataLayout(data, sb)
		require.NoError(t, err)
		require.Equal(t, IndexImplicit, dl.Index)
		require.Equal(t, []uint64{5}, dl.ChunkDims)
	})

	t.Run("unknown index", func(t *testing.T) {
		_, err := ParseDataLayout([]byte{4, 2, 0, 2, 1, 5, 4, 9}, sb)
		require.ErrorContains(t, err, "unknown chunk index type")
	})

	t.Run("unsupported version", func(t *testing.T) {
		_, err := ParseDataLayout([]byte{5, 1}, sb)
		require.Error(t, err)
	})
}

func TestParseFillValue(t *testing.T) {
	fv, err := ParseFillValue([]byte{2, 1, 1, 0})
	require.NoError(t, err)
	require.Nil(t, fv.Value)

	fv, err = ParseFillValue([]byte{3, 0x29, 4, 0, 0, 0, 1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, fv.Value)

	fv, err = ParseFillValue([]byte{3, 0x09})
	require.NoError(t, err)
	require.Nil(t, fv.Value)

	fv, err = ParseFillValueOld([]byte{2, 0, 0, 0, 0xAA, 0xBB})
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, fv.Value)

	_, err = ParseFillValue([]byte{9})
	require.Error(t, err)
	_, err = ParseFillValue([]byte{3, 0x20, 8, 0, 0, 0, 1})
	require.ErrorContains(t, err, "truncated")
}

func TestParseFilterPipeline(t *testing.T) {
	t.Run("version 1 pads names and client data", func(t *testing.T) {
		data := []byte{1, 2, 0, 0, 0, 0, 0, 0}
		// deflate, name "deflate\0", one client value padded to two
		data = binary.LittleEndian.AppendUint16(data, 1)
		data = binary.LittleEndian.AppendUint16(data, 8)
		data = binary.LittleEndian.AppendUint16(data, 0)
		data = binary.LittleEndian.AppendUint16(data, 1)
		data = append(data, "deflate\x00"...)
		data = binary.LittleEndian.AppendUint32(data, 6)
		data = binary.LittleEndian.AppendUint32(data, 0)
		// shuffle, no name, two client values
		data = binary.LittleEndian.AppendUint16(data, 2)
		data = binary.LittleEndian.AppendUint16(data, 0)
		data = binary.LittleEndian.AppendUint16(data, 1)
		data = binary.LittleEndian.AppendUint16(data, 2)
		data = binary.LittleEndian.AppendUint32(data, 4)
		data = binary.LittleEndian.AppendUint32(data, 7)

		fp, err := ParseFilterPipeline(data)
		require.NoError(t, err)
		require.Len(t, fp.Filters, 2)
		assert.Equal(t, FilterDeflate, fp.Filters[0].ID)
		assert.Equal(t, "deflate", fp.Filters[0].Name)
		assert.Equal(t, []uint32{6}, fp.Filters[0].ClientData)
		assert.Equal(t, FilterShuffle, fp.Filters[1].ID)
		assert.Equal(t, []uint32{4, 7}, fp.Filters[1].ClientData)
	})

	t.Run("version 2 names only for registered filters", func(t *testing.T) {
		data := []byte{2, 2}
		data = binary.LittleEndian.AppendUint16(data, 1)
		data = binary.LittleEndian.AppendUint16(data, 0)
		data = binary.LittleEndian.AppendUint16(data, 1)
		data = binary.LittleEndian.AppendUint32(data, 4)
		data = binary.LittleEndian.AppendUint16(data, uint16(FilterZstd))
		data = binary.LittleEndian.AppendUint16(data, 4)
		data = binary.LittleEndian.AppendUint16(data, 0)
		data = binary.LittleEndian.AppendUint16(data, 0)
		data = append(data, "zstd"...)

		fp, err := ParseFilterPipeline(data)
		require.NoError(t, err)
		require.Len(t, fp.Filters, 2)
		assert.Equal(t, FilterZstd, fp.Filters[1].ID)
		assert.Equal(t, "zstd", fp.Filters[1].Name)
		assert.Equal(t, "zstd", fp.Filters[1].ID.String())
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := ParseFilterPipeline([]byte{2, 1, 1})
		require.Error(t, err)
	})
}

func TestParseLink(t *testing.T) {
	sb := testSuperblock()

	t.Run("hard link with creation order", func(t *testing.T) {
		data := []byte{1, linkHasOrder}
		data = binary.LittleEndian.AppendUint64(data, 3)
		data = append(data, 4)
		data = append(data, "temp"...)
		data = binary.LittleEndian.AppendUint64(data, 0x1234)

		l, err := ParseLink(data, sb)
		require.NoError(t, err)
		require.Equal(t, "temp", l.Name)
		require.Equal(t, LinkHard, l.Type)
		require.True(t, l.HasOrder)
		require.Equal(t, uint64(3), l.CreationOrder)
		require.Equal(t, uint64(0x1234), l.Address)
	})

	t.Run("soft link", func(t *testing.T) {
		data := []byte{1, linkHasType, byte(LinkSoft), 1, 'x'}
		data = binary.LittleEndian.AppendUint16(data, 5)
		data = append(data, "/a/b/"...)

		l, err := ParseLink(data, sb)
		require.NoError(t, err)
		require.Equal(t, LinkSoft, l.Type)
		require.Equal(t, "/a/b/", l.Target)
		require.False(t, l.HasOrder)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ParseLink([]byte{2, 0}, sb)
		require.ErrorContains(t, err, "unsupported link message version")
		_, err = ParseLink([]byte{1, 0, 9, 'a'}, sb)
		require.ErrorContains(t, err, "link name truncated")
	})
}

func TestParseLinkAndAttributeInfo(t *testing.T) {
	sb := testSuperblock()

	data := []byte{0, 0x03}
	data = binary.LittleEndian.AppendUint64(data, 12)
	data = binary.LittleEndian.AppendUint64(data, 0x100)
	data = binary.LittleEndian.AppendUint64(data, 0x200)
	data = binary.LittleEndian.AppendUint64(data, 0x300)
	li, err := ParseLinkInfo(data, sb)
	require.NoError(t, err)
	require.Equal(t, uint64(12), li.MaxCreationIndex)
	require.Equal(t, uint64(0x100), li.FractalHeap)
	require.Equal(t, uint64(0x200), li.NameIndex)
	require.Equal(t, uint64(0x300), li.CreationIndex)

	data = []byte{0, 0}
	data = binary.LittleEndian.AppendUint64(data, ^uint64(0))
	data = binary.LittleEndian.AppendUint64(data, ^uint64(0))
	ai, err := ParseAttributeInfo(data, sb)
	require.NoError(t, err)
	require.True(t, sb.IsUndefined(ai.FractalHeap))
	require.True(t, sb.IsUndefined(ai.CreationIndex))

	_, err = ParseAttributeInfo([]byte{1, 0}, sb)
	require.Error(t, err)
	_, err = ParseLinkInfo([]byte{0, 0, 1}, sb)
	require.ErrorContains(t, err, "truncated")
}

func TestParseAttribute(t *testing.T) {
	sb := testSuperblock()

	// Version 3: header, encoding, unpadded name/datatype/dataspace, data.
	name := []byte("units\x00")
	dt := h5test.FixedString(3).Raw
	ds := []byte{2, 0, 0, 0}
	data := []byte{3, 0}
	data = binary.LittleEndian.AppendUint16(data, uint16(len(name)))
	data = binary.LittleEndian.AppendUint16(data, uint16(len(dt)))
	data = binary.LittleEndian.AppendUint16(data, uint16(len(ds)))
	data = append(data, 0)
	data = append(data, name...)
	data = append(data, dt...)
	data = append(data, ds...)
	data = append(data, "m/s"...)

	a, err := ParseAttribute(data, sb)
	require.NoError(t, err)
	require.Equal(t, "units", a.Name)
	require.Equal(t, ClassString, a.Datatype.Class)
	require.Equal(t, DataspaceScalar, a.Dataspace.Type)
	require.Equal(t, []byte("m/s"), a.Data)

	t.Run("truncated data", func(t *testing.T) {
		_, err := ParseAttribute(data[:len(data)-1], sb)
		require.ErrorContains(t, err, "data truncated")
	})

	t.Run("committed datatype", func(t *testing.T) {
		shared := append([]byte(nil), data...)
		shared[1] = attrSharedDatatype
		_, err := ParseAttribute(shared, sb)
		require.ErrorContains(t, err, "committed datatypes")
	})
}
