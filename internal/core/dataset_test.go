package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	h5test "github.com/Grismar/netcdfproc/internal/testing"
)

// openBuilt returns a reader and superblock for a built file.
func openBuilt(t *testing.T, data []byte) (*h5test.MockReaderAt, *Superblock) {
	t.Helper()
	r := h5test.NewMockReaderAt(data)
	sb, err := ReadSuperblock(r, 0)
	require.NoError(t, err)
	return r, sb
}

func TestFindSignature(t *testing.T) {
	b := h5test.NewBuilder(h5test.FormatV2)
	b.UserBlock = 1024
	data := b.Bytes(b.Group(nil))

	r := h5test.NewMockReaderAt(data)
	off, err := FindSignature(r, r.Size())
	require.NoError(t, err)
	require.Equal(t, int64(1024), off)

	_, err = FindSignature(h5test.NewMockReaderAt(make([]byte, 600)), 600)
	require.ErrorIs(t, err, ErrNoSignature)
}

func TestReadSuperblock(t *testing.T) {
	for _, format := range []h5test.Format{h5test.FormatV0, h5test.FormatV2} {
		b := h5test.NewBuilder(format)
		root := b.Group(nil)
		r, sb := openBuilt(t, b.Bytes(root))

		require.Equal(t, uint8(8), sb.OffsetSize)
		require.Equal(t, uint8(8), sb.LengthSize)
		require.Equal(t, root, sb.RootGroup)

		h, err := ReadObjectHeader(r, sb.RootGroup, sb)
		require.NoError(t, err)
		if format == h5test.FormatV0 {
			require.Equal(t, uint8(0), sb.Version)
			require.Equal(t, uint8(1), h.Version)
			require.NotNil(t, h.Find(MsgSymbolTable))
		} else {
			require.Equal(t, uint8(2), sb.Version)
			require.Equal(t, uint8(2), h.Version)
			require.NotNil(t, h.Find(MsgLinkInfo))
			require.NotNil(t, h.Find(MsgGroupInfo))
		}
	}

	_, err := ReadSuperblock(h5test.NewMockReaderAt(make([]byte, 200)), 0)
	require.ErrorContains(t, err, "invalid HDF5 signature")
}

func TestReadObjectHeaderInvalid(t *testing.T) {
	b := h5test.NewBuilder(h5test.FormatV2)
	r, sb := openBuilt(t, b.Bytes(b.Group(nil)))
	_, err := ReadObjectHeader(r, 0, sb)
	require.ErrorContains(t, err, "invalid object header")
}

func readDataset(t *testing.T, format h5test.Format, d h5test.Dataset) ([]byte, *Dataset) {
	t.Helper()
	b := h5test.NewBuilder(format)
	addr := b.Dataset(d)
	r, sb := openBuilt(t, b.Bytes(b.Group([]h5test.Member{{Name: "v", Address: addr}})))

	h, err := ReadObjectHeader(r, addr, sb)
	require.NoError(t, err)
	require.True(t, IsDataset(h))
	ds, err := NewDataset(h, sb)
	require.NoError(t, err)
	raw, err := ds.ReadRaw(r, sb)
	require.NoError(t, err)
	return raw, ds
}

func TestDatasetReadRaw(t *testing.T) {
	values := make([]int32, 35)
	for i := range values {
		values[i] = int32(i * 3)
	}
	data := h5test.LE(values)

	tests := []struct {
		name string
		d    h5test.Dataset
	}{
		{"contiguous", h5test.Dataset{Type: h5test.Int(4, true), Dims: []uint64{5, 7}, Data: data}},
		{"compact", h5test.Dataset{Type: h5test.Int(4, true), Dims: []uint64{5, 7}, Data: data, Layout: h5test.Compact}},
		{"chunked edge chunks", h5test.Dataset{
			Type: h5test.Int(4, true), Dims: []uint64{5, 7}, Data: data,
			Layout: h5test.Chunked, Chunk: []uint64{2, 3},
		}},
		{"chunked shuffle deflate", h5test.Dataset{
			Type: h5test.Int(4, true), Dims: []uint64{5, 7}, Data: data,
			Layout: h5test.Chunked, Chunk: []uint64{4, 4}, Shuffle: true, Deflate: true,
		}},
	}
	for _, format := range []h5test.Format{h5test.FormatV0, h5test.FormatV2} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				raw, ds := readDataset(t, format, tt.d)
				require.Equal(t, data, raw)
				require.Equal(t, []uint64{5, 7}, ds.Dataspace.Dims)

				v, err := DecodeValues(raw, ds.Datatype, 35, nil, nil)
				require.NoError(t, err)
				require.Equal(t, values, v)
			})
		}
	}
}

func TestDatasetFillValue(t *testing.T) {
	fill := h5test.Float32Bits(-999)
	raw, ds := readDataset(t, h5test.FormatV2, h5test.Dataset{
		Type: h5test.Float32(), Dims: []uint64{3}, Data: make([]byte, 12), Fill: fill, Unallocated: true,
	})
	require.Equal(t, fill, ds.FillBytes())

	v, err := DecodeValues(raw, ds.Datatype, 3, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []float32{-999, -999, -999}, v)
}

func TestDatasetScalar(t *testing.T) {
	raw, ds := readDataset(t, h5test.FormatV2, h5test.Dataset{Type: h5test.Float64(), Data: h5test.LE([]float64{2.5})})
	require.Equal(t, DataspaceScalar, ds.Dataspace.Type)

	v, err := DecodeValues(raw, ds.Datatype, 1, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{2.5}, v)
}

func TestImplicitChunks(t *testing.T) {
	chunks := implicitChunks(100, []uint64{5}, []uint64{2}, 8)
	require.Len(t, chunks, 3)
	require.Equal(t, uint64(116), chunks[2].Address)
	require.Equal(t, []uint64{4}, chunks[2].Offset)
}

func TestCopyChunkClipsEdges(t *testing.T) {
	dst := make([]byte, 6)
	copyChunk(dst, []byte{1, 2, 3, 4}, []uint64{1, 2}, []uint64{2, 2}, []uint64{2, 3}, 1)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 1}, dst)
}
