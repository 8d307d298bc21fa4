package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Grismar/netcdfproc/internal/utils"
)

// Dataset bundles the messages of a dataset object header that are needed
// to read its values.
type Dataset struct {
	Address   uint64
	Datatype  *Datatype
	Dataspace *Dataspace
	Layout    *DataLayout
	Filters   *FilterPipeline
	Fill      *FillValue
}

// IsDataset reports whether an object header describes a dataset.
func IsDataset(h *ObjectHeader) bool {
	return h.Find(MsgDataLayout) != nil && h.Find(MsgDatatype) != nil
}

// NewDataset decodes the dataset messages of h.
func NewDataset(h *ObjectHeader, sb *Superblock) (*Dataset, error) {
	d := &Dataset{Address: h.Address}

	dtMsg := h.Find(MsgDatatype)
	dsMsg := h.Find(MsgDataspace)
	dlMsg := h.Find(MsgDataLayout)
	if dtMsg == nil || dsMsg == nil || dlMsg == nil {
		return nil, errors.New("object is not a dataset: datatype, dataspace or layout message missing")
	}
	if dtMsg.IsShared() {
		return nil, errors.New("datasets with committed datatypes are not supported")
	}

	var err error
	if d.Datatype, err = ParseDatatype(dtMsg.Data); err != nil {
		return nil, utils.WrapError("datatype", err)
	}
	if d.Dataspace, err = ParseDataspace(dsMsg.Data, sb); err != nil {
		return nil, utils.WrapError("dataspace", err)
	}
	if d.Layout, err = ParseDataLayout(dlMsg.Data, sb); err != nil {
		return nil, utils.WrapError("data layout", err)
	}
	if m := h.Find(MsgFilterPipeline); m != nil {
		if d.Filters, err = ParseFilterPipeline(m.Data); err != nil {
			return nil, utils.WrapError("filter pipeline", err)
		}
	}
	if m := h.Find(MsgFillValue); m != nil {
		if d.Fill, err = ParseFillValue(m.Data); err != nil {
			return nil, utils.WrapError("fill value", err)
		}
	} else if m := h.Find(MsgFillValueOld); m != nil {
		if d.Fill, err = ParseFillValueOld(m.Data); err != nil {
			return nil, utils.WrapError("fill value", err)
		}
	}
	return d, nil
}

// FillBytes returns the fill value of one element, or nil for the default.
func (d *Dataset) FillBytes() []byte {
	if d.Fill == nil || len(d.Fill.Value) != int(d.Datatype.Size) {
		return nil
	}
	return d.Fill.Value
}

// ReadRaw returns the dataset's elements in row-major order as stored,
// with unallocated regions set to the fill value.
func (d *Dataset) ReadRaw(r io.ReaderAt, sb *Superblock) ([]byte, error) {
	dims := d.Dataspace.Dims
	if d.Dataspace.Type == DataspaceNull {
		return nil, nil
	}
	esize := uint64(d.Datatype.Size)
	size, err := utils.ByteSize(dims, esize, utils.MaxDatasetSize)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	if fill := d.FillBytes(); fill != nil && !allZero(fill) {
		for i := uint64(0); i < size; i += esize {
			copy(out[i:], fill)
		}
	}
	if size == 0 {
		return out, nil
	}

	switch d.Layout.Class {
	case LayoutCompact:
		copy(out, d.Layout.CompactData)
	case LayoutContiguous:
		if sb.IsUndefined(d.Layout.Address) {
			return out, nil
		}
		n := size
		if d.Layout.Size > 0 && d.Layout.Size < n {
			n = d.Layout.Size
		}
		//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
		if _, err := r.ReadAt(out[:n], int64(d.Layout.Address)); err != nil {
			return nil, utils.WrapError("contiguous data read failed", err)
		}
	case LayoutChunked:
		if err := d.readChunked(r, sb, out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%s layout is not supported", d.Layout.Class)
	}
	return out, nil
}

func allZero(b []byte) bool {
	return len(bytes.Trim(b, "\x00")) == 0
}

func (d *Dataset) readChunked(r io.ReaderAt, sb *Superblock, out []byte) error {
	dl := d.Layout
	dims := d.Dataspace.Dims
	if len(dl.ChunkDims) != len(dims) {
		return fmt.Errorf("chunk rank %d does not match dataspace rank %d", len(dl.ChunkDims), len(dims))
	}
	if sb.IsUndefined(dl.Address) {
		return nil
	}
	esize := uint64(d.Datatype.Size)
	chunkBytes, err := utils.ByteSize(dl.ChunkDims, esize, utils.MaxChunkSize)
	if err != nil {
		return utils.WrapError("chunk size", err)
	}

	var chunks []Chunk
	switch dl.Index {
	case IndexBTreeV1:
		if chunks, err = ReadChunkIndex(r, dl.Address, len(dims), sb); err != nil {
			return err
		}
	case IndexSingle:
		c := Chunk{Address: dl.Address, Offset: make([]uint64, len(dims)), FilterMask: dl.SingleChunkMask}
		c.Size = uint32(chunkBytes) //nolint:gosec // G115: bounded by MaxChunkSize
		if dl.SingleChunkSize > 0 {
			c.Size = uint32(dl.SingleChunkSize) //nolint:gosec // G115: chunk sizes fit in uint32
		}
		chunks = []Chunk{c}
	case IndexImplicit:
		chunks = implicitChunks(dl.Address, dims, dl.ChunkDims, chunkBytes)
	default:
		return fmt.Errorf("chunk index type %d is not supported", dl.Index)
	}

	for _, c := range chunks {
		if err := d.readChunk(r, c, chunkBytes, out); err != nil {
			return utils.WrapError(fmt.Sprintf("chunk %v", c.Offset), err)
		}
	}
	return nil
}

func (d *Dataset) readChunk(r io.ReaderAt, c Chunk, chunkBytes uint64, out []byte) error {
	if err := utils.ValidateBufferSize(uint64(c.Size), utils.MaxChunkSize, "chunk"); err != nil {
		return err
	}
	buf := utils.GetBuffer(int(c.Size))
	defer utils.ReleaseBuffer(buf)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(buf, int64(c.Address)); err != nil {
		return utils.WrapError("chunk read failed", err)
	}
	data, err := d.Filters.Apply(buf, c.FilterMask)
	if err != nil {
		return err
	}
	if uint64(len(data)) < chunkBytes {
		return fmt.Errorf("decoded chunk has %d bytes, expected %d", len(data), chunkBytes)
	}
	copyChunk(out, data, c.Offset, d.Layout.ChunkDims, d.Dataspace.Dims, uint64(d.Datatype.Size))
	return nil
}

// implicitChunks enumerates every chunk of an implicit index: all chunks
// are allocated back to back in row-major chunk order.
func implicitChunks(base uint64, dims, cdims []uint64, chunkBytes uint64) []Chunk {
	grid := make([]uint64, len(dims))
	total := uint64(1)
	for i := range dims {
		grid[i] = (dims[i] + cdims[i] - 1) / cdims[i]
		total *= grid[i]
	}
	chunks := make([]Chunk, 0, total)
	idx := make([]uint64, len(dims))
	for n := uint64(0); n < total; n++ {
		off := make([]uint64, len(dims))
		for i := range idx {
			off[i] = idx[i] * cdims[i]
		}
		chunks = append(chunks, Chunk{
			Address: base + n*chunkBytes,
			Size:    uint32(chunkBytes), //nolint:gosec // G115: bounded by MaxChunkSize
			Offset:  off,
		})
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < grid[i] {
				break
			}
			idx[i] = 0
		}
	}
	return chunks
}

// copyChunk copies the part of a chunk that lies inside the dataset into
// dst. Rows along the fastest axis are copied as runs; edge chunks are
// clipped.
func copyChunk(dst, src []byte, off, cdims, dims []uint64, esize uint64) {
	rank := len(dims)
	if rank == 0 {
		copy(dst, src[:esize])
		return
	}
	last := rank - 1
	if off[last] >= dims[last] {
		return
	}
	run := cdims[last]
	if off[last]+run > dims[last] {
		run = dims[last] - off[last]
	}

	cstride := make([]uint64, rank)
	dstride := make([]uint64, rank)
	cstride[last], dstride[last] = 1, 1
	for i := last - 1; i >= 0; i-- {
		cstride[i] = cstride[i+1] * cdims[i+1]
		dstride[i] = dstride[i+1] * dims[i+1]
	}

	idx := make([]uint64, rank)
	for {
		inside := true
		var s, t uint64
		for i := 0; i < last; i++ {
			if off[i]+idx[i] >= dims[i] {
				inside = false
				break
			}
			s += idx[i] * cstride[i]
			t += (off[i] + idx[i]) * dstride[i]
		}
		if inside {
			t += off[last]
			copy(dst[t*esize:(t+run)*esize], src[s*esize:(s+run)*esize])
		}

		i := last - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < cdims[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
