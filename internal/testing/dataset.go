package testing

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/zlib"
)

// Layout is the storage layout of a built dataset.
type Layout int

// Layouts.
const (
	Contiguous Layout = iota
	Compact
	Chunked
)

// Dataset describes a dataset to write. Nil Dims means a scalar; Data
// holds every element in row-major order.
type Dataset struct {
	Type    Type
	Dims    []uint64
	MaxDims []uint64
	Data    []byte
	Fill    []byte

	Layout  Layout
	Chunk   []uint64
	Shuffle bool
	Deflate bool
	// Unallocated leaves contiguous storage undefined, so readers return
	// the fill value.
	Unallocated bool

	Attrs []Attr
}

// Dataset writes a dataset and returns its header address.
func (b *Builder) Dataset(d Dataset) uint64 {
	msgs := []message{
		{typ: 0x01, data: b.dataspace(d.Dims, d.MaxDims)},
		{typ: 0x03, data: d.Type.Raw},
		{typ: 0x05, data: fillValue(d.Fill)},
	}
	switch d.Layout {
	case Compact:
		layout := []byte{3, 0}
		layout = binary.LittleEndian.AppendUint16(layout, uint16(len(d.Data))) //nolint:gosec // G115: compact data is small
		msgs = append(msgs, message{typ: 0x08, data: append(layout, d.Data...)})
	case Contiguous:
		addr := Undefined
		if !d.Unallocated && len(d.Data) > 0 {
			addr = b.write(d.Data)
		}
		layout := []byte{3, 1}
		layout = appendAddr(layout, addr)
		layout = binary.LittleEndian.AppendUint64(layout, uint64(len(d.Data)))
		msgs = append(msgs, message{typ: 0x08, data: layout})
	case Chunked:
		msgs = append(msgs, message{typ: 0x08, data: b.chunked(d)})
		if fp := filterPipeline(d); fp != nil {
			msgs = append(msgs, message{typ: 0x0B, data: fp})
		}
	}
	for _, a := range d.Attrs {
		msgs = append(msgs, message{typ: 0x0C, data: b.attribute(a)})
	}
	return b.header(msgs)
}

// fillValue encodes a version 3 fill value message.
func fillValue(v []byte) []byte {
	if v == nil {
		return []byte{3, 0x09}
	}
	out := []byte{3, 0x29}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(v))) //nolint:gosec // G115: fill values are small
	return append(out, v...)
}

func filterPipeline(d Dataset) []byte {
	var n byte
	var out []byte
	if d.Shuffle {
		n++
		out = binary.LittleEndian.AppendUint16(out, 2)
		out = binary.LittleEndian.AppendUint16(out, 1)
		out = binary.LittleEndian.AppendUint16(out, 1)
		out = binary.LittleEndian.AppendUint32(out, uint32(d.Type.Size)) //nolint:gosec // G115: element sizes are small
	}
	if d.Deflate {
		n++
		out = binary.LittleEndian.AppendUint16(out, 1)
		out = binary.LittleEndian.AppendUint16(out, 1)
		out = binary.LittleEndian.AppendUint16(out, 1)
		out = binary.LittleEndian.AppendUint32(out, 6)
	}
	if n == 0 {
		return nil
	}
	return append([]byte{2, n}, out...)
}

// chunked writes every chunk and a one-level chunk B-tree and returns the
// version 3 layout message.
func (b *Builder) chunked(d Dataset) []byte {
	rank := len(d.Dims)
	esize := d.Type.Size
	grid := make([]uint64, rank)
	total := 1
	for i := range grid {
		grid[i] = (d.Dims[i] + d.Chunk[i] - 1) / d.Chunk[i]
		total *= int(grid[i]) //nolint:gosec // G115: test grids are small
	}

	type entry struct {
		offset []uint64
		addr   uint64
		size   int
	}
	var entries []entry
	idx := make([]uint64, rank)
	for n := 0; n < total; n++ {
		off := make([]uint64, rank)
		for i := range idx {
			off[i] = idx[i] * d.Chunk[i]
		}
		raw := extractChunk(d.Data, d.Dims, d.Chunk, off, esize)
		if d.Shuffle {
			raw = shuffle(raw, esize)
		}
		if d.Deflate {
			raw = deflate(raw)
		}
		entries = append(entries, entry{offset: off, addr: b.write(raw), size: len(raw)})
		for i := rank - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < grid[i] {
				break
			}
			idx[i] = 0
		}
	}

	key := func(size int, off []uint64) []byte {
		k := binary.LittleEndian.AppendUint32(nil, uint32(size)) //nolint:gosec // G115: test chunks are small
		k = binary.LittleEndian.AppendUint32(k, 0)
		for _, o := range off {
			k = binary.LittleEndian.AppendUint64(k, o)
		}
		return binary.LittleEndian.AppendUint64(k, 0)
	}
	tree := []byte("TREE")
	tree = append(tree, 1, 0)
	tree = binary.LittleEndian.AppendUint16(tree, uint16(len(entries))) //nolint:gosec // G115: test trees are small
	tree = appendAddr(tree, Undefined)
	tree = appendAddr(tree, Undefined)
	for _, e := range entries {
		tree = append(tree, key(e.size, e.offset)...)
		tree = appendAddr(tree, e.addr)
	}
	tree = append(tree, key(0, d.Dims)...)
	treeAddr := b.write(tree)

	layout := []byte{3, 2, byte(rank + 1)}
	layout = appendAddr(layout, treeAddr)
	for _, c := range d.Chunk {
		layout = binary.LittleEndian.AppendUint32(layout, uint32(c)) //nolint:gosec // G115: test chunks are small
	}
	return binary.LittleEndian.AppendUint32(layout, uint32(esize)) //nolint:gosec // G115: element sizes are small
}

// extractChunk copies the elements of the chunk at off out of data,
// padding parts outside the dataset with zeros.
func extractChunk(data []byte, dims, cdims, off []uint64, esize int) []byte {
	n := 1
	for _, c := range cdims {
		n *= int(c) //nolint:gosec // G115: test chunks are small
	}
	out := make([]byte, n*esize)
	rank := len(dims)
	local := make([]uint64, rank)
	for e := 0; e < n; e++ {
		inside := true
		flat := uint64(0)
		for i := 0; i < rank; i++ {
			g := off[i] + local[i]
			if g >= dims[i] {
				inside = false
				break
			}
			flat = flat*dims[i] + g
		}
		if inside {
			src := int(flat) * esize //nolint:gosec // G115: test data is small
			copy(out[e*esize:(e+1)*esize], data[src:src+esize])
		}
		for i := rank - 1; i >= 0; i-- {
			local[i]++
			if local[i] < cdims[i] {
				break
			}
			local[i] = 0
		}
	}
	return out
}

func shuffle(data []byte, esize int) []byte {
	n := len(data) / esize
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for j := 0; j < esize; j++ {
			out[j*n+i] = data[i*esize+j]
		}
	}
	return out
}

func deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
