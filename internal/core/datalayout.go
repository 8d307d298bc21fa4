package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// LayoutClass is the raw data storage class of a dataset.
type LayoutClass uint8

// Layout classes.
const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// String returns the layout class name.
func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout(%d)", uint8(c))
}

// ChunkIndex identifies how the chunks of a dataset are located.
type ChunkIndex uint8

// Chunk index types. Layouts before version 4 always use a version 1 B-tree.
const (
	IndexBTreeV1    ChunkIndex = 0
	IndexSingle     ChunkIndex = 1
	IndexImplicit   ChunkIndex = 2
	IndexFixedArray ChunkIndex = 3
	IndexExtensible ChunkIndex = 4
	IndexBTreeV2    ChunkIndex = 5
)

// layoutV4Filtered is the version 4 chunked-layout flag for a filtered
// single chunk.
const layoutV4Filtered = 0x02

// DataLayout is a decoded data layout message (0x0008).
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Address is the contiguous data address or the chunk index address.
	Address uint64
	// Size is the byte size of contiguous storage.
	Size        uint64
	CompactData []byte

	// ChunkDims excludes the trailing element-size dimension.
	ChunkDims   []uint64
	ElementSize uint32
	Index       ChunkIndex

	// Filtered single-chunk storage records the stored size and filter mask.
	SingleChunkSize uint64
	SingleChunkMask uint32
}

// ParseDataLayout decodes a data layout message, versions 1 through 4.
func ParseDataLayout(data []byte, sb *Superblock) (*DataLayout, error) {
	if len(data) < 2 {
		return nil, errors.New("data layout message too short")
	}
	dl := &DataLayout{Version: data[0]}
	var err error
	switch dl.Version {
	case 1, 2:
		err = dl.parseV1(data, sb)
	case 3, 4:
		dl.Class = LayoutClass(data[1])
		err = dl.parseV3(data[2:], sb)
	default:
		return nil, fmt.Errorf("unsupported data layout version: %d", dl.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("%s layout v%d: %w", dl.Class, dl.Version, err)
	}
	return dl, nil
}

// parseV1 handles the version 1 and 2 layout: version, rank, class, 5 reserved
// bytes, an address unless compact, rank 4-byte dimensions, then the compact
// payload.
func (dl *DataLayout) parseV1(data []byte, sb *Superblock) error {
	if len(data) < 8 {
		return errors.New("truncated")
	}
	rank := int(data[1])
	dl.Class = LayoutClass(data[2])
	pos := 8
	o := int(sb.OffsetSize)
	if dl.Class != LayoutCompact {
		if len(data) < pos+o {
			return errors.New("address truncated")
		}
		dl.Address = sb.ReadAddress(data[pos:])
		pos += o
	}
	if len(data) < pos+4*rank {
		return errors.New("dimensions truncated")
	}
	dims := make([]uint64, rank)
	for i := range dims {
		dims[i] = uint64(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
	}
	switch dl.Class {
	case LayoutChunked:
		dl.setChunkDims(dims)
	case LayoutCompact:
		if len(data) < pos+4 {
			return errors.New("compact size truncated")
		}
		n := int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
		if len(data) < pos+n {
			return errors.New("compact data truncated")
		}
		dl.CompactData = data[pos : pos+n]
	case LayoutContiguous:
		size := uint64(1)
		for _, d := range dims {
			size *= d
		}
		dl.Size = size
	}
	return nil
}

func (dl *DataLayout) parseV3(p []byte, sb *Superblock) error {
	o, l := int(sb.OffsetSize), int(sb.LengthSize)
	switch dl.Class {
	case LayoutCompact:
		if len(p) < 2 {
			return errors.New("compact size truncated")
		}
		n := int(binary.LittleEndian.Uint16(p))
		if len(p) < 2+n {
			return errors.New("compact data truncated")
		}
		dl.CompactData = p[2 : 2+n]
	case LayoutContiguous:
		if len(p) < o+l {
			return errors.New("truncated")
		}
		dl.Address = sb.ReadAddress(p)
		dl.Size = sb.ReadLength(p[o:])
	case LayoutChunked:
		if dl.Version == 3 {
			return dl.parseChunkedV3(p, sb)
		}
		return dl.parseChunkedV4(p, sb)
	default:
		return errors.New("unsupported layout class")
	}
	return nil
}

// parseChunkedV3: rank (1), B-tree address, rank 4-byte dimensions whose
// last entry is the element size.
func (dl *DataLayout) parseChunkedV3(p []byte, sb *Superblock) error {
	o := int(sb.OffsetSize)
	if len(p) < 1+o {
		return errors.New("truncated")
	}
	rank := int(p[0])
	dl.Address = sb.ReadAddress(p[1:])
	pos := 1 + o
	if len(p) < pos+4*rank {
		return errors.New("chunk dimensions truncated")
	}
	dims := make([]uint64, rank)
	for i := range dims {
		dims[i] = uint64(binary.LittleEndian.Uint32(p[pos:]))
		pos += 4
	}
	dl.setChunkDims(dims)
	dl.Index = IndexBTreeV1
	return nil
}

// parseChunkedV4: flags, rank, dimension width, dimensions, index type,
// index properties, index address.
func (dl *DataLayout) parseChunkedV4(p []byte, sb *Superblock) error {
	if len(p) < 3 {
		return errors.New("truncated")
	}
	flags, rank, width := p[0], int(p[1]), int(p[2])
	pos := 3
	if width < 1 || width > 8 || len(p) < pos+rank*width+1 {
		return errors.New("chunk dimensions truncated")
	}
	dims := make([]uint64, rank)
	for i := range dims {
		var v uint64
		for b := 0; b < width; b++ {
			v |= uint64(p[pos+b]) << (8 * uint(b))
		}
		dims[i] = v
		pos += width
	}
	dl.setChunkDims(dims)
	dl.Index = ChunkIndex(p[pos])
	pos++

	switch dl.Index {
	case IndexSingle:
		if flags&layoutV4Filtered != 0 {
			l := int(sb.LengthSize)
			if len(p) < pos+l+4 {
				return errors.New("single chunk info truncated")
			}
			dl.SingleChunkSize = sb.ReadLength(p[pos:])
			dl.SingleChunkMask = binary.LittleEndian.Uint32(p[pos+l:])
			pos += l + 4
		}
	case IndexImplicit:
	case IndexFixedArray:
		pos++
	case IndexExtensible:
		pos += 5
	case IndexBTreeV2:
		pos += 6
	default:
		return fmt.Errorf("unknown chunk index type: %d", dl.Index)
	}
	if len(p) < pos+int(sb.OffsetSize) {
		return errors.New("chunk index address truncated")
	}
	dl.Address = sb.ReadAddress(p[pos:])
	return nil
}

func (dl *DataLayout) setChunkDims(dims []uint64) {
	if len(dims) == 0 {
		return
	}
	dl.ChunkDims = dims[:len(dims)-1]
	dl.ElementSize = uint32(dims[len(dims)-1]) //nolint:gosec // G115: element sizes fit in uint32
}
