package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/Grismar/netcdfproc/internal/utils"
)

// FilterID identifies an HDF5 filter.
type FilterID uint16

// Filters known to the reader. Zstandard is the registered third-party
// filter netCDF-C uses for nc_def_var_zstandard.
const (
	FilterDeflate     FilterID = 1
	FilterShuffle     FilterID = 2
	FilterFletcher32  FilterID = 3
	FilterSZIP        FilterID = 4
	FilterNBit        FilterID = 5
	FilterScaleOffset FilterID = 6
	FilterZstd        FilterID = 32015
)

// String returns the filter name.
func (id FilterID) String() string {
	switch id {
	case FilterDeflate:
		return "deflate"
	case FilterShuffle:
		return "shuffle"
	case FilterFletcher32:
		return "fletcher32"
	case FilterSZIP:
		return "szip"
	case FilterNBit:
		return "nbit"
	case FilterScaleOffset:
		return "scaleoffset"
	case FilterZstd:
		return "zstd"
	}
	return fmt.Sprintf("filter-%d", uint16(id))
}

// filterOptional marks a filter that may be skipped when it fails.
const filterOptional = 0x0001

// Filter is one stage of a filter pipeline.
type Filter struct {
	ID         FilterID
	Flags      uint16
	Name       string
	ClientData []uint32
}

// FilterPipeline is a decoded filter pipeline message (0x000B).
type FilterPipeline struct {
	Version uint8
	Filters []Filter
}

// ParseFilterPipeline decodes a filter pipeline message.
//
// Version 1 has 6 reserved bytes after the count, always carries a name
// length, and pads names and client data to 8 bytes. Version 2 only stores
// a name for filter IDs of 256 and above and does not pad.
func ParseFilterPipeline(data []byte) (*FilterPipeline, error) {
	if len(data) < 2 {
		return nil, errors.New("filter pipeline message too short")
	}
	fp := &FilterPipeline{Version: data[0]}
	count := int(data[1])

	pos := 2
	switch fp.Version {
	case 1:
		pos += 6
	case 2:
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version: %d", fp.Version)
	}

	for i := 0; i < count; i++ {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("filter pipeline truncated at filter %d", i)
		}
		f := Filter{ID: FilterID(binary.LittleEndian.Uint16(data[pos:]))}
		pos += 2

		nameLen := 0
		if fp.Version == 1 || f.ID >= 256 {
			if pos+2 > len(data) {
				return nil, fmt.Errorf("filter %d truncated", i)
			}
			nameLen = int(binary.LittleEndian.Uint16(data[pos:]))
			pos += 2
		}
		if pos+4 > len(data) {
			return nil, fmt.Errorf("filter %d truncated", i)
		}
		f.Flags = binary.LittleEndian.Uint16(data[pos:])
		nvals := int(binary.LittleEndian.Uint16(data[pos+2:]))
		pos += 4

		if nameLen > 0 {
			padded := nameLen
			if fp.Version == 1 {
				padded = (nameLen + 7) &^ 7
			}
			if pos+padded > len(data) {
				return nil, fmt.Errorf("filter %d name truncated", i)
			}
			f.Name = string(bytes.TrimRight(data[pos:pos+nameLen], "\x00"))
			pos += padded
		}

		if pos+4*nvals > len(data) {
			return nil, fmt.Errorf("filter %d client data truncated", i)
		}
		f.ClientData = make([]uint32, nvals)
		for j := range f.ClientData {
			f.ClientData[j] = binary.LittleEndian.Uint32(data[pos:])
			pos += 4
		}
		if fp.Version == 1 && nvals%2 == 1 {
			pos += 4
		}
		fp.Filters = append(fp.Filters, f)
	}
	return fp, nil
}

// Apply reverses the pipeline on one chunk. Filters run in reverse order;
// bit i of mask set means filter i was skipped when the chunk was written.
func (fp *FilterPipeline) Apply(data []byte, mask uint32) ([]byte, error) {
	if fp == nil {
		return data, nil
	}
	out := data
	for i := len(fp.Filters) - 1; i >= 0; i-- {
		if i < 32 && mask&(1<<uint(i)) != 0 {
			continue
		}
		f := fp.Filters[i]
		res, err := f.decode(out)
		if err != nil {
			if f.Flags&filterOptional != 0 {
				continue
			}
			return nil, fmt.Errorf("filter %s: %w", f.ID, err)
		}
		out = res
	}
	return out, nil
}

func (f Filter) decode(data []byte) ([]byte, error) {
	switch f.ID {
	case FilterDeflate:
		return inflate(data)
	case FilterZstd:
		return unzstd(data)
	case FilterShuffle:
		size := 0
		if len(f.ClientData) > 0 {
			size = int(f.ClientData[0])
		}
		return unshuffle(data, size)
	case FilterFletcher32:
		// The checksum is stripped, not verified.
		if len(data) < 4 {
			return nil, errors.New("chunk too short for fletcher32 checksum")
		}
		return data[:len(data)-4], nil
	}
	return nil, fmt.Errorf("unsupported filter %s", f.ID)
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, utils.WrapError("zlib header", err)
	}
	defer func() { _ = zr.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(zr, utils.MaxChunkSize+1)); err != nil {
		return nil, utils.WrapError("inflate", err)
	}
	if buf.Len() > utils.MaxChunkSize {
		return nil, fmt.Errorf("inflated chunk exceeds %d bytes", utils.MaxChunkSize)
	}
	return buf.Bytes(), nil
}

// zstdDecoder is shared; DecodeAll is safe for concurrent use.
var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(utils.MaxChunkSize))

func unzstd(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, utils.WrapError("zstd", err)
	}
	return out, nil
}

// unshuffle interleaves the byte planes [b0 b0 ...][b1 b1 ...] back into
// elements. Trailing bytes that do not form a whole element are copied as is.
func unshuffle(data []byte, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid shuffle element size: %d", size)
	}
	if size == 1 {
		return data, nil
	}
	n := len(data) / size
	out := make([]byte, len(data))
	for b := 0; b < size; b++ {
		plane := data[b*n : (b+1)*n]
		for e, v := range plane {
			out[e*size+b] = v
		}
	}
	copy(out[n*size:], data[n*size:])
	return out, nil
}
