package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Grismar/netcdfproc/internal/utils"
)

// DecodeValues converts n raw elements of type dt into a typed Go slice:
//
//	fixed-point     []int8 ... []uint64 by size and sign
//	floating-point  []float32 or []float64
//	string          []string, padding removed
//	reference       []uint64 object addresses
//	variable-length []string for strings, otherwise []any of decoded slices
//
// Enums decode as their base integer type. heap resolves variable-length
// elements and may be nil when dt has none.
func DecodeValues(raw []byte, dt *Datatype, n uint64, heap *GlobalHeap, sb *Superblock) (any, error) {
	need, err := utils.SafeMultiply(n, uint64(dt.Size))
	if err != nil {
		return nil, err
	}
	if uint64(len(raw)) < need {
		return nil, fmt.Errorf("%d bytes for %d %s elements", len(raw), n, dt)
	}
	count := int(n) //nolint:gosec // G115: bounded by len(raw)

	switch dt.Class {
	case ClassFixed, ClassBitfield:
		return decodeInts(raw, count, int(dt.Size), dt.Signed(), dt.ByteOrder())
	case ClassEnum:
		if dt.Base == nil || dt.Base.Class != ClassFixed {
			return nil, fmt.Errorf("enum with %v base type is not supported", dt.Base)
		}
		return decodeInts(raw, count, int(dt.Base.Size), dt.Base.Signed(), dt.Base.ByteOrder())
	case ClassFloat:
		return decodeFloats(raw, count, int(dt.Size), dt.ByteOrder())
	case ClassString:
		out := make([]string, count)
		size := int(dt.Size)
		for i := range out {
			out[i] = trimString(raw[i*size:(i+1)*size], dt.Padding())
		}
		return out, nil
	case ClassReference:
		if !dt.IsObjectReference() {
			return nil, errors.New("region references are not supported")
		}
		out := make([]uint64, count)
		size := int(dt.Size)
		for i := range out {
			out[i] = utils.DecodeUint(raw[i*size:], size, binary.LittleEndian)
		}
		return out, nil
	case ClassVarLen:
		return decodeVarLen(raw, dt, count, heap, sb)
	}
	return nil, fmt.Errorf("datatype %s is not supported", dt)
}

func decodeInts(raw []byte, n, size int, signed bool, order binary.ByteOrder) (any, error) {
	switch size {
	case 1:
		if signed {
			out := make([]int8, n)
			for i := range out {
				out[i] = int8(raw[i])
			}
			return out, nil
		}
		return append([]uint8(nil), raw[:n]...), nil
	case 2:
		if signed {
			out := make([]int16, n)
			for i := range out {
				out[i] = int16(order.Uint16(raw[2*i:])) //nolint:gosec // G115: two's complement reinterpretation
			}
			return out, nil
		}
		out := make([]uint16, n)
		for i := range out {
			out[i] = order.Uint16(raw[2*i:])
		}
		return out, nil
	case 4:
		if signed {
			out := make([]int32, n)
			for i := range out {
				out[i] = int32(order.Uint32(raw[4*i:])) //nolint:gosec // G115: two's complement reinterpretation
			}
			return out, nil
		}
		out := make([]uint32, n)
		for i := range out {
			out[i] = order.Uint32(raw[4*i:])
		}
		return out, nil
	case 8:
		if signed {
			out := make([]int64, n)
			for i := range out {
				out[i] = int64(order.Uint64(raw[8*i:])) //nolint:gosec // G115: two's complement reinterpretation
			}
			return out, nil
		}
		out := make([]uint64, n)
		for i := range out {
			out[i] = order.Uint64(raw[8*i:])
		}
		return out, nil
	}
	return nil, fmt.Errorf("%d-byte integers are not supported", size)
}

func decodeFloats(raw []byte, n, size int, order binary.ByteOrder) (any, error) {
	switch size {
	case 4:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(order.Uint32(raw[4*i:]))
		}
		return out, nil
	case 8:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%d-byte floats are not supported", size)
}

func trimString(b []byte, pad uint8) string {
	switch pad {
	case PadNullTerm:
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
	case PadNull:
		b = bytes.TrimRight(b, "\x00")
	case PadSpace:
		b = bytes.TrimRight(b, " ")
	}
	return string(b)
}

// decodeVarLen resolves variable-length elements: a 4-byte length followed
// by a global heap ID. Strings count bytes, sequences count base elements.
func decodeVarLen(raw []byte, dt *Datatype, n int, heap *GlobalHeap, sb *Superblock) (any, error) {
	if heap == nil {
		return nil, fmt.Errorf("%s needs the global heap", dt)
	}
	size := int(dt.Size)
	strs := dt.IsVarString()
	var (
		outStr []string
		outSeq []any
	)
	if strs {
		outStr = make([]string, n)
	} else {
		outSeq = make([]any, n)
	}

	for i := 0; i < n; i++ {
		elem := raw[i*size : (i+1)*size]
		length := uint64(binary.LittleEndian.Uint32(elem))
		id := ParseHeapID(elem[4:], sb)

		var data []byte
		if length > 0 && id.Collection != 0 && !sb.IsUndefined(id.Collection) {
			obj, err := heap.Object(id)
			if err != nil {
				return nil, err
			}
			data = obj
		}
		if strs {
			if length > uint64(len(data)) {
				length = uint64(len(data))
			}
			outStr[i] = trimString(data[:length], dt.Padding())
			continue
		}
		if dt.Base == nil {
			return nil, errors.New("variable-length sequence without base type")
		}
		v, err := DecodeValues(data, dt.Base, length, heap, sb)
		if err != nil {
			return nil, err
		}
		outSeq[i] = v
	}
	if strs {
		return outStr, nil
	}
	return outSeq, nil
}
