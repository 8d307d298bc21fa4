package core

import (
	"fmt"

	"github.com/Grismar/netcdfproc/internal/utils"
)

// DataspaceType distinguishes scalar, simple and null dataspaces.
type DataspaceType uint8

// Dataspace types.
const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Unlimited is the maximum dimension size HDF5 stores for an extendible axis.
const Unlimited = ^uint64(0)

// Dataspace is a decoded dataspace message (0x0001).
type Dataspace struct {
	Version uint8
	Type    DataspaceType
	Dims    []uint64
	MaxDims []uint64
}

// TotalElements returns the number of elements the dataspace selects.
// Scalars have one element, null dataspaces none.
func (ds *Dataspace) TotalElements() (uint64, error) {
	switch ds.Type {
	case DataspaceNull:
		return 0, nil
	case DataspaceScalar:
		return 1, nil
	}
	return utils.ElementCount(ds.Dims)
}

// IsUnlimited reports whether axis i can grow without bound.
func (ds *Dataspace) IsUnlimited(i int) bool {
	return i < len(ds.MaxDims) && ds.MaxDims[i] == Unlimited
}

// ParseDataspace decodes a dataspace message.
// Version 1: version, rank, flags, reserved (5), dims, [max dims].
// Version 2: version, rank, flags, type, dims, [max dims].
// Sizes are LengthSize bytes wide.
func ParseDataspace(data []byte, sb *Superblock) (*Dataspace, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("dataspace message too short: %d bytes", len(data))
	}
	ds := &Dataspace{Version: data[0]}
	rank := int(data[1])
	flags := data[2]

	var pos int
	switch ds.Version {
	case 1:
		pos = 8
		ds.Type = DataspaceSimple
		if rank == 0 {
			ds.Type = DataspaceScalar
		}
	case 2:
		pos = 4
		ds.Type = DataspaceType(data[3])
		if ds.Type > DataspaceNull {
			return nil, fmt.Errorf("invalid dataspace type: %d", ds.Type)
		}
	default:
		return nil, fmt.Errorf("unsupported dataspace version: %d", ds.Version)
	}

	l := int(sb.LengthSize)
	need := pos + rank*l
	if flags&0x01 != 0 {
		need += rank * l
	}
	if len(data) < need {
		return nil, fmt.Errorf("dataspace message truncated: %d bytes, need %d", len(data), need)
	}

	ds.Dims = make([]uint64, rank)
	for i := range ds.Dims {
		ds.Dims[i] = sb.ReadLength(data[pos:])
		pos += l
	}
	if flags&0x01 != 0 {
		ds.MaxDims = make([]uint64, rank)
		for i := range ds.MaxDims {
			v := sb.ReadLength(data[pos:])
			if utils.IsUndefinedAddress(v, l) {
				v = Unlimited
			}
			ds.MaxDims[i] = v
			pos += l
		}
	}
	return ds, nil
}
