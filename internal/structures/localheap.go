// Package structures reads the indexing structures HDF5 groups use to
// store their members and attributes: local heaps, symbol table nodes,
// version 1 and 2 B-trees and fractal heaps.
package structures

import (
	"errors"
	"fmt"
	"io"

	"github.com/Grismar/netcdfproc/internal/core"
	"github.com/Grismar/netcdfproc/internal/utils"
)

// LocalHeapSignature starts a local heap header.
const LocalHeapSignature = "HEAP"

// LocalHeap holds the data segment of a local heap, which stores the link
// names of an old-style group.
//
// Header: "HEAP", version, 3 reserved bytes, data segment size (L), free
// list offset (L), data segment address (O).
type LocalHeap struct {
	Data []byte
}

// LoadLocalHeap reads the local heap at address.
func LoadLocalHeap(r io.ReaderAt, address uint64, sb *core.Superblock) (*LocalHeap, error) {
	l, o := int(sb.LengthSize), int(sb.OffsetSize)
	head := utils.GetBuffer(8 + 2*l + o)
	defer utils.ReleaseBuffer(head)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(head, int64(address)); err != nil {
		return nil, utils.WrapError("local heap header read failed", err)
	}
	if string(head[:4]) != LocalHeapSignature {
		return nil, fmt.Errorf("invalid local heap signature at 0x%X", address)
	}
	size := sb.ReadLength(head[8:])
	dataAddr := sb.ReadAddress(head[8+2*l:])
	if err := utils.ValidateBufferSize(size, utils.MaxHeapObjectSize, "local heap"); err != nil {
		return nil, err
	}

	h := &LocalHeap{Data: make([]byte, size)}
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(h.Data, int64(dataAddr)); err != nil {
		return nil, utils.WrapError("local heap data read failed", err)
	}
	return h, nil
}

// String returns the null-terminated string at offset.
func (h *LocalHeap) String(offset uint64) (string, error) {
	if offset >= uint64(len(h.Data)) {
		return "", fmt.Errorf("local heap offset %d beyond data (%d bytes)", offset, len(h.Data))
	}
	end := offset
	for end < uint64(len(h.Data)) && h.Data[end] != 0 {
		end++
	}
	if end == uint64(len(h.Data)) {
		return "", errors.New("local heap string not null-terminated")
	}
	return string(h.Data[offset:end]), nil
}
