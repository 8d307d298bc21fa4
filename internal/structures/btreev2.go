package structures

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Grismar/netcdfproc/internal/core"
	"github.com/Grismar/netcdfproc/internal/utils"
)

// Version 2 B-tree signatures.
const (
	BTreeV2HeaderSignature   = "BTHD"
	BTreeV2InternalSignature = "BTIN"
	BTreeV2LeafSignature     = "BTLF"
)

// Record types read by this package.
const (
	RecordLinkName      = 5
	RecordAttributeName = 8
)

// btreeV2Prefix is signature, version, type and checksum.
const btreeV2Prefix = 10

// BTreeV2 is a version 2 B-tree header plus the per-depth node geometry
// needed to decode internal node child pointers.
//
// Header: "BTHD", version, type, node size (4), record size (2), depth (2),
// split and merge percents, root address (O), root record count (2),
// total record count (L), checksum.
type BTreeV2 struct {
	Type       uint8
	NodeSize   uint32
	RecordSize uint16
	Depth      uint16
	Root       uint64
	RootCount  uint16
	Total      uint64

	maxNrecSize int
	cumSize     []int
}

// ReadBTreeV2 reads the header of the B-tree at address.
func ReadBTreeV2(r io.ReaderAt, address uint64, sb *core.Superblock) (*BTreeV2, error) {
	o, l := int(sb.OffsetSize), int(sb.LengthSize)
	buf := make([]byte, 16+o+2+l)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(buf, int64(address)); err != nil {
		return nil, utils.WrapError("B-tree v2 header read failed", err)
	}
	if string(buf[:4]) != BTreeV2HeaderSignature {
		return nil, fmt.Errorf("invalid B-tree v2 header signature at 0x%X", address)
	}
	bt := &BTreeV2{
		Type:       buf[5],
		NodeSize:   binary.LittleEndian.Uint32(buf[6:]),
		RecordSize: binary.LittleEndian.Uint16(buf[10:]),
		Depth:      binary.LittleEndian.Uint16(buf[12:]),
		Root:       sb.ReadAddress(buf[16:]),
		RootCount:  binary.LittleEndian.Uint16(buf[16+o:]),
		Total:      sb.ReadLength(buf[18+o:]),
	}
	if bt.RecordSize == 0 || bt.NodeSize <= btreeV2Prefix {
		return nil, fmt.Errorf("invalid B-tree v2 geometry: node size %d, record size %d", bt.NodeSize, bt.RecordSize)
	}
	bt.geometry(o)
	return bt, nil
}

// geometry derives, for each depth, the width of the "total records below"
// field of child pointers.
func (bt *BTreeV2) geometry(o int) {
	rec := uint64(bt.RecordSize)
	leafMax := (uint64(bt.NodeSize) - btreeV2Prefix) / rec
	bt.maxNrecSize = utils.LimitEncSize(leafMax)

	bt.cumSize = make([]int, int(bt.Depth)+1)
	cum := leafMax
	for d := 1; d <= int(bt.Depth); d++ {
		ptr := uint64(bt.pointerSize(d, o)) //nolint:gosec // G115: small positive sizes
		maxNrec := uint64(0)
		if uint64(bt.NodeSize) > btreeV2Prefix+ptr {
			maxNrec = (uint64(bt.NodeSize) - (btreeV2Prefix + ptr)) / (rec + ptr)
		}
		cum = (maxNrec+1)*cum + maxNrec
		bt.cumSize[d] = utils.LimitEncSize(cum)
	}
}

func (bt *BTreeV2) pointerSize(depth, o int) int {
	size := o + bt.maxNrecSize
	if depth > 1 {
		size += bt.cumSize[depth-1]
	}
	return size
}

// Records returns every record of the tree in key order.
func (bt *BTreeV2) Records(r io.ReaderAt, sb *core.Superblock) ([][]byte, error) {
	out := make([][]byte, 0, bt.Total)
	if bt.RootCount == 0 || sb.IsUndefined(bt.Root) {
		return out, nil
	}
	if err := bt.walk(r, sb, bt.Root, int(bt.RootCount), int(bt.Depth), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (bt *BTreeV2) walk(r io.ReaderAt, sb *core.Superblock, addr uint64, nrec, depth int, out *[][]byte) error {
	o := int(sb.OffsetSize)
	rs := int(bt.RecordSize)
	buf := make([]byte, bt.NodeSize)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(buf, int64(addr)); err != nil {
		return utils.WrapError("B-tree v2 node read failed", err)
	}

	sig := BTreeV2LeafSignature
	if depth > 0 {
		sig = BTreeV2InternalSignature
	}
	if string(buf[:4]) != sig {
		return fmt.Errorf("invalid B-tree v2 node signature at 0x%X: %q", addr, buf[:4])
	}
	records := 6
	if records+nrec*rs > len(buf) {
		return fmt.Errorf("B-tree v2 node at 0x%X overflows node size", addr)
	}
	record := func(i int) []byte {
		return append([]byte(nil), buf[records+i*rs:records+(i+1)*rs]...)
	}

	if depth == 0 {
		for i := 0; i < nrec; i++ {
			*out = append(*out, record(i))
		}
		return nil
	}

	ptr := bt.pointerSize(depth, o)
	base := records + nrec*rs
	if base+(nrec+1)*ptr > len(buf) {
		return fmt.Errorf("B-tree v2 node at 0x%X child pointers overflow node", addr)
	}
	for i := 0; i <= nrec; i++ {
		p := buf[base+i*ptr:]
		child := sb.ReadAddress(p)
		count := int(utils.DecodeUint(p[o:], bt.maxNrecSize, sb.Endianness)) //nolint:gosec // G115: bounded by node size
		if err := bt.walk(r, sb, child, count, depth-1, out); err != nil {
			return err
		}
		if i < nrec {
			*out = append(*out, record(i))
		}
	}
	return nil
}
