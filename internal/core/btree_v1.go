package core

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Grismar/netcdfproc/internal/utils"
)

// BTreeSignature starts every version 1 B-tree node.
const BTreeSignature = "TREE"

// B-tree v1 node types.
const (
	BTreeGroupNode = 0
	BTreeChunkNode = 1
)

// maxBTreeDepth bounds recursion through corrupt trees.
const maxBTreeDepth = 64

// Chunk is one stored chunk of a chunked dataset.
type Chunk struct {
	// Offset is the element coordinate of the chunk's first element.
	Offset     []uint64
	Address    uint64
	Size       uint32
	FilterMask uint32
}

// BTreeNodeHeader is the common prefix of a version 1 B-tree node:
// "TREE", node type, level, entries used, left and right siblings.
type BTreeNodeHeader struct {
	Type    uint8
	Level   uint8
	Entries uint16
}

// ReadBTreeNode reads the node header at addr and returns it along with the
// node bytes following the header, sized for keySize-byte keys.
func ReadBTreeNode(r io.ReaderAt, addr uint64, keySize int, sb *Superblock) (*BTreeNodeHeader, []byte, error) {
	o := int(sb.OffsetSize)
	head := make([]byte, 8+2*o)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(head, int64(addr)); err != nil {
		return nil, nil, utils.WrapError("B-tree node read failed", err)
	}
	if string(head[:4]) != BTreeSignature {
		return nil, nil, fmt.Errorf("invalid B-tree signature at 0x%X: %q", addr, head[:4])
	}
	h := &BTreeNodeHeader{
		Type:    head[4],
		Level:   head[5],
		Entries: binary.LittleEndian.Uint16(head[6:]),
	}
	n := int(h.Entries)
	body := make([]byte, (n+1)*keySize+n*o)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(body, int64(addr)+int64(len(head))); err != nil {
		return nil, nil, utils.WrapError("B-tree node entries read failed", err)
	}
	return h, body, nil
}

// ReadChunkIndex walks the chunk B-tree rooted at addr and returns every
// chunk of a rank-dimensional dataset.
//
// Chunk keys are: chunk size (4), filter mask (4), then rank+1 8-byte
// offsets, the last of which indexes the element size dimension.
func ReadChunkIndex(r io.ReaderAt, addr uint64, rank int, sb *Superblock) ([]Chunk, error) {
	var chunks []Chunk
	if err := walkChunkNode(r, addr, rank, sb, 0, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func walkChunkNode(r io.ReaderAt, addr uint64, rank int, sb *Superblock, depth int, out *[]Chunk) error {
	if depth > maxBTreeDepth {
		return fmt.Errorf("chunk B-tree deeper than %d levels", maxBTreeDepth)
	}
	keySize := 8 + 8*(rank+1)
	h, body, err := ReadBTreeNode(r, addr, keySize, sb)
	if err != nil {
		return err
	}
	if h.Type != BTreeChunkNode {
		return fmt.Errorf("B-tree node at 0x%X is type %d, expected chunk node", addr, h.Type)
	}

	o := int(sb.OffsetSize)
	pos := 0
	for i := 0; i < int(h.Entries); i++ {
		key := body[pos : pos+keySize]
		child := sb.ReadAddress(body[pos+keySize:])
		pos += keySize + o

		if h.Level > 0 {
			if err := walkChunkNode(r, child, rank, sb, depth+1, out); err != nil {
				return err
			}
			continue
		}
		c := Chunk{
			Address:    child,
			Size:       binary.LittleEndian.Uint32(key),
			FilterMask: binary.LittleEndian.Uint32(key[4:]),
			Offset:     make([]uint64, rank),
		}
		for d := range c.Offset {
			c.Offset[d] = binary.LittleEndian.Uint64(key[8+8*d:])
		}
		*out = append(*out, c)
	}
	return nil
}
