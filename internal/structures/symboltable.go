package structures

import (
	"fmt"
	"io"

	"github.com/Grismar/netcdfproc/internal/core"
	"github.com/Grismar/netcdfproc/internal/utils"
)

// SymbolNodeSignature starts a symbol table node.
const SymbolNodeSignature = "SNOD"

// Entry is one member of a group: its link name and object header address.
type Entry struct {
	Name    string
	Address uint64
}

// symbolEntry is a raw symbol table entry: name offset into the local
// heap, object header address, cache type, reserved, 16-byte scratch pad.
type symbolEntry struct {
	nameOffset uint64
	address    uint64
}

func symbolEntrySize(sb *core.Superblock) int {
	return 2*int(sb.OffsetSize) + 24
}

// readSymbolNode reads a symbol table node: "SNOD", version 1, reserved,
// entry count (2), entries.
func readSymbolNode(r io.ReaderAt, address uint64, sb *core.Superblock) ([]symbolEntry, error) {
	head := make([]byte, 8)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(head, int64(address)); err != nil {
		return nil, utils.WrapError("symbol table node read failed", err)
	}
	if string(head[:4]) != SymbolNodeSignature {
		return nil, fmt.Errorf("invalid symbol table node signature at 0x%X: %q", address, head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("unsupported symbol table node version: %d", head[4])
	}
	n := int(sb.Endianness.Uint16(head[6:]))
	size := symbolEntrySize(sb)
	buf := make([]byte, n*size)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(buf, int64(address)+8); err != nil {
		return nil, utils.WrapError("symbol table entries read failed", err)
	}

	o := int(sb.OffsetSize)
	entries := make([]symbolEntry, n)
	for i := range entries {
		e := buf[i*size:]
		entries[i] = symbolEntry{
			nameOffset: sb.ReadAddress(e),
			address:    sb.ReadAddress(e[o:]),
		}
	}
	return entries, nil
}

// ReadSymbolTable lists the members of an old-style group from its group
// B-tree and local heap, in name order.
func ReadSymbolTable(r io.ReaderAt, btree, heap uint64, sb *core.Superblock) ([]Entry, error) {
	lh, err := LoadLocalHeap(r, heap, sb)
	if err != nil {
		return nil, err
	}
	nodes, err := ReadGroupBTree(r, btree, sb)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, addr := range nodes {
		entries, err := readSymbolNode(r, addr, sb)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			name, err := lh.String(e.nameOffset)
			if err != nil {
				return nil, utils.WrapError("symbol name", err)
			}
			out = append(out, Entry{Name: name, Address: e.address})
		}
	}
	return out, nil
}

// ReadGroupBTree returns the addresses of the symbol table nodes under the
// group B-tree rooted at address, left to right. Group node keys are
// L-byte local heap offsets.
func ReadGroupBTree(r io.ReaderAt, address uint64, sb *core.Superblock) ([]uint64, error) {
	var out []uint64
	if err := walkGroupNode(r, address, sb, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

const maxGroupDepth = 64

func walkGroupNode(r io.ReaderAt, address uint64, sb *core.Superblock, depth int, out *[]uint64) error {
	if depth > maxGroupDepth {
		return fmt.Errorf("group B-tree deeper than %d levels", maxGroupDepth)
	}
	l, o := int(sb.LengthSize), int(sb.OffsetSize)
	h, body, err := core.ReadBTreeNode(r, address, l, sb)
	if err != nil {
		return err
	}
	if h.Type != core.BTreeGroupNode {
		return fmt.Errorf("B-tree node at 0x%X is type %d, expected group node", address, h.Type)
	}
	for i := 0; i < int(h.Entries); i++ {
		child := sb.ReadAddress(body[l+i*(l+o):])
		if h.Level == 0 {
			*out = append(*out, child)
			continue
		}
		if err := walkGroupNode(r, child, sb, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}
