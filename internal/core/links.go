package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SymbolTable is a decoded symbol table message (0x0011) of an old-style
// group: the group B-tree and its local name heap.
type SymbolTable struct {
	BTree     uint64
	LocalHeap uint64
}

// ParseSymbolTable decodes a symbol table message.
func ParseSymbolTable(data []byte, sb *Superblock) (*SymbolTable, error) {
	o := int(sb.OffsetSize)
	if len(data) < 2*o {
		return nil, errors.New("symbol table message too short")
	}
	return &SymbolTable{
		BTree:     sb.ReadAddress(data),
		LocalHeap: sb.ReadAddress(data[o:]),
	}, nil
}

// LinkInfo is a decoded link info message (0x0002) of a new-style group.
// A defined FractalHeap means the links are stored densely.
type LinkInfo struct {
	MaxCreationIndex uint64
	FractalHeap      uint64
	NameIndex        uint64
	CreationIndex    uint64
}

// ParseLinkInfo decodes a link info message: version, flags, optional
// max creation index (8), heap and name index addresses, optional creation
// order index address.
func ParseLinkInfo(data []byte, sb *Superblock) (*LinkInfo, error) {
	if len(data) < 2 {
		return nil, errors.New("link info message too short")
	}
	if data[0] != 0 {
		return nil, fmt.Errorf("unsupported link info version: %d", data[0])
	}
	flags := data[1]
	o := int(sb.OffsetSize)
	need := 2 + 2*o
	if flags&0x01 != 0 {
		need += 8
	}
	if flags&0x02 != 0 {
		need += o
	}
	if len(data) < need {
		return nil, errors.New("link info message truncated")
	}

	li := &LinkInfo{CreationIndex: ^uint64(0)}
	pos := 2
	if flags&0x01 != 0 {
		li.MaxCreationIndex = binary.LittleEndian.Uint64(data[pos:])
		pos += 8
	}
	li.FractalHeap = sb.ReadAddress(data[pos:])
	li.NameIndex = sb.ReadAddress(data[pos+o:])
	pos += 2 * o
	if flags&0x02 != 0 {
		li.CreationIndex = sb.ReadAddress(data[pos:])
	}
	return li, nil
}

// LinkType is the kind of target a link points to.
type LinkType uint8

// Link types.
const (
	LinkHard     LinkType = 0
	LinkSoft     LinkType = 1
	LinkExternal LinkType = 64
)

// Link is a decoded link message (0x0006).
type Link struct {
	Name          string
	Type          LinkType
	CreationOrder uint64
	HasOrder      bool
	// Address is the object header address of a hard link.
	Address uint64
	// Target is the path of a soft link.
	Target string
}

// Link message flag bits.
const (
	linkNameSizeMask  = 0x03
	linkHasOrder      = 0x04
	linkHasType       = 0x08
	linkHasCharset    = 0x10
	linkMessageFormat = 1
)

// ParseLink decodes a link message: version, flags, optional type,
// optional creation order, optional charset, name length (1, 2, 4 or 8
// bytes), name, then type-specific link information.
func ParseLink(data []byte, sb *Superblock) (*Link, error) {
	if len(data) < 2 {
		return nil, errors.New("link message too short")
	}
	if data[0] != linkMessageFormat {
		return nil, fmt.Errorf("unsupported link message version: %d", data[0])
	}
	flags := data[1]
	pos := 2
	l := &Link{}

	if flags&linkHasType != 0 {
		if pos >= len(data) {
			return nil, errors.New("link type truncated")
		}
		l.Type = LinkType(data[pos])
		pos++
	}
	if flags&linkHasOrder != 0 {
		if pos+8 > len(data) {
			return nil, errors.New("link creation order truncated")
		}
		l.CreationOrder = binary.LittleEndian.Uint64(data[pos:])
		l.HasOrder = true
		pos += 8
	}
	if flags&linkHasCharset != 0 {
		pos++
	}

	width := 1 << (flags & linkNameSizeMask)
	if pos+width > len(data) {
		return nil, errors.New("link name length truncated")
	}
	var nameLen uint64
	for i := 0; i < width; i++ {
		nameLen |= uint64(data[pos+i]) << (8 * uint(i))
	}
	pos += width
	if nameLen > uint64(len(data)-pos) {
		return nil, errors.New("link name truncated")
	}
	l.Name = string(data[pos : pos+int(nameLen)]) //nolint:gosec // G115: bounded by message length
	pos += int(nameLen)                           //nolint:gosec // G115: bounded by message length

	switch l.Type {
	case LinkHard:
		if pos+int(sb.OffsetSize) > len(data) {
			return nil, fmt.Errorf("link %q: address truncated", l.Name)
		}
		l.Address = sb.ReadAddress(data[pos:])
	case LinkSoft:
		if pos+2 > len(data) {
			return nil, fmt.Errorf("link %q: target truncated", l.Name)
		}
		n := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
		if pos+n > len(data) {
			return nil, fmt.Errorf("link %q: target truncated", l.Name)
		}
		l.Target = string(data[pos : pos+n])
	}
	return l, nil
}
