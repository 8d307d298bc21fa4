package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Grismar/netcdfproc/internal/utils"
)

// Attribute is a decoded attribute message (0x000C) with its raw value.
type Attribute struct {
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	// Data holds the stored elements; variable-length elements are
	// global heap references.
	Data []byte
}

// attrSharedDatatype is the attribute message flag for a committed datatype.
const attrSharedDatatype = 0x01

// ParseAttribute decodes an attribute message.
//
// Header: version, flags (reserved in v1), name size, datatype size,
// dataspace size, and for version 3 a name encoding byte. Version 1 pads
// name, datatype and dataspace to multiples of 8.
func ParseAttribute(data []byte, sb *Superblock) (*Attribute, error) {
	if len(data) < 8 {
		return nil, errors.New("attribute message too short")
	}
	version := data[0]
	flags := data[1]
	nameSize := int(binary.LittleEndian.Uint16(data[2:]))
	dtSize := int(binary.LittleEndian.Uint16(data[4:]))
	dsSize := int(binary.LittleEndian.Uint16(data[6:]))

	pos := 8
	pad := func(n int) int { return n }
	switch version {
	case 1:
		pad = func(n int) int { return (n + 7) &^ 7 }
	case 2:
	case 3:
		pos = 9
	default:
		return nil, fmt.Errorf("unsupported attribute message version: %d", version)
	}
	if version > 1 && flags&attrSharedDatatype != 0 {
		return nil, errors.New("attributes with committed datatypes are not supported")
	}

	if len(data) < pos+pad(nameSize) {
		return nil, errors.New("attribute name truncated")
	}
	name := data[pos : pos+nameSize]
	if n := len(name); n > 0 && name[n-1] == 0 {
		name = name[:n-1]
	}
	a := &Attribute{Name: string(name)}
	pos += pad(nameSize)

	if len(data) < pos+pad(dtSize) {
		return nil, fmt.Errorf("attribute %q: datatype truncated", a.Name)
	}
	dt, err := ParseDatatype(data[pos : pos+dtSize])
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("attribute %q datatype", a.Name), err)
	}
	a.Datatype = dt
	pos += pad(dtSize)

	if len(data) < pos+pad(dsSize) {
		return nil, fmt.Errorf("attribute %q: dataspace truncated", a.Name)
	}
	ds, err := ParseDataspace(data[pos:pos+dsSize], sb)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("attribute %q dataspace", a.Name), err)
	}
	a.Dataspace = ds
	pos += pad(dsSize)

	n, err := ds.TotalElements()
	if err != nil {
		return nil, err
	}
	size, err := utils.SafeMultiply(n, uint64(dt.Size))
	if err != nil {
		return nil, err
	}
	if size > utils.MaxAttributeSize {
		return nil, fmt.Errorf("attribute %q: %d bytes exceeds maximum %d", a.Name, size, utils.MaxAttributeSize)
	}
	if uint64(len(data)-pos) < size {
		return nil, fmt.Errorf("attribute %q: data truncated: have %d bytes, need %d", a.Name, len(data)-pos, size)
	}
	a.Data = data[pos : pos+int(size)] //nolint:gosec // G115: bounded by MaxAttributeSize
	return a, nil
}

// AttributeInfo is a decoded attribute info message (0x0015). Objects with
// many attributes keep them in a fractal heap indexed by a version 2 B-tree.
type AttributeInfo struct {
	MaxCreationIndex uint16
	FractalHeap      uint64
	NameIndex        uint64
	CreationIndex    uint64
}

// ParseAttributeInfo decodes an attribute info message: version, flags,
// optional max creation index, heap and name index addresses, optional
// creation order index address.
func ParseAttributeInfo(data []byte, sb *Superblock) (*AttributeInfo, error) {
	if len(data) < 2 {
		return nil, errors.New("attribute info message too short")
	}
	if data[0] != 0 {
		return nil, fmt.Errorf("unsupported attribute info version: %d", data[0])
	}
	flags := data[1]
	pos := 2
	o := int(sb.OffsetSize)
	need := pos + 2*o
	if flags&0x01 != 0 {
		need += 2
	}
	if flags&0x02 != 0 {
		need += o
	}
	if len(data) < need {
		return nil, errors.New("attribute info message truncated")
	}

	ai := &AttributeInfo{CreationIndex: utils.UndefinedAddress}
	if flags&0x01 != 0 {
		ai.MaxCreationIndex = binary.LittleEndian.Uint16(data[pos:])
		pos += 2
	}
	ai.FractalHeap = sb.ReadAddress(data[pos:])
	ai.NameIndex = sb.ReadAddress(data[pos+o:])
	pos += 2 * o
	if flags&0x02 != 0 {
		ai.CreationIndex = sb.ReadAddress(data[pos:])
	}
	return ai, nil
}
