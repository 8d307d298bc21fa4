package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DatatypeClass is the HDF5 datatype class stored in the low nibble of the
// first datatype byte.
type DatatypeClass uint8

// Datatype classes.
const (
	ClassFixed     DatatypeClass = 0
	ClassFloat     DatatypeClass = 1
	ClassTime      DatatypeClass = 2
	ClassString    DatatypeClass = 3
	ClassBitfield  DatatypeClass = 4
	ClassOpaque    DatatypeClass = 5
	ClassCompound  DatatypeClass = 6
	ClassReference DatatypeClass = 7
	ClassEnum      DatatypeClass = 8
	ClassVarLen    DatatypeClass = 9
	ClassArray     DatatypeClass = 10
)

var classNames = [...]string{
	"fixed-point", "floating-point", "time", "string", "bitfield", "opaque",
	"compound", "reference", "enum", "variable-length", "array",
}

// String returns the class name.
func (c DatatypeClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// String padding types (string class bits 0-3, variable-length bits 4-7).
const (
	PadNullTerm = 0
	PadNull     = 1
	PadSpace    = 2
)

// Datatype is a decoded datatype message (0x0003).
type Datatype struct {
	Class   DatatypeClass
	Version uint8
	Bits    [3]byte
	Size    uint32

	// Base is the element type of variable-length, enum and array types.
	Base *Datatype
	// ArrayDims holds the dimensions of an array type.
	ArrayDims []uint32
}

// ByteOrder returns the byte order of fixed-point, floating-point and enum
// base types. Other classes report little-endian.
func (dt *Datatype) ByteOrder() binary.ByteOrder {
	switch dt.Class {
	case ClassFixed, ClassFloat, ClassBitfield:
		if dt.Bits[0]&0x01 != 0 {
			return binary.BigEndian
		}
	case ClassEnum:
		if dt.Base != nil {
			return dt.Base.ByteOrder()
		}
	}
	return binary.LittleEndian
}

// Signed reports whether a fixed-point type is two's complement signed.
func (dt *Datatype) Signed() bool {
	return dt.Class == ClassFixed && dt.Bits[0]&0x08 != 0
}

// Padding returns the string padding type of string and variable-length
// string types.
func (dt *Datatype) Padding() uint8 {
	if dt.Class == ClassVarLen {
		return (dt.Bits[0] >> 4) & 0x0F
	}
	return dt.Bits[0] & 0x0F
}

// IsVarString reports whether the type is a variable-length string.
func (dt *Datatype) IsVarString() bool {
	return dt.Class == ClassVarLen && dt.Bits[0]&0x0F == 1
}

// IsObjectReference reports whether the type is an object reference.
func (dt *Datatype) IsObjectReference() bool {
	return dt.Class == ClassReference && dt.Bits[0]&0x0F == 0
}

// String describes the type for diagnostics.
func (dt *Datatype) String() string {
	switch {
	case dt.IsVarString():
		return "variable-length string"
	case dt.Class == ClassVarLen && dt.Base != nil:
		return "variable-length sequence of " + dt.Base.String()
	case dt.Class == ClassFixed && dt.Signed():
		return fmt.Sprintf("int%d", dt.Size*8)
	case dt.Class == ClassFixed:
		return fmt.Sprintf("uint%d", dt.Size*8)
	case dt.Class == ClassFloat:
		return fmt.Sprintf("float%d", dt.Size*8)
	}
	return fmt.Sprintf("%s (%d bytes)", dt.Class, dt.Size)
}

// ParseDatatype decodes a datatype message. See ParseDatatypeN for the
// consumed length.
func ParseDatatype(data []byte) (*Datatype, error) {
	dt, _, err := ParseDatatypeN(data)
	return dt, err
}

// ParseDatatypeN decodes a datatype and returns the number of bytes it
// occupies, which nested types need to locate what follows them.
//
// Layout: class and version (1), class bit field (3), size (4), properties.
func ParseDatatypeN(data []byte) (*Datatype, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("datatype message too short: %d bytes", len(data))
	}
	dt := &Datatype{
		Class:   DatatypeClass(data[0] & 0x0F),
		Version: data[0] >> 4,
		Size:    binary.LittleEndian.Uint32(data[4:8]),
	}
	copy(dt.Bits[:], data[1:4])
	props := data[8:]

	n := 0
	switch dt.Class {
	case ClassFixed, ClassBitfield:
		n = 4
	case ClassFloat:
		n = 12
	case ClassTime:
		n = 2
	case ClassString, ClassReference:
		n = 0
	case ClassOpaque:
		n = int(dt.Bits[0])
	case ClassVarLen:
		base, m, err := ParseDatatypeN(props)
		if err != nil {
			return nil, 0, fmt.Errorf("variable-length base type: %w", err)
		}
		dt.Base, n = base, m
	case ClassEnum:
		m, err := dt.parseEnum(props)
		if err != nil {
			return nil, 0, err
		}
		n = m
	case ClassArray:
		m, err := dt.parseArray(props)
		if err != nil {
			return nil, 0, err
		}
		n = m
	case ClassCompound:
		// Compound members are not decoded; the caller only learns the size.
		n = len(props)
	default:
		return nil, 0, fmt.Errorf("unknown datatype class: %d", dt.Class)
	}
	if n > len(props) {
		return nil, 0, fmt.Errorf("%s datatype properties truncated", dt.Class)
	}
	return dt, 8 + n, nil
}

// parseEnum decodes an enum base type and skips its member names and values.
func (dt *Datatype) parseEnum(props []byte) (int, error) {
	base, pos, err := ParseDatatypeN(props)
	if err != nil {
		return 0, fmt.Errorf("enum base type: %w", err)
	}
	dt.Base = base
	members := int(binary.LittleEndian.Uint16([]byte{dt.Bits[0], dt.Bits[1]}))
	for i := 0; i < members; i++ {
		end := pos
		for end < len(props) && props[end] != 0 {
			end++
		}
		if end >= len(props) {
			return 0, errors.New("enum member name not terminated")
		}
		nameLen := end - pos + 1
		if dt.Version < 3 {
			nameLen = (nameLen + 7) &^ 7
		}
		pos += nameLen
	}
	pos += members * int(base.Size)
	return pos, nil
}

// parseArray decodes an array type: rank, dims (4 bytes each), a
// permutation list before version 3, then the base type.
func (dt *Datatype) parseArray(props []byte) (int, error) {
	if len(props) < 1 {
		return 0, errors.New("array datatype truncated")
	}
	rank := int(props[0])
	pos := 1
	if dt.Version < 3 {
		pos += 3
	}
	if len(props) < pos+4*rank {
		return 0, errors.New("array dimensions truncated")
	}
	dt.ArrayDims = make([]uint32, rank)
	for i := range dt.ArrayDims {
		dt.ArrayDims[i] = binary.LittleEndian.Uint32(props[pos:])
		pos += 4
	}
	if dt.Version < 3 {
		pos += 4 * rank
	}
	if pos > len(props) {
		return 0, errors.New("array permutation truncated")
	}
	base, m, err := ParseDatatypeN(props[pos:])
	if err != nil {
		return 0, fmt.Errorf("array base type: %w", err)
	}
	dt.Base = base
	return pos + m, nil
}
