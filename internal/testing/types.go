package testing

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Type is an encoded datatype message and the size of one element.
type Type struct {
	Raw  []byte
	Size int
}

func datatype(class, version, b0, b1 byte, size int, props ...byte) Type {
	raw := []byte{class | version<<4, b0, b1, 0}
	raw = binary.LittleEndian.AppendUint32(raw, uint32(size)) //nolint:gosec // G115: test sizes are small
	return Type{Raw: append(raw, props...), Size: size}
}

// Int returns a little-endian integer type of size bytes.
func Int(size int, signed bool) Type {
	var b0 byte
	if signed {
		b0 = 0x08
	}
	props := binary.LittleEndian.AppendUint16(nil, 0)
	props = binary.LittleEndian.AppendUint16(props, uint16(size*8)) //nolint:gosec // G115: test sizes are small
	return datatype(0, 1, b0, 0, size, props...)
}

// BigEndianInt returns a big-endian integer type of size bytes.
func BigEndianInt(size int, signed bool) Type {
	t := Int(size, signed)
	t.Raw[1] |= 0x01
	return t
}

// Float32 is an IEEE single precision type.
func Float32() Type {
	props := binary.LittleEndian.AppendUint16(nil, 0)
	props = binary.LittleEndian.AppendUint16(props, 32)
	props = append(props, 23, 8, 0, 23)
	props = binary.LittleEndian.AppendUint32(props, 127)
	return datatype(1, 1, 0x20, 31, 4, props...)
}

// Float64 is an IEEE double precision type.
func Float64() Type {
	props := binary.LittleEndian.AppendUint16(nil, 0)
	props = binary.LittleEndian.AppendUint16(props, 64)
	props = append(props, 52, 11, 0, 52)
	props = binary.LittleEndian.AppendUint32(props, 1023)
	return datatype(1, 1, 0x20, 63, 8, props...)
}

// FixedString is a null-terminated string type of n bytes. netCDF stores
// text attributes and char variables this way.
func FixedString(n int) Type {
	return datatype(3, 1, 0, 0, n)
}

// VarString is a variable-length UTF-8 string type.
func VarString() Type {
	return datatype(9, 1, 0x01, 0x01, 16, Int(1, false).Raw...)
}

// ObjectRef is an object reference type.
func ObjectRef() Type {
	return datatype(7, 1, 0, 0, 8)
}

// VarLenOf is a variable-length sequence of base.
func VarLenOf(base Type) Type {
	return datatype(9, 1, 0, 0, 16, base.Raw...)
}

// Enum is an enumeration over a one-byte unsigned integer with the given
// member names, valued 0, 1, ...
func Enum(names ...string) Type {
	base := Int(1, false)
	props := append([]byte(nil), base.Raw...)
	for _, n := range names {
		name := append([]byte(n), 0)
		for len(name)%8 != 0 {
			name = append(name, 0)
		}
		props = append(props, name...)
	}
	for i := range names {
		props = append(props, byte(i))
	}
	return datatype(8, 1, byte(len(names)), 0, 1, props...)
}

// Compound is a compound type of size bytes; its members are not encoded.
func Compound(size int) Type {
	return datatype(6, 1, 0, 0, size)
}

// LE encodes a slice of fixed-size values in little-endian order.
func LE(values any) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// BE encodes a slice of fixed-size values in big-endian order.
func BE(values any) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, values); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Float32Bits returns the little-endian encoding of one float32.
func Float32Bits(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

// Attr is an attribute to attach to a group or dataset. A nil Dims means
// a scalar.
type Attr struct {
	Name string
	Type Type
	Dims []uint64
	Data []byte
}

// Text is a netCDF text attribute: a scalar fixed-length string.
func Text(name, value string) Attr {
	n := len(value)
	if n == 0 {
		n = 1
	}
	data := make([]byte, n)
	copy(data, value)
	return Attr{Name: name, Type: FixedString(n), Data: data}
}

// Int32s is an int attribute; one value gives a one-element array, the way
// netCDF-C stores numeric attributes.
func Int32s(name string, values ...int32) Attr {
	return Attr{Name: name, Type: Int(4, true), Dims: []uint64{uint64(len(values))}, Data: LE(values)}
}

// Float32s is a float attribute.
func Float32s(name string, values ...float32) Attr {
	return Attr{Name: name, Type: Float32(), Dims: []uint64{uint64(len(values))}, Data: LE(values)}
}

// Float64s is a double attribute.
func Float64s(name string, values ...float64) Attr {
	return Attr{Name: name, Type: Float64(), Dims: []uint64{uint64(len(values))}, Data: LE(values)}
}
