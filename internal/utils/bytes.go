package utils

import "encoding/binary"

// UndefinedAddress is the all-ones address HDF5 uses for "not allocated".
const UndefinedAddress = ^uint64(0)

// IsUndefinedAddress reports whether addr is the undefined address for an
// offset field of the given width.
func IsUndefinedAddress(addr uint64, size int) bool {
	if size >= 8 || size <= 0 {
		return addr == UndefinedAddress
	}
	return addr == (uint64(1)<<(8*uint(size)))-1
}

// DecodeUint reads an unsigned integer of 1 to 8 bytes. Widths that are not
// a native size are decoded byte by byte in the given order.
func DecodeUint(data []byte, size int, order binary.ByteOrder) uint64 {
	if size > len(data) {
		size = len(data)
	}
	switch size {
	case 0:
		return 0
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(order.Uint16(data[:2]))
	case 4:
		return uint64(order.Uint32(data[:4]))
	case 8:
		return order.Uint64(data[:8])
	}
	if size > 8 {
		size = 8
	}
	var v uint64
	if order == binary.BigEndian {
		for i := 0; i < size; i++ {
			v = v<<8 | uint64(data[i])
		}
		return v
	}
	for i := 0; i < size; i++ {
		v |= uint64(data[i]) << (8 * uint(i))
	}
	return v
}

// EncodeUint writes v as a size-byte little-endian integer into data.
func EncodeUint(data []byte, v uint64, size int) {
	for i := 0; i < size && i < len(data); i++ {
		data[i] = byte(v >> (8 * uint(i)))
	}
}

// Log2Floor returns floor(log2(v)); Log2Floor(0) is 0.
func Log2Floor(v uint64) uint {
	var n uint
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// LimitEncSize is the number of bytes HDF5 uses to encode counters bounded
// by v: floor(log2(v))/8 + 1.
func LimitEncSize(v uint64) int {
	return int(Log2Floor(v)/8) + 1 //nolint:gosec // G115: result is at most 8
}
