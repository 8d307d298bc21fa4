// Package core decodes the HDF5 file format structures a netCDF-4 file is
// made of: the superblock, object headers and their messages, datatypes,
// storage layouts, filters and the global heap.
package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Grismar/netcdfproc/internal/utils"
)

// Signature is the 8-byte HDF5 format signature.
const Signature = "\x89HDF\r\n\x1a\n"

// Superblock versions understood by ReadSuperblock.
const (
	Version0 = 0
	Version1 = 1
	Version2 = 2
	Version3 = 3
)

// maxUserBlock bounds the signature search. HDF5 places the superblock at
// 0, 512, 1024, 2048, ... when a user block precedes it.
const maxUserBlock = 1 << 30

// ErrNoSignature is returned when no HDF5 signature is found.
var ErrNoSignature = errors.New("HDF5 signature not found")

// Superblock holds the file-level metadata needed to walk the file.
// Metadata in HDF5 is always little-endian; Endianness is kept on the
// superblock so decoders do not hard-code it.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	// BaseAddress is the absolute file offset all addresses are relative to.
	BaseAddress    uint64
	RootGroup      uint64
	SuperExtension uint64
	Endianness     binary.ByteOrder

	// RootBTree and RootHeap come from the v0/v1 root symbol table entry
	// scratch pad when it is cached there.
	RootBTree uint64
	RootHeap  uint64
}

// FindSignature looks for the HDF5 signature at 0 and at every power of two
// from 512 up to size. It returns the absolute offset of the signature.
func FindSignature(r io.ReaderAt, size int64) (int64, error) {
	buf := make([]byte, len(Signature))
	for off := int64(0); off+int64(len(Signature)) <= size && off <= maxUserBlock; {
		if _, err := r.ReadAt(buf, off); err != nil {
			return 0, utils.WrapError("signature read failed", err)
		}
		if string(buf) == Signature {
			return off, nil
		}
		if off == 0 {
			off = 512
		} else {
			off *= 2
		}
	}
	return 0, ErrNoSignature
}

// ReadSuperblock parses the superblock located at offset (the position of
// the signature). Versions 0 through 3 are supported.
func ReadSuperblock(r io.ReaderAt, offset int64) (*Superblock, error) {
	buf := make([]byte, 128)
	n, err := r.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, utils.WrapError("superblock read failed", err)
	}
	buf = buf[:n]
	if n < 24 {
		return nil, errors.New("file too small to contain a superblock")
	}
	if string(buf[:8]) != Signature {
		return nil, errors.New("invalid HDF5 signature")
	}

	sb := &Superblock{
		Version:    buf[8],
		Endianness: binary.LittleEndian,
		//nolint:gosec // G115: signature offsets are non-negative
		BaseAddress: uint64(offset),
	}

	switch sb.Version {
	case Version0, Version1:
		err = sb.parseV0(buf)
	case Version2, Version3:
		err = sb.parseV2(buf)
	default:
		return nil, fmt.Errorf("unsupported superblock version: %d", sb.Version)
	}
	if err != nil {
		return nil, err
	}
	return sb, nil
}

func validSize(s uint8) bool {
	return s == 2 || s == 4 || s == 8
}

// parseV0 decodes superblock versions 0 and 1, which share a layout apart
// from the indexed storage K field that version 1 adds.
func (sb *Superblock) parseV0(buf []byte) error {
	sb.OffsetSize = buf[13]
	sb.LengthSize = buf[14]
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return fmt.Errorf("invalid sizes for version %d: offset=%d, length=%d",
			sb.Version, sb.OffsetSize, sb.LengthSize)
	}

	pos := 24
	if sb.Version == Version1 {
		pos += 4
	}
	o := int(sb.OffsetSize)
	// Base, free-space, end-of-file and driver addresses, then the root
	// symbol table entry: name offset, object header address, cache type,
	// reserved, 16-byte scratch pad.
	need := pos + 4*o + 2*o + 8 + 16
	if len(buf) < need {
		return fmt.Errorf("superblock truncated: %d bytes, need %d", len(buf), need)
	}
	pos += 4 * o

	pos += o // link name offset
	sb.RootGroup = utils.DecodeUint(buf[pos:], o, sb.Endianness)
	pos += o
	cacheType := sb.Endianness.Uint32(buf[pos : pos+4])
	pos += 8
	if cacheType == 1 {
		sb.RootBTree = utils.DecodeUint(buf[pos:], o, sb.Endianness)
		sb.RootHeap = utils.DecodeUint(buf[pos+o:], o, sb.Endianness)
	}
	return nil
}

// parseV2 decodes superblock versions 2 and 3.
// Layout after the version byte: offset size, length size, flags, base
// address, extension address, end-of-file address, root object header
// address, checksum.
func (sb *Superblock) parseV2(buf []byte) error {
	sb.OffsetSize = buf[9]
	sb.LengthSize = buf[10]
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return fmt.Errorf("invalid sizes for version %d: offset=%d, length=%d",
			sb.Version, sb.OffsetSize, sb.LengthSize)
	}

	o := int(sb.OffsetSize)
	pos := 12
	if len(buf) < pos+4*o+4 {
		return fmt.Errorf("superblock truncated: %d bytes", len(buf))
	}
	pos += o // base address, superseded by the signature position
	sb.SuperExtension = utils.DecodeUint(buf[pos:], o, sb.Endianness)
	pos += 2 * o // extension, end of file
	sb.RootGroup = utils.DecodeUint(buf[pos:], o, sb.Endianness)
	return nil
}

// ReadAddress decodes an OffsetSize-wide address.
func (sb *Superblock) ReadAddress(b []byte) uint64 {
	return utils.DecodeUint(b, int(sb.OffsetSize), sb.Endianness)
}

// ReadLength decodes a LengthSize-wide length.
func (sb *Superblock) ReadLength(b []byte) uint64 {
	return utils.DecodeUint(b, int(sb.LengthSize), sb.Endianness)
}

// IsUndefined reports whether addr is the undefined address for this file.
func (sb *Superblock) IsUndefined(addr uint64) bool {
	return utils.IsUndefinedAddress(addr, int(sb.OffsetSize))
}
