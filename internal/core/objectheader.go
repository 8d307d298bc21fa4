package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/Grismar/netcdfproc/internal/utils"
)

// MessageType identifies the type of message in an object header.
type MessageType uint16

// Header message types read by this package.
const (
	MsgNil            MessageType = 0x0000
	MsgDataspace      MessageType = 0x0001
	MsgLinkInfo       MessageType = 0x0002
	MsgDatatype       MessageType = 0x0003
	MsgFillValueOld   MessageType = 0x0004
	MsgFillValue      MessageType = 0x0005
	MsgLink           MessageType = 0x0006
	MsgDataLayout     MessageType = 0x0008
	MsgGroupInfo      MessageType = 0x000A
	MsgFilterPipeline MessageType = 0x000B
	MsgAttribute      MessageType = 0x000C
	MsgContinuation   MessageType = 0x0010
	MsgSymbolTable    MessageType = 0x0011
	MsgAttributeInfo  MessageType = 0x0015
)

// Header message flag bits.
const (
	MsgFlagConstant = 0x01
	MsgFlagShared   = 0x02
)

// Object header v2 flag bits.
const (
	ohdrChunkSizeMask   = 0x03
	ohdrTrackCrtOrder   = 0x04
	ohdrStorePhaseLimit = 0x10
	ohdrStoreTimes      = 0x20
)

// maxHeaderMessages bounds a single object header to keep corrupt
// continuation chains from looping.
const maxHeaderMessages = 1 << 16

// ObjectHeader is a decoded object header: the concatenation of the
// messages of every chunk, in file order.
type ObjectHeader struct {
	Address  uint64
	Version  uint8
	Flags    uint8
	Messages []*HeaderMessage
}

// HeaderMessage is one raw header message.
type HeaderMessage struct {
	Type          MessageType
	Flags         uint8
	CreationOrder uint16
	Data          []byte
}

// IsShared reports whether the message body is a reference to a shared
// message stored elsewhere.
func (m *HeaderMessage) IsShared() bool {
	return m.Flags&MsgFlagShared != 0
}

// Find returns the first message of type t, or nil.
func (h *ObjectHeader) Find(t MessageType) *HeaderMessage {
	for _, m := range h.Messages {
		if m.Type == t {
			return m
		}
	}
	return nil
}

// FindAll returns every message of type t.
func (h *ObjectHeader) FindAll(t MessageType) []*HeaderMessage {
	var out []*HeaderMessage
	for _, m := range h.Messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// ReadObjectHeader reads the object header at address, following
// continuation messages. Versions 1 and 2 are supported.
func ReadObjectHeader(r io.ReaderAt, address uint64, sb *Superblock) (*ObjectHeader, error) {
	prefix := make([]byte, 16)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(prefix, int64(address)); err != nil {
		return nil, utils.WrapError("object header read failed", err)
	}

	h := &ObjectHeader{Address: address}
	var err error
	switch {
	case string(prefix[:4]) == "OHDR":
		h.Version = prefix[4]
		h.Flags = prefix[5]
		if h.Version != 2 {
			return nil, fmt.Errorf("unsupported object header version: %d", h.Version)
		}
		err = h.readV2(r, address, sb)
	case prefix[0] == 1:
		h.Version = 1
		err = h.readV1(r, address, prefix, sb)
	default:
		return nil, fmt.Errorf("invalid object header at 0x%X: % x", address, prefix[:4])
	}
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("object header 0x%X", address), err)
	}
	return h, nil
}

// continuation is a pending (address, length) block.
type continuation struct {
	addr, length uint64
}

func parseContinuation(data []byte, sb *Superblock) (continuation, error) {
	o, l := int(sb.OffsetSize), int(sb.LengthSize)
	if len(data) < o+l {
		return continuation{}, errors.New("continuation message too short")
	}
	return continuation{
		addr:   sb.ReadAddress(data),
		length: sb.ReadLength(data[o:]),
	}, nil
}

func readBlock(r io.ReaderAt, addr, length uint64) ([]byte, error) {
	if err := utils.ValidateBufferSize(length, utils.MaxChunkSize, "object header block"); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(buf, int64(addr)); err != nil {
		return nil, utils.WrapError("object header block read failed", err)
	}
	return buf, nil
}

// readV1 decodes a version 1 header.
// Prefix: version, reserved, message count (2), reference count (4),
// header size (4), 4 bytes of alignment padding. Messages are 8-byte
// aligned: type (2), size (2), flags (1), reserved (3), data.
func (h *ObjectHeader) readV1(r io.ReaderAt, address uint64, prefix []byte, sb *Superblock) error {
	size := uint64(sb.Endianness.Uint32(prefix[8:12]))
	pending := []continuation{{addr: address + 16, length: size}}
	seen := map[uint64]bool{}

	for len(pending) > 0 {
		blk := pending[0]
		pending = pending[1:]
		if seen[blk.addr] {
			return fmt.Errorf("continuation loop at 0x%X", blk.addr)
		}
		seen[blk.addr] = true

		buf, err := readBlock(r, blk.addr, blk.length)
		if err != nil {
			return err
		}
		for pos := 0; pos+8 <= len(buf); {
			mtype := MessageType(sb.Endianness.Uint16(buf[pos:]))
			msize := int(sb.Endianness.Uint16(buf[pos+2:]))
			flags := buf[pos+4]
			pos += 8
			if pos+msize > len(buf) {
				return fmt.Errorf("message type 0x%04X overruns block (%d > %d)", mtype, pos+msize, len(buf))
			}
			data := buf[pos : pos+msize]
			pos += msize
			if rem := pos % 8; rem != 0 {
				pos += 8 - rem
			}

			if err := h.add(mtype, flags, 0, data, sb, &pending); err != nil {
				return err
			}
		}
	}
	return nil
}

// readV2 decodes a version 2 header.
// Prefix: "OHDR", version, flags, optional times (16), optional phase
// change limits (4), chunk #0 size (1, 2, 4 or 8 bytes by flags). Each
// chunk ends with a 4-byte checksum, which is not verified. Continuation
// chunks start with "OCHK".
func (h *ObjectHeader) readV2(r io.ReaderAt, address uint64, sb *Superblock) error {
	pos := uint64(6)
	if h.Flags&ohdrStoreTimes != 0 {
		pos += 16
	}
	if h.Flags&ohdrStorePhaseLimit != 0 {
		pos += 4
	}
	sizeWidth := 1 << (h.Flags & ohdrChunkSizeMask)

	field := make([]byte, sizeWidth)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(field, int64(address+pos)); err != nil {
		return utils.WrapError("chunk size read failed", err)
	}
	chunk0 := utils.DecodeUint(field, sizeWidth, sb.Endianness)
	//nolint:gosec // G115: sizeWidth is at most 8
	start := address + pos + uint64(sizeWidth)

	pending := []continuation{{addr: start, length: chunk0}}
	first := true
	seen := map[uint64]bool{}

	for len(pending) > 0 {
		blk := pending[0]
		pending = pending[1:]
		if seen[blk.addr] {
			return fmt.Errorf("continuation loop at 0x%X", blk.addr)
		}
		seen[blk.addr] = true

		buf, err := readBlock(r, blk.addr, blk.length)
		if err != nil {
			return err
		}
		if !first {
			if len(buf) < 8 || string(buf[:4]) != "OCHK" {
				return fmt.Errorf("invalid continuation chunk signature at 0x%X", blk.addr)
			}
			buf = buf[4 : len(buf)-4]
		}
		first = false

		hdr := 4
		if h.Flags&ohdrTrackCrtOrder != 0 {
			hdr = 6
		}
		for pos := 0; pos+hdr <= len(buf); {
			mtype := MessageType(buf[pos])
			msize := int(sb.Endianness.Uint16(buf[pos+1:]))
			flags := buf[pos+3]
			var order uint16
			if hdr == 6 {
				order = sb.Endianness.Uint16(buf[pos+4:])
			}
			pos += hdr
			if pos+msize > len(buf) {
				return fmt.Errorf("message type 0x%04X overruns chunk (%d > %d)", mtype, pos+msize, len(buf))
			}
			data := buf[pos : pos+msize]
			pos += msize

			if err := h.add(mtype, flags, order, data, sb, &pending); err != nil {
				return err
			}
		}
	}
	return nil
}

// add records one message, queueing continuation blocks instead of storing them.
func (h *ObjectHeader) add(t MessageType, flags uint8, order uint16, data []byte, sb *Superblock, pending *[]continuation) error {
	switch t {
	case MsgNil:
		return nil
	case MsgContinuation:
		c, err := parseContinuation(data, sb)
		if err != nil {
			return err
		}
		*pending = append(*pending, c)
		return nil
	}
	if len(h.Messages) >= maxHeaderMessages {
		return fmt.Errorf("object header has more than %d messages", maxHeaderMessages)
	}
	body := make([]byte, len(data))
	copy(body, data)
	h.Messages = append(h.Messages, &HeaderMessage{
		Type:          t,
		Flags:         flags,
		CreationOrder: order,
		Data:          body,
	})
	return nil
}
