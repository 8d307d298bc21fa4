package testing

import (
	"encoding/binary"
	"sort"
)

// Format selects the generation of HDF5 structures a Builder writes.
type Format int

// Formats.
const (
	// FormatV2 writes a version 2 superblock, version 2 object headers and
	// link messages, like netCDF-C with the latest library format.
	FormatV2 Format = iota
	// FormatV0 writes a version 0 superblock, version 1 object headers and
	// symbol table groups, like netCDF-C with default settings.
	FormatV0
)

const (
	offsetSize = 8
	lengthSize = 8
)

// Undefined is the undefined address.
const Undefined = ^uint64(0)

// Member is a link from a group to an object header.
type Member struct {
	Name    string
	Address uint64
}

// Builder lays out an HDF5 file in memory. Objects are appended as they
// are created, so children are built before the groups that link them.
// Addresses are relative to the superblock.
type Builder struct {
	format Format
	buf    []byte

	// UserBlock is the number of zero bytes placed before the superblock.
	UserBlock int
	// NoCreationOrder leaves creation order out of version 2 link
	// messages, so readers fall back to name order.
	NoCreationOrder bool
}

// NewBuilder starts a file of the given format.
func NewBuilder(format Format) *Builder {
	b := &Builder{format: format}
	b.alloc(b.superblockSize())
	return b
}

// Format returns the format being written.
func (b *Builder) Format() Format { return b.format }

func (b *Builder) superblockSize() int {
	if b.format == FormatV0 {
		return 96
	}
	return 48
}

// alloc appends n zero bytes at an 8-byte aligned address.
func (b *Builder) alloc(n int) uint64 {
	for len(b.buf)%8 != 0 {
		b.buf = append(b.buf, 0)
	}
	addr := uint64(len(b.buf))
	b.buf = append(b.buf, make([]byte, n)...)
	return addr
}

// write appends data and returns its address.
func (b *Builder) write(data []byte) uint64 {
	addr := b.alloc(len(data))
	copy(b.buf[addr:], data)
	return addr
}

func appendAddr(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

// message is one header message before encoding.
type message struct {
	typ  uint16
	data []byte
}

// header writes an object header holding msgs.
func (b *Builder) header(msgs []message) uint64 {
	if b.format == FormatV0 {
		var body []byte
		for _, m := range msgs {
			body = binary.LittleEndian.AppendUint16(body, m.typ)
			body = binary.LittleEndian.AppendUint16(body, uint16((len(m.data)+7)&^7)) //nolint:gosec // G115: test messages are small
			body = append(body, 0, 0, 0, 0)
			body = append(body, m.data...)
			for len(body)%8 != 0 {
				body = append(body, 0)
			}
		}
		prefix := []byte{1, 0}
		prefix = binary.LittleEndian.AppendUint16(prefix, uint16(len(msgs))) //nolint:gosec // G115: test headers are small
		prefix = binary.LittleEndian.AppendUint32(prefix, 1)
		prefix = binary.LittleEndian.AppendUint32(prefix, uint32(len(body))) //nolint:gosec // G115: test headers are small
		prefix = append(prefix, 0, 0, 0, 0)
		return b.write(append(prefix, body...))
	}

	var body []byte
	for _, m := range msgs {
		body = append(body, byte(m.typ))
		body = binary.LittleEndian.AppendUint16(body, uint16(len(m.data))) //nolint:gosec // G115: test messages are small
		body = append(body, 0)
		body = append(body, m.data...)
	}
	out := []byte("OHDR")
	out = append(out, 2, 0x02)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body))) //nolint:gosec // G115: test headers are small
	out = append(out, body...)
	out = append(out, 0, 0, 0, 0) // checksum, not verified by the reader
	return b.write(out)
}

// dataspace encodes a dataspace message; nil dims is a scalar.
func (b *Builder) dataspace(dims, maxDims []uint64) []byte {
	var flags byte
	if maxDims != nil {
		flags = 0x01
	}
	var out []byte
	if b.format == FormatV0 {
		out = []byte{1, byte(len(dims)), flags, 0, 0, 0, 0, 0}
	} else {
		typ := byte(1)
		if dims == nil {
			typ = 0
		}
		out = []byte{2, byte(len(dims)), flags, typ}
	}
	for _, d := range dims {
		out = binary.LittleEndian.AppendUint64(out, d)
	}
	for _, d := range maxDims {
		out = binary.LittleEndian.AppendUint64(out, d)
	}
	return out
}

// attribute encodes an attribute message.
func (b *Builder) attribute(a Attr) []byte {
	name := append([]byte(a.Name), 0)
	ds := b.dataspace(a.Dims, nil)
	pad := func(p []byte) []byte { return p }
	var out []byte
	if b.format == FormatV0 {
		out = []byte{1, 0}
		pad = func(p []byte) []byte {
			for len(p)%8 != 0 {
				p = append(p, 0)
			}
			return p
		}
	} else {
		out = []byte{3, 0}
	}
	out = binary.LittleEndian.AppendUint16(out, uint16(len(name)))       //nolint:gosec // G115: test names are short
	out = binary.LittleEndian.AppendUint16(out, uint16(len(a.Type.Raw))) //nolint:gosec // G115: test types are small
	out = binary.LittleEndian.AppendUint16(out, uint16(len(ds)))         //nolint:gosec // G115: test dataspaces are small
	if b.format != FormatV0 {
		out = append(out, 0)
	}
	out = append(out, pad(name)...)
	out = append(out, pad(append([]byte(nil), a.Type.Raw...))...)
	out = append(out, pad(ds)...)
	return append(out, a.Data...)
}

// Group writes a group linking members and returns its header address.
func (b *Builder) Group(members []Member, attrs ...Attr) uint64 {
	var msgs []message
	if b.format == FormatV0 {
		msgs = append(msgs, message{typ: 0x11, data: b.symbolTable(members)})
	} else {
		li := []byte{0, 0}
		li = appendAddr(li, Undefined)
		li = appendAddr(li, Undefined)
		msgs = append(msgs,
			message{typ: 0x02, data: li},
			message{typ: 0x0A, data: []byte{0, 0}},
		)
		for i, m := range members {
			msgs = append(msgs, message{typ: 0x06, data: b.link(m, i)})
		}
	}
	for _, a := range attrs {
		msgs = append(msgs, message{typ: 0x0C, data: b.attribute(a)})
	}
	return b.header(msgs)
}

func (b *Builder) link(m Member, order int) []byte {
	flags := byte(0)
	if !b.NoCreationOrder {
		flags |= 0x04
	}
	out := []byte{1, flags}
	if !b.NoCreationOrder {
		out = binary.LittleEndian.AppendUint64(out, uint64(order)) //nolint:gosec // G115: order is non-negative
	}
	out = append(out, byte(len(m.Name)))
	out = append(out, m.Name...)
	return appendAddr(out, m.Address)
}

// symbolTable writes the local heap, symbol table node and group B-tree of
// an old-style group and returns the symbol table message.
func (b *Builder) symbolTable(members []Member) []byte {
	sorted := append([]Member(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	heapData := []byte{0}
	offsets := make([]uint64, len(sorted))
	for i, m := range sorted {
		for len(heapData)%8 != 0 {
			heapData = append(heapData, 0)
		}
		offsets[i] = uint64(len(heapData))
		heapData = append(heapData, m.Name...)
		heapData = append(heapData, 0)
	}
	for len(heapData)%8 != 0 {
		heapData = append(heapData, 0)
	}
	dataAddr := b.write(heapData)
	heap := []byte("HEAP")
	heap = append(heap, 0, 0, 0, 0)
	heap = binary.LittleEndian.AppendUint64(heap, uint64(len(heapData)))
	heap = binary.LittleEndian.AppendUint64(heap, Undefined)
	heap = appendAddr(heap, dataAddr)
	heapAddr := b.write(heap)

	node := []byte("SNOD")
	node = append(node, 1, 0)
	node = binary.LittleEndian.AppendUint16(node, uint16(len(sorted))) //nolint:gosec // G115: test groups are small
	for i, m := range sorted {
		node = appendAddr(node, offsets[i])
		node = appendAddr(node, m.Address)
		node = append(node, make([]byte, 24)...)
	}
	nodeAddr := b.write(node)

	tree := []byte("TREE")
	tree = append(tree, 0, 0, 1, 0)
	tree = appendAddr(tree, Undefined)
	tree = appendAddr(tree, Undefined)
	tree = binary.LittleEndian.AppendUint64(tree, 0)
	tree = appendAddr(tree, nodeAddr)
	var last uint64
	if n := len(offsets); n > 0 {
		last = offsets[n-1]
	}
	tree = binary.LittleEndian.AppendUint64(tree, last)
	treeAddr := b.write(tree)

	msg := appendAddr(nil, treeAddr)
	return appendAddr(msg, heapAddr)
}

// HeapObjects writes a global heap collection holding objs and returns
// its address. Object i has heap index i+1.
func (b *Builder) HeapObjects(objs ...[]byte) uint64 {
	var body []byte
	for i, o := range objs {
		body = binary.LittleEndian.AppendUint16(body, uint16(i+1)) //nolint:gosec // G115: test heaps are small
		body = binary.LittleEndian.AppendUint16(body, 1)
		body = append(body, 0, 0, 0, 0)
		body = binary.LittleEndian.AppendUint64(body, uint64(len(o)))
		body = append(body, o...)
		for len(body)%8 != 0 {
			body = append(body, 0)
		}
	}
	out := []byte("GCOL")
	out = append(out, 1, 0, 0, 0)
	out = binary.LittleEndian.AppendUint64(out, uint64(16+len(body)))
	return b.write(append(out, body...))
}

// VarStrings is a one-dimensional variable-length string attribute whose
// values live in a new global heap collection.
func (b *Builder) VarStrings(name string, values ...string) Attr {
	objs := make([][]byte, len(values))
	for i, v := range values {
		objs[i] = []byte(v)
	}
	return Attr{Name: name, Type: VarString(), Dims: []uint64{uint64(len(values))}, Data: b.vlenElements(objs, lengths(objs, 1))}
}

// DimensionList is the DIMENSION_LIST attribute of a dataset: one object
// reference to a dimension scale per axis.
func (b *Builder) DimensionList(scales ...uint64) Attr {
	objs := make([][]byte, len(scales))
	for i, s := range scales {
		objs[i] = appendAddr(nil, s)
	}
	return Attr{
		Name: "DIMENSION_LIST",
		Type: VarLenOf(ObjectRef()),
		Dims: []uint64{uint64(len(scales))},
		Data: b.vlenElements(objs, lengths(objs, 8)),
	}
}

func lengths(objs [][]byte, elem int) []uint32 {
	out := make([]uint32, len(objs))
	for i, o := range objs {
		out[i] = uint32(len(o) / elem) //nolint:gosec // G115: test objects are small
	}
	return out
}

// vlenElements stores objs in a collection and returns the
// variable-length elements that point at them.
func (b *Builder) vlenElements(objs [][]byte, counts []uint32) []byte {
	coll := b.HeapObjects(objs...)
	var out []byte
	for i := range objs {
		out = binary.LittleEndian.AppendUint32(out, counts[i])
		out = appendAddr(out, coll)
		out = binary.LittleEndian.AppendUint32(out, uint32(i+1)) //nolint:gosec // G115: test heaps are small
	}
	return out
}

// Bytes finishes the file with root as the root group and returns it,
// preceded by the user block.
func (b *Builder) Bytes(root uint64) []byte {
	sb := []byte("\x89HDF\r\n\x1a\n")
	eof := uint64(len(b.buf))
	if b.format == FormatV0 {
		sb = append(sb, 0, 0, 0, 0, 0, offsetSize, lengthSize, 0)
		sb = binary.LittleEndian.AppendUint16(sb, 4)
		sb = binary.LittleEndian.AppendUint16(sb, 16)
		sb = binary.LittleEndian.AppendUint32(sb, 0)
		sb = appendAddr(sb, 0)
		sb = appendAddr(sb, Undefined)
		sb = appendAddr(sb, eof)
		sb = appendAddr(sb, Undefined)
		sb = appendAddr(sb, 0)
		sb = appendAddr(sb, root)
		sb = binary.LittleEndian.AppendUint32(sb, 0)
		sb = binary.LittleEndian.AppendUint32(sb, 0)
		sb = append(sb, make([]byte, 16)...)
	} else {
		sb = append(sb, 2, offsetSize, lengthSize, 0)
		sb = appendAddr(sb, 0)
		sb = appendAddr(sb, Undefined)
		sb = appendAddr(sb, eof)
		sb = appendAddr(sb, root)
		sb = append(sb, 0, 0, 0, 0)
	}
	copy(b.buf, sb)

	out := make([]byte, b.UserBlock+len(b.buf))
	copy(out[b.UserBlock:], b.buf)
	return out
}
