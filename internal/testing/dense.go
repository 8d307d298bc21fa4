package testing

import (
	"encoding/binary"
)

// Fractal heap geometry of dense storage built here: one root direct block
// with 4-byte heap offsets and 2-byte lengths.
const (
	heapBlockSize  = 4096
	heapIDLength   = 8
	heapBlockStart = 5 + offsetSize + 4
	btreeNodeSize  = 512
)

// DenseGroup writes a group whose links and attributes live in fractal
// heaps indexed by version 2 B-trees, the way HDF5 stores groups with many
// members or attributes.
func (b *Builder) DenseGroup(members []Member, attrs ...Attr) uint64 {
	linkMsgs := make([][]byte, len(members))
	for i, m := range members {
		linkMsgs[i] = b.link(m, i)
	}
	linkHeap, linkIDs := b.fractalHeap(linkMsgs)
	linkRecords := make([][]byte, len(linkIDs))
	for i, id := range linkIDs {
		linkRecords[i] = append(binary.LittleEndian.AppendUint32(nil, uint32(i)), id...) //nolint:gosec // G115: test groups are small
	}
	linkIndex := b.btreeV2(5, 4+heapIDLength, linkRecords)

	li := []byte{0, 0}
	li = appendAddr(li, linkHeap)
	li = appendAddr(li, linkIndex)
	msgs := []message{
		{typ: 0x02, data: li},
		{typ: 0x0A, data: []byte{0, 0}},
	}
	if len(attrs) > 0 {
		msgs = append(msgs, message{typ: 0x15, data: b.denseAttributes(attrs)})
	}
	return b.header(msgs)
}

// denseAttributes stores attrs densely and returns the attribute info
// message.
func (b *Builder) denseAttributes(attrs []Attr) []byte {
	encoded := make([][]byte, len(attrs))
	for i, a := range attrs {
		encoded[i] = b.attribute(a)
	}
	heap, ids := b.fractalHeap(encoded)
	records := make([][]byte, len(ids))
	for i, id := range ids {
		rec := append([]byte(nil), id...)
		rec = append(rec, 0)
		rec = binary.LittleEndian.AppendUint32(rec, uint32(i)) //nolint:gosec // G115: test attributes are few
		rec = binary.LittleEndian.AppendUint32(rec, 0)
		records[i] = rec
	}
	index := b.btreeV2(8, heapIDLength+9, records)

	ai := []byte{0, 0}
	ai = appendAddr(ai, heap)
	return appendAddr(ai, index)
}

// fractalHeap stores objs in a new heap and returns the heap header
// address and one managed heap ID per object.
func (b *Builder) fractalHeap(objs [][]byte) (uint64, [][]byte) {
	headerAddr := b.alloc(22 + 3*offsetSize + 12*lengthSize)

	block := make([]byte, heapBlockSize)
	copy(block, "FHDB")
	binary.LittleEndian.PutUint64(block[5:], headerAddr)
	pos := heapBlockStart
	ids := make([][]byte, len(objs))
	for i, o := range objs {
		copy(block[pos:], o)
		id := []byte{0}
		id = binary.LittleEndian.AppendUint32(id, uint32(pos))    //nolint:gosec // G115: bounded by block size
		id = binary.LittleEndian.AppendUint16(id, uint16(len(o))) //nolint:gosec // G115: bounded by block size
		ids[i] = append(id, 0)
		pos += len(o)
	}
	blockAddr := b.write(block)

	h := []byte("FRHP")
	h = append(h, 0)
	h = binary.LittleEndian.AppendUint16(h, heapIDLength)
	h = binary.LittleEndian.AppendUint16(h, 0)
	h = append(h, 0)
	h = binary.LittleEndian.AppendUint32(h, heapBlockSize)
	h = binary.LittleEndian.AppendUint64(h, 0)  // next huge ID
	h = appendAddr(h, Undefined)                // huge object B-tree
	h = binary.LittleEndian.AppendUint64(h, 0)  // free space
	h = appendAddr(h, Undefined)                // free space manager
	h = binary.LittleEndian.AppendUint64(h, heapBlockSize)
	h = binary.LittleEndian.AppendUint64(h, heapBlockSize)
	h = binary.LittleEndian.AppendUint64(h, uint64(pos)) //nolint:gosec // G115: bounded by block size
	h = binary.LittleEndian.AppendUint64(h, uint64(len(objs)))
	h = append(h, make([]byte, 4*lengthSize)...) // huge and tiny statistics
	h = binary.LittleEndian.AppendUint16(h, 4)
	h = binary.LittleEndian.AppendUint64(h, heapBlockSize)
	h = binary.LittleEndian.AppendUint64(h, 65536)
	h = binary.LittleEndian.AppendUint16(h, 32)
	h = binary.LittleEndian.AppendUint16(h, 0)
	h = appendAddr(h, blockAddr)
	h = binary.LittleEndian.AppendUint16(h, 0)
	copy(b.buf[headerAddr:], h)
	return headerAddr, ids
}

// btreeV2 writes a depth-0 version 2 B-tree holding records and returns
// its header address. Records are stored in reverse, as a name hash
// order would scramble them.
func (b *Builder) btreeV2(typ byte, recordSize int, records [][]byte) uint64 {
	leaf := make([]byte, btreeNodeSize)
	copy(leaf, "BTLF")
	leaf[5] = typ
	pos := 6
	for i := len(records) - 1; i >= 0; i-- {
		copy(leaf[pos:], records[i])
		pos += recordSize
	}
	leafAddr := b.write(leaf)

	h := []byte("BTHD")
	h = append(h, 0, typ)
	h = binary.LittleEndian.AppendUint32(h, btreeNodeSize)
	h = binary.LittleEndian.AppendUint16(h, uint16(recordSize)) //nolint:gosec // G115: record sizes are small
	h = binary.LittleEndian.AppendUint16(h, 0)
	h = append(h, 100, 40)
	h = appendAddr(h, leafAddr)
	h = binary.LittleEndian.AppendUint16(h, uint16(len(records))) //nolint:gosec // G115: test trees are small
	h = binary.LittleEndian.AppendUint64(h, uint64(len(records)))
	h = append(h, 0, 0, 0, 0)
	return b.write(h)
}
