package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Grismar/netcdfproc/internal/utils"
)

// GlobalHeapSignature starts every global heap collection.
const GlobalHeapSignature = "GCOL"

// HeapID locates one object in the global heap: a collection address and
// an object index inside it. Variable-length data and dimension lists
// store these.
type HeapID struct {
	Collection uint64
	Index      uint32
}

// ParseHeapID decodes a collection address followed by a 4-byte index.
func ParseHeapID(data []byte, sb *Superblock) HeapID {
	return HeapID{
		Collection: sb.ReadAddress(data),
		Index:      binary.LittleEndian.Uint32(data[sb.OffsetSize:]),
	}
}

// GlobalHeap reads objects from global heap collections. Each collection
// is read once and cached; a GlobalHeap is safe for concurrent use.
type GlobalHeap struct {
	r  io.ReaderAt
	sb *Superblock

	mu          sync.Mutex
	collections map[uint64]map[uint32][]byte
}

// NewGlobalHeap returns a reader for the global heap of a file.
func NewGlobalHeap(r io.ReaderAt, sb *Superblock) *GlobalHeap {
	return &GlobalHeap{r: r, sb: sb, collections: make(map[uint64]map[uint32][]byte)}
}

// Object returns the data of the object id refers to.
func (g *GlobalHeap) Object(id HeapID) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	objs, ok := g.collections[id.Collection]
	if !ok {
		var err error
		if objs, err = g.readCollection(id.Collection); err != nil {
			return nil, utils.WrapError(fmt.Sprintf("global heap collection 0x%X", id.Collection), err)
		}
		g.collections[id.Collection] = objs
	}
	data, ok := objs[id.Index]
	if !ok {
		return nil, fmt.Errorf("global heap collection 0x%X has no object %d", id.Collection, id.Index)
	}
	return data, nil
}

// readCollection decodes a collection: "GCOL", version 1, 3 reserved bytes,
// collection size, then objects of index (2), reference count (2),
// reserved (4), size (L) and data padded to 8 bytes. Index 0 is free space
// and ends the scan.
func (g *GlobalHeap) readCollection(addr uint64) (map[uint32][]byte, error) {
	l := int(g.sb.LengthSize)
	head := make([]byte, 8+l)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := g.r.ReadAt(head, int64(addr)); err != nil {
		return nil, err
	}
	if string(head[:4]) != GlobalHeapSignature {
		return nil, fmt.Errorf("invalid signature %q", head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("unsupported version %d", head[4])
	}
	size := g.sb.ReadLength(head[8:])
	if err := utils.ValidateBufferSize(size, utils.MaxHeapObjectSize, "global heap collection"); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := g.r.ReadAt(buf, int64(addr)); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	objs := make(map[uint32][]byte)
	for pos := 8 + l; pos+8+l <= len(buf); {
		idx := binary.LittleEndian.Uint16(buf[pos:])
		if idx == 0 {
			break
		}
		n := g.sb.ReadLength(buf[pos+8:])
		pos += 8 + l
		if n > uint64(len(buf)-pos) {
			return nil, fmt.Errorf("object %d overruns collection", idx)
		}
		objs[uint32(idx)] = buf[pos : pos+int(n)] //nolint:gosec // G115: bounded by collection size
		pos += (int(n) + 7) &^ 7                  //nolint:gosec // G115: bounded by collection size
	}
	return objs, nil
}
