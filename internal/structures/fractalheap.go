package structures

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Grismar/netcdfproc/internal/core"
	"github.com/Grismar/netcdfproc/internal/utils"
)

// Fractal heap signatures.
const (
	FractalHeapSignature   = "FRHP"
	DirectBlockSignature   = "FHDB"
	IndirectBlockSignature = "FHIB"
)

// Heap ID types, bits 4-5 of the first ID byte.
const (
	heapIDManaged = 0x00
	heapIDHuge    = 0x10
	heapIDTiny    = 0x20
	heapIDMask    = 0x30
)

const maxIndirectDepth = 16

// FractalHeap reads managed and tiny objects from a fractal heap, the
// storage dense groups use for link and attribute messages.
type FractalHeap struct {
	r  io.ReaderAt
	sb *core.Superblock

	IDLength       uint16
	FilterLength   uint16
	MaxManagedSize uint32
	TableWidth     uint16
	StartBlockSize uint64
	MaxDirectSize  uint64
	MaxHeapBits    uint16
	RootAddress    uint64
	RootRows       uint16

	offsetSize int
	lengthSize int
	maxDirRows int

	blocks []directBlock
}

type directBlock struct {
	offset, address, size uint64
}

// OpenFractalHeap reads the heap header at address and indexes its direct
// blocks.
//
// Header: "FRHP", version, heap ID length (2), filter info length (2),
// flags, max managed object size (4), next huge ID (L), huge B-tree (O),
// free space (L), free space manager (O), managed space (L), allocated
// managed space (L), iterator offset (L), managed count (L), huge size (L),
// huge count (L), tiny size (L), tiny count (L), table width (2), starting
// block size (L), max direct block size (L), max heap size in bits (2),
// starting root rows (2), root block (O), current root rows (2).
func OpenFractalHeap(r io.ReaderAt, address uint64, sb *core.Superblock) (*FractalHeap, error) {
	if address == 0 || sb.IsUndefined(address) {
		return nil, fmt.Errorf("invalid fractal heap address: 0x%X", address)
	}
	o, l := int(sb.OffsetSize), int(sb.LengthSize)
	size := 22 + 3*o + 12*l
	buf := make([]byte, size)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(buf, int64(address)); err != nil {
		return nil, utils.WrapError("fractal heap header read failed", err)
	}
	if string(buf[:4]) != FractalHeapSignature {
		return nil, fmt.Errorf("invalid fractal heap signature at 0x%X", address)
	}
	if buf[4] != 0 {
		return nil, fmt.Errorf("unsupported fractal heap version: %d", buf[4])
	}

	fh := &FractalHeap{
		r:              r,
		sb:             sb,
		IDLength:       binary.LittleEndian.Uint16(buf[5:]),
		FilterLength:   binary.LittleEndian.Uint16(buf[7:]),
		MaxManagedSize: binary.LittleEndian.Uint32(buf[10:]),
	}
	// Skip the huge-object, free-space and statistics fields.
	pos := 14 + 2*o + 10*l
	fh.TableWidth = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	fh.StartBlockSize = sb.ReadLength(buf[pos:])
	pos += l
	fh.MaxDirectSize = sb.ReadLength(buf[pos:])
	pos += l
	fh.MaxHeapBits = binary.LittleEndian.Uint16(buf[pos:])
	pos += 4 // max heap size, starting root rows
	fh.RootAddress = sb.ReadAddress(buf[pos:])
	pos += o
	fh.RootRows = binary.LittleEndian.Uint16(buf[pos:])

	if fh.FilterLength > 0 {
		return nil, errors.New("filtered fractal heaps are not supported")
	}
	if fh.TableWidth == 0 || fh.StartBlockSize == 0 || fh.MaxDirectSize < fh.StartBlockSize {
		return nil, fmt.Errorf("invalid fractal heap doubling table: width %d, start %d, max direct %d",
			fh.TableWidth, fh.StartBlockSize, fh.MaxDirectSize)
	}

	fh.offsetSize = (int(fh.MaxHeapBits) + 7) / 8
	fh.lengthSize = (int(utils.Log2Floor(fh.MaxDirectSize)) + 7) / 8
	if n := utils.LimitEncSize(uint64(fh.MaxManagedSize)); n < fh.lengthSize {
		fh.lengthSize = n
	}
	fh.maxDirRows = int(utils.Log2Floor(fh.MaxDirectSize)) - int(utils.Log2Floor(fh.StartBlockSize)) + 2

	if err := fh.index(); err != nil {
		return nil, err
	}
	return fh, nil
}

// rowBlockSize is the size of blocks in row r of the doubling table.
func (fh *FractalHeap) rowBlockSize(row int) uint64 {
	if row == 0 {
		return fh.StartBlockSize
	}
	return fh.StartBlockSize << uint(row-1) //nolint:gosec // G115: row is bounded
}

// index records the heap offset, address and size of every direct block.
func (fh *FractalHeap) index() error {
	if fh.sb.IsUndefined(fh.RootAddress) {
		return nil
	}
	if fh.RootRows == 0 {
		fh.blocks = append(fh.blocks, directBlock{offset: 0, address: fh.RootAddress, size: fh.StartBlockSize})
		return nil
	}
	if err := fh.walkIndirect(fh.RootAddress, 0, int(fh.RootRows), 0); err != nil {
		return err
	}
	sort.Slice(fh.blocks, func(i, j int) bool { return fh.blocks[i].offset < fh.blocks[j].offset })
	return nil
}

// walkIndirect reads an indirect block: "FHIB", version, heap header
// address (O), block offset, then width entries per row. Rows below the
// direct row limit hold direct block addresses, the rest indirect ones.
func (fh *FractalHeap) walkIndirect(address, offset uint64, rows, depth int) error {
	if depth > maxIndirectDepth {
		return errors.New("fractal heap indirect blocks nested too deeply")
	}
	o := int(fh.sb.OffsetSize)
	w := int(fh.TableWidth)
	entries := rows * w
	buf := make([]byte, 5+o+fh.offsetSize+entries*o)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := fh.r.ReadAt(buf, int64(address)); err != nil {
		return utils.WrapError("fractal heap indirect block read failed", err)
	}
	if string(buf[:4]) != IndirectBlockSignature {
		return fmt.Errorf("invalid fractal heap indirect block signature at 0x%X", address)
	}

	pos := 5 + o + fh.offsetSize
	start := offset
	for row := 0; row < rows; row++ {
		size := fh.rowBlockSize(row)
		for col := 0; col < w; col++ {
			child := fh.sb.ReadAddress(buf[pos:])
			pos += o
			blockOffset := start + uint64(col)*size //nolint:gosec // G115: col is bounded
			if fh.sb.IsUndefined(child) || child == 0 {
				continue
			}
			if row < fh.maxDirRows {
				fh.blocks = append(fh.blocks, directBlock{offset: blockOffset, address: child, size: size})
				continue
			}
			childRows := int(utils.Log2Floor(size)) - int(utils.Log2Floor(fh.StartBlockSize*uint64(w))) + 1
			if err := fh.walkIndirect(child, blockOffset, childRows, depth+1); err != nil {
				return err
			}
		}
		start += uint64(w) * size //nolint:gosec // G115: width is bounded
	}
	return nil
}

// Object returns the object a heap ID refers to.
func (fh *FractalHeap) Object(id []byte) ([]byte, error) {
	if len(id) == 0 {
		return nil, errors.New("empty heap ID")
	}
	switch id[0] & heapIDMask {
	case heapIDTiny:
		return fh.tiny(id)
	case heapIDManaged:
		return fh.managed(id)
	case heapIDHuge:
		return nil, errors.New("huge fractal heap objects are not supported")
	}
	return nil, fmt.Errorf("invalid heap ID type 0x%02X", id[0]&heapIDMask)
}

// tiny objects are stored in the ID itself. IDs longer than 18 bytes use
// an extra length byte.
func (fh *FractalHeap) tiny(id []byte) ([]byte, error) {
	n := int(id[0]&0x0F) + 1
	start := 1
	if fh.IDLength > 18 {
		if len(id) < 2 {
			return nil, errors.New("tiny heap ID truncated")
		}
		n = (int(id[0]&0x0F)<<8 | int(id[1])) + 1
		start = 2
	}
	if start+n > len(id) {
		return nil, errors.New("tiny heap object truncated")
	}
	return append([]byte(nil), id[start:start+n]...), nil
}

// managed objects are addressed by heap offset and length; the object
// sits at its offset relative to the start of the containing direct block.
func (fh *FractalHeap) managed(id []byte) ([]byte, error) {
	if len(id) < 1+fh.offsetSize+fh.lengthSize {
		return nil, errors.New("managed heap ID truncated")
	}
	off := utils.DecodeUint(id[1:], fh.offsetSize, binary.LittleEndian)
	length := utils.DecodeUint(id[1+fh.offsetSize:], fh.lengthSize, binary.LittleEndian)
	if err := utils.ValidateBufferSize(length, utils.MaxHeapObjectSize, "fractal heap object"); err != nil {
		return nil, err
	}

	i := sort.Search(len(fh.blocks), func(i int) bool { return fh.blocks[i].offset > off }) - 1
	if i < 0 || off+length > fh.blocks[i].offset+fh.blocks[i].size {
		return nil, fmt.Errorf("heap offset %d (length %d) not in any direct block", off, length)
	}
	blk := fh.blocks[i]

	if err := fh.checkDirect(blk.address); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := fh.r.ReadAt(out, int64(blk.address+(off-blk.offset))); err != nil {
		return nil, utils.WrapError("fractal heap object read failed", err)
	}
	return out, nil
}

func (fh *FractalHeap) checkDirect(address uint64) error {
	sig := make([]byte, 4)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := fh.r.ReadAt(sig, int64(address)); err != nil {
		return utils.WrapError("fractal heap direct block read failed", err)
	}
	if string(sig) != DirectBlockSignature {
		return fmt.Errorf("invalid fractal heap direct block signature at 0x%X", address)
	}
	return nil
}
