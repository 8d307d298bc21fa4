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

// ReadDenseLinks returns the links of a group that stores them in a fractal
// heap, indexed by name. Link name records are a 4-byte name hash followed
// by the heap ID.
func ReadDenseLinks(r io.ReaderAt, li *core.LinkInfo, sb *core.Superblock) ([]*core.Link, error) {
	fh, err := OpenFractalHeap(r, li.FractalHeap, sb)
	if err != nil {
		return nil, utils.WrapError("link heap", err)
	}
	bt, err := ReadBTreeV2(r, li.NameIndex, sb)
	if err != nil {
		return nil, utils.WrapError("link name index", err)
	}
	if bt.Type != RecordLinkName {
		return nil, fmt.Errorf("link name index has record type %d", bt.Type)
	}
	records, err := bt.Records(r, sb)
	if err != nil {
		return nil, err
	}

	links := make([]*core.Link, 0, len(records))
	for _, rec := range records {
		obj, err := fh.Object(rec[4:])
		if err != nil {
			return nil, utils.WrapError("link message", err)
		}
		l, err := core.ParseLink(obj, sb)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

// ReadDenseAttributes returns the attributes an object stores in a fractal
// heap, in creation order. Attribute name records are heap ID (8), message
// flags (1), creation order (4) and name hash (4).
func ReadDenseAttributes(r io.ReaderAt, ai *core.AttributeInfo, sb *core.Superblock) ([]*core.Attribute, error) {
	fh, err := OpenFractalHeap(r, ai.FractalHeap, sb)
	if err != nil {
		return nil, utils.WrapError("attribute heap", err)
	}
	bt, err := ReadBTreeV2(r, ai.NameIndex, sb)
	if err != nil {
		return nil, utils.WrapError("attribute name index", err)
	}
	if bt.Type != RecordAttributeName {
		return nil, fmt.Errorf("attribute name index has record type %d", bt.Type)
	}
	records, err := bt.Records(r, sb)
	if err != nil {
		return nil, err
	}

	type ordered struct {
		order uint32
		attr  *core.Attribute
	}
	attrs := make([]ordered, 0, len(records))
	for _, rec := range records {
		if len(rec) < 13 {
			return nil, fmt.Errorf("attribute name record too short: %d bytes", len(rec))
		}
		if rec[8]&core.MsgFlagShared != 0 {
			return nil, errors.New("shared attribute messages are not supported")
		}
		obj, err := fh.Object(rec[:8])
		if err != nil {
			return nil, utils.WrapError("attribute message", err)
		}
		a, err := core.ParseAttribute(obj, sb)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, ordered{order: binary.LittleEndian.Uint32(rec[9:]), attr: a})
	}
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].order < attrs[j].order })

	out := make([]*core.Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = a.attr
	}
	return out, nil
}
