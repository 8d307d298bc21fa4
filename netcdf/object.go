package netcdf

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Grismar/netcdfproc/internal/core"
	"github.com/Grismar/netcdfproc/internal/structures"
	"github.com/Grismar/netcdfproc/internal/utils"
)

// rawAttributes returns the attribute messages of an object: those in its
// header in message order, then the densely stored ones in creation order.
func (f *File) rawAttributes(h *core.ObjectHeader) ([]*core.Attribute, error) {
	var out []*core.Attribute
	for _, m := range h.FindAll(core.MsgAttribute) {
		if m.IsShared() {
			f.opts.log.WithField("object", h.Address).Debug("skipping shared attribute message")
			continue
		}
		a, err := core.ParseAttribute(m.Data, f.sb)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	m := h.Find(core.MsgAttributeInfo)
	if m == nil {
		return out, nil
	}
	ai, err := core.ParseAttributeInfo(m.Data, f.sb)
	if err != nil {
		return nil, err
	}
	if f.sb.IsUndefined(ai.FractalHeap) {
		return out, nil
	}
	dense, err := structures.ReadDenseAttributes(f.r, ai, f.sb)
	if err != nil {
		return nil, utils.WrapError("dense attributes", err)
	}
	return append(out, dense...), nil
}

// member is a hard link from a group to an object header.
type member struct {
	name    string
	address uint64
	order   uint64
	ordered bool
}

// members lists the hard links of a group header. Links are returned in
// creation order when every link records one, otherwise by name, which is
// how netCDF-C iterates groups.
func (f *File) members(h *core.ObjectHeader) ([]member, error) {
	var out []member

	switch {
	case h.Find(core.MsgSymbolTable) != nil:
		st, err := core.ParseSymbolTable(h.Find(core.MsgSymbolTable).Data, f.sb)
		if err != nil {
			return nil, err
		}
		entries, err := structures.ReadSymbolTable(f.r, st.BTree, st.LocalHeap, f.sb)
		if err != nil {
			return nil, utils.WrapError("symbol table", err)
		}
		for _, e := range entries {
			out = append(out, member{name: e.Name, address: e.Address})
		}
	default:
		var links []*core.Link
		if m := h.Find(core.MsgLinkInfo); m != nil {
			li, err := core.ParseLinkInfo(m.Data, f.sb)
			if err != nil {
				return nil, err
			}
			if !f.sb.IsUndefined(li.FractalHeap) {
				if links, err = structures.ReadDenseLinks(f.r, li, f.sb); err != nil {
					return nil, utils.WrapError("dense links", err)
				}
			}
		}
		for _, m := range h.FindAll(core.MsgLink) {
			l, err := core.ParseLink(m.Data, f.sb)
			if err != nil {
				return nil, err
			}
			links = append(links, l)
		}
		for _, l := range links {
			if l.Type != core.LinkHard {
				f.opts.log.WithFields(logrus.Fields{"link": l.Name, "type": l.Type}).Debug("skipping non-hard link")
				continue
			}
			out = append(out, member{name: l.Name, address: l.Address, order: l.CreationOrder, ordered: l.HasOrder})
		}
	}

	byOrder := len(out) > 0
	for _, m := range out {
		byOrder = byOrder && m.ordered
	}
	sort.SliceStable(out, func(i, j int) bool {
		if byOrder {
			return out[i].order < out[j].order
		}
		return out[i].name < out[j].name
	})
	return out, nil
}

// isGroup reports whether a header describes a group.
func isGroup(h *core.ObjectHeader) bool {
	return h.Find(core.MsgSymbolTable) != nil ||
		h.Find(core.MsgLinkInfo) != nil ||
		h.Find(core.MsgGroupInfo) != nil ||
		h.Find(core.MsgLink) != nil
}
