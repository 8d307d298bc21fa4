// Package netcdf reads netCDF-4 files: the netCDF data model (groups,
// dimensions, variables, attributes) laid over the HDF5 file format.
// Classic netCDF-3 files are recognized so their data model can be
// reported, but their content is not read.
package netcdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Grismar/netcdfproc/internal/core"
	"github.com/Grismar/netcdfproc/internal/utils"
)

// Errors returned by Open and File methods.
var (
	// ErrUnknownFormat means the file is neither netCDF-3 nor HDF5.
	ErrUnknownFormat = errors.New("not a netCDF file")
	// ErrNotHDF5 means the file is a classic netCDF-3 file, whose content
	// this package does not read.
	ErrNotHDF5 = errors.New("netCDF-3 file content is not supported")
)

// File is an open netCDF file.
type File struct {
	closer io.Closer
	r      io.ReaderAt
	model  DataModel
	opts   options

	sb   *core.Superblock
	heap *core.GlobalHeap

	headers  map[uint64]*core.ObjectHeader
	dimNames map[uint64]string
	dimIDs   map[int32]string
	phony    int
	root     *Group
}

// Open opens the file at path.
func Open(path string, opts ...OpenOption) (*File, error) {
	//nolint:gosec // G304: opening user-provided files is the purpose of this package
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.WrapError("open", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, utils.WrapError("stat", err)
	}
	file, err := NewFile(f, fi.Size(), opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	file.closer = f
	return file, nil
}

// NewFile reads a netCDF file of the given size from r.
func NewFile(r io.ReaderAt, size int64, opts ...OpenOption) (*File, error) {
	f := &File{
		r:        r,
		opts:     defaultOptions(),
		headers:  make(map[uint64]*core.ObjectHeader),
		dimNames: make(map[uint64]string),
		dimIDs:   make(map[int32]string),
	}
	for _, opt := range opts {
		opt(&f.opts)
	}

	magic := make([]byte, 4)
	if _, err := r.ReadAt(magic, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, utils.WrapError("magic number read failed", err)
	}
	if model, ok := classicModel(magic); ok {
		f.model = model
		return f, nil
	}

	off, err := core.FindSignature(r, size)
	if err != nil {
		if errors.Is(err, core.ErrNoSignature) {
			return nil, ErrUnknownFormat
		}
		return nil, err
	}
	// Addresses are relative to the superblock; reading through a section
	// starting there lets every decoder use them directly.
	if off > 0 {
		f.r = io.NewSectionReader(r, off, size-off)
	}
	if f.sb, err = core.ReadSuperblock(f.r, 0); err != nil {
		return nil, utils.WrapError("superblock", err)
	}
	f.heap = core.NewGlobalHeap(f.r, f.sb)

	root, err := f.Root()
	if err != nil {
		return nil, err
	}
	f.model = NetCDF4
	if _, ok := root.rawAttribute(attrNC3Strict); ok {
		f.model = NetCDF4Classic
	}
	return f, nil
}

// classicModel recognizes the netCDF-3 magic numbers "CDF\x01",
// "CDF\x02" and "CDF\x05".
func classicModel(magic []byte) (DataModel, bool) {
	if len(magic) < 4 || !bytes.Equal(magic[:3], []byte("CDF")) {
		return "", false
	}
	switch magic[3] {
	case 1:
		return Classic, true
	case 2:
		return Offset64, true
	case 5:
		return Data64, true
	}
	return "", false
}

// DataModel returns the format variant of the file.
func (f *File) DataModel() DataModel {
	return f.model
}

// Root returns the root group.
func (f *File) Root() (*Group, error) {
	if f.sb == nil {
		return nil, ErrNotHDF5
	}
	if f.root == nil {
		h, err := f.header(f.sb.RootGroup)
		if err != nil {
			return nil, utils.WrapError("root group", err)
		}
		f.root = &Group{file: f, name: "/", hdr: h}
	}
	return f.root, nil
}

// Close closes the underlying file when the File was created by Open.
// It is safe to call Close more than once.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// Object is a group or a variable visited by Walk.
type Object interface {
	Name() string
}

// WalkFunc is called for every group and variable; path is the full path
// of the object.
type WalkFunc func(path string, obj Object) error

// Walk visits the root group and everything below it depth-first: a group,
// then its variables, then its subgroups.
func (f *File) Walk(fn WalkFunc) error {
	root, err := f.Root()
	if err != nil {
		return err
	}
	return walk(root, fn)
}

func walk(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g); err != nil {
		return err
	}
	vars, err := g.Variables()
	if err != nil {
		return err
	}
	for _, v := range vars {
		if err := fn(joinPath(g.Path(), v.Name()), v); err != nil {
			return err
		}
	}
	groups, err := g.Groups()
	if err != nil {
		return err
	}
	for _, sub := range groups {
		if err := walk(sub, fn); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// header reads and caches the object header at addr.
func (f *File) header(addr uint64) (*core.ObjectHeader, error) {
	if h, ok := f.headers[addr]; ok {
		return h, nil
	}
	h, err := core.ReadObjectHeader(f.r, addr, f.sb)
	if err != nil {
		return nil, err
	}
	f.headers[addr] = h
	return h, nil
}

// nextPhony returns the next phony dimension name of the file.
func (f *File) nextPhony() string {
	name := fmt.Sprintf("phony_dim_%d", f.phony)
	f.phony++
	return name
}
