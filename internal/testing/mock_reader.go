// Package testing builds small HDF5 and netCDF-4 files in memory for the
// reader tests, and provides a strict io.ReaderAt.
package testing

import (
	"errors"
	"io"
)

// MockReaderAt is an io.ReaderAt over a byte slice. Reads starting past
// the end fail outright so decoders that follow bad addresses are caught;
// reads that run off the end return io.EOF with the bytes available.
type MockReaderAt struct {
	data  []byte
	reads int
}

// NewMockReaderAt creates a reader over data.
func NewMockReaderAt(data []byte) *MockReaderAt {
	return &MockReaderAt{data: data}
}

// ReadAt implements io.ReaderAt.
func (m *MockReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	m.reads++
	if off < 0 {
		return 0, errors.New("negative offset")
	}

	if off >= int64(len(m.data)) {
		return 0, errors.New("offset beyond EOF")
	}

	n = copy(p, m.data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return
}

// Size returns the length of the data.
func (m *MockReaderAt) Size() int64 { return int64(len(m.data)) }

// Reads returns the number of ReadAt calls made so far.
func (m *MockReaderAt) Reads() int { return m.reads }
