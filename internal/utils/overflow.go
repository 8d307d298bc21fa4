package utils

import (
	"fmt"
	"math"
)

// Limits applied to sizes read from a file before allocating memory.
const (
	// MaxChunkSize limits a single decoded chunk to 1GB.
	MaxChunkSize = 1024 * 1024 * 1024

	// MaxDatasetSize limits a fully materialized variable to 4GB.
	MaxDatasetSize = 4 * 1024 * 1024 * 1024

	// MaxAttributeSize limits attribute payloads to 64MB.
	MaxAttributeSize = 64 * 1024 * 1024

	// MaxHeapObjectSize limits global and fractal heap objects to 256MB.
	MaxHeapObjectSize = 256 * 1024 * 1024
)

// SafeMultiply multiplies two uint64 values and reports overflow.
func SafeMultiply(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}
	return a * b, nil
}

// ElementCount returns the product of dims. An empty dims is a scalar (1).
func ElementCount(dims []uint64) (uint64, error) {
	n := uint64(1)
	for i, d := range dims {
		var err error
		if n, err = SafeMultiply(n, d); err != nil {
			return 0, fmt.Errorf("element count overflow at dimension %d: %w", i, err)
		}
	}
	return n, nil
}

// ByteSize returns product(dims) * elementSize, checked against limit.
func ByteSize(dims []uint64, elementSize, limit uint64) (uint64, error) {
	n, err := ElementCount(dims)
	if err != nil {
		return 0, err
	}
	size, err := SafeMultiply(n, elementSize)
	if err != nil {
		return 0, err
	}
	if size > limit {
		return 0, fmt.Errorf("size %d exceeds maximum %d", size, limit)
	}
	return size, nil
}

// ValidateBufferSize validates that a buffer size is non-zero and within limit.
func ValidateBufferSize(size, maxSize uint64, description string) error {
	if size == 0 {
		return fmt.Errorf("%s: size cannot be zero", description)
	}
	if size > maxSize {
		return fmt.Errorf("%s: size %d exceeds maximum %d", description, size, maxSize)
	}
	return nil
}
