// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ioutil provides IO utility functions.
package ioutil

import (
	"errors"
	"fmt"
	"io"
	"math/bits"
)

// ErrOutOfBounds is returned when a read falls outside of the declared length.
var ErrOutOfBounds = errors.New("read out of bounds")

// ReadFullAt is io.ReadFull for io.ReaderAt.
func ReadFullAt(r io.ReaderAt, buf []byte, offset int64) error {
	for n := 0; n < len(buf); {
		m, err := r.ReadAt(buf[n:], offset)

		n += m
		offset += int64(m)

		if err != nil {
			if err == io.EOF && n == len(buf) {
				return nil
			}

			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}

			return err
		}
	}

	return nil
}

// MulOffset returns a*b, failing if the product overflows int64.
func MulOffset(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 || lo > 1<<63-1 {
		return 0, fmt.Errorf("offset %d * %d overflows", a, b)
	}

	return lo, nil
}

// Range is a bounded window over an io.ReaderAt.
//
// Reads outside of [0, size) fail with ErrOutOfBounds instead of reading
// adjacent data.
type Range struct {
	r          io.ReaderAt
	offset     uint64
	size       uint64
	sectorSize uint
}

// NewRange creates a window of size bytes starting at offset.
func NewRange(r io.ReaderAt, offset, size uint64, sectorSize uint) *Range {
	return &Range{
		r:          r,
		offset:     offset,
		size:       size,
		sectorSize: sectorSize,
	}
}

// ReadAt implements io.ReaderAt.
func (rng *Range) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || uint64(off) > rng.size {
		return 0, fmt.Errorf("%w: offset %d, size %d", ErrOutOfBounds, off, rng.size)
	}

	remaining := rng.size - uint64(off)
	if uint64(len(p)) > remaining {
		n, err := rng.r.ReadAt(p[:remaining], int64(rng.offset)+off)
		if err == nil {
			err = io.EOF
		}

		return n, err
	}

	return rng.r.ReadAt(p, int64(rng.offset)+off)
}

// GetSize returns the size of the window.
func (rng *Range) GetSize() uint64 {
	return rng.size
}

// GetSectorSize returns the logical sector size of the underlying device.
func (rng *Range) GetSectorSize() uint {
	return rng.sectorSize
}
