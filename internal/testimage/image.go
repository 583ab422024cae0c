// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package testimage builds in-memory disk images for tests.
package testimage

import (
	"fmt"
	"io"
	"os"
)

// Size constants.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// Image is a sparse-free in-memory disk.
type Image struct {
	buf        []byte
	sectorSize uint
}

// New allocates a zeroed image.
func New(size uint64, sectorSize uint) *Image {
	return &Image{
		buf:        make([]byte, size),
		sectorSize: sectorSize,
	}
}

// ReadAt implements io.ReaderAt.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(img.buf)) {
		return 0, io.EOF
	}

	n := copy(p, img.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteAt implements io.WriterAt.
func (img *Image) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(img.buf)) {
		return 0, fmt.Errorf("write of %d bytes at %d out of bounds (size %d)", len(p), off, len(img.buf))
	}

	return copy(img.buf[off:], p), nil
}

// GetSize returns the image size.
func (img *Image) GetSize() uint64 {
	return uint64(len(img.buf))
}

// GetSectorSize returns the logical sector size.
func (img *Image) GetSectorSize() uint {
	return img.sectorSize
}

// Bytes returns the underlying buffer.
func (img *Image) Bytes() []byte {
	return img.buf
}

// Put copies data at offset, panicking on out of bounds writes.
func (img *Image) Put(offset uint64, data []byte) {
	if _, err := img.WriteAt(data, int64(offset)); err != nil {
		panic(err)
	}
}

// WriteFile stores the image in a file.
func (img *Image) WriteFile(path string) error {
	return os.WriteFile(path, img.buf, 0o644)
}
