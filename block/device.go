// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package block provides the drive backend: disk images and block devices opened read-only.
package block

import (
	"io"
	"os"
)

// DefaultBlockSize is the default block size in bytes.
const DefaultBlockSize = 512

// Drive is an opened disk image or block device.
type Drive interface {
	io.ReaderAt

	Name() string
	GetSize() (uint64, error)
	GetSectorSize() uint
	TryLock(exclusive bool) error
	Unlock() error
	Close() error
}

// Opener opens a drive.
type Opener func(path string, readOnly bool) (Drive, error)

// DefaultOpener opens drives with Open.
func DefaultOpener(path string, readOnly bool) (Drive, error) {
	d, err := Open(path, readOnly)
	if err != nil {
		return nil, err
	}

	return d, nil
}

// Device wraps blockdevice operations.
type Device struct {
	f *os.File

	ownedFile bool
	isBlock   bool
}

// NewFromFile returns a new Device from the specified file.
//
// The file is not closed by Close.
func NewFromFile(f *os.File) (*Device, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return &Device{
		f:       f,
		isBlock: st.Mode()&os.ModeDevice != 0 && st.Mode()&os.ModeCharDevice == 0,
	}, nil
}

// Open opens a regular image file or a block device.
func Open(path string, readOnly bool) (*Device, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}

	f, err := os.OpenFile(path, flag|openFlags, 0)
	if err != nil {
		return nil, err
	}

	d, err := NewFromFile(f)
	if err != nil {
		f.Close() //nolint:errcheck

		return nil, err
	}

	d.ownedFile = true

	return d, nil
}

// File returns the underlying file.
func (d *Device) File() *os.File {
	return d.f
}

// Name returns the path the device was opened with.
func (d *Device) Name() string {
	return d.f.Name()
}

// IsBlockDevice returns true if the device is a block device rather than an image file.
func (d *Device) IsBlockDevice() bool {
	return d.isBlock
}

// ReadAt implements io.ReaderAt.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

// Close closes the file if it is owned by the Device.
func (d *Device) Close() error {
	if !d.ownedFile {
		return nil
	}

	return d.f.Close()
}

func (d *Device) statSize() (uint64, error) {
	st, err := d.f.Stat()
	if err != nil {
		return 0, err
	}

	return uint64(st.Size()), nil
}
