// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !linux

package block

import "errors"

const openFlags = 0

// ErrLocked is returned by TryLock when another process holds a conflicting lock.
var ErrLocked = errors.New("device is locked")

// GetSize returns the file size in bytes.
func (d *Device) GetSize() (uint64, error) {
	return d.statSize()
}

// GetSectorSize returns the default sector size.
func (d *Device) GetSectorSize() uint {
	return DefaultBlockSize
}

// Lock is a no-op on this platform.
func (d *Device) Lock(bool) error {
	return nil
}

// TryLock is a no-op on this platform.
func (d *Device) TryLock(bool) error {
	return nil
}

// Unlock is a no-op on this platform.
func (d *Device) Unlock() error {
	return nil
}
