// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package guestfs sequences disk inspection for a single disk image.
//
// A Handle goes through Created, DriveAttached, Launched and ShutDown.
// Mutating calls are serialized, read accessors may be called concurrently
// once the handle is launched.
package guestfs

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/siderolabs/go-guestinspect/blkid"
	"github.com/siderolabs/go-guestinspect/block"
	"github.com/siderolabs/go-guestinspect/container"
	"github.com/siderolabs/go-guestinspect/inspect"
	"github.com/siderolabs/go-guestinspect/partitioning"
)

// State of the Handle lifecycle.
type State int

// Handle states.
const (
	StateCreated State = iota
	StateDriveAttached
	StateLaunched
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDriveAttached:
		return "drive attached"
	case StateLaunched:
		return "launched"
	case StateShutDown:
		return "shut down"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Mode is the drive access mode.
type Mode int

// Drive access modes.
const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "rw"
	}

	return "ro"
}

// DiskName is the device name the attached disk is reported as.
const DiskName = "/dev/sda"

// Handle inspects one disk image.
type Handle struct {
	options Options

	mu    sync.RWMutex
	state State

	path string
	mode Mode

	// resources held while launched
	drive      block.Drive
	decoded    container.Flat
	compressed container.Flat

	info        container.Info
	scheme      partitioning.Scheme
	partitions  []partitioning.Entry
	filesystems []*blkid.Filesystem
	mounted     map[uint]inspect.FileAccessor
}

// New creates a Handle in the Created state.
func New(opts ...Option) *Handle {
	return &Handle{
		options: applyOptions(opts...),
	}
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.state
}

// AttachDrive binds the disk image at path.
//
// A shut down handle may be reused by attaching a new drive.
func (h *Handle) AttachDrive(path string, mode Mode) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateCreated, StateShutDown:
	case StateDriveAttached, StateLaunched:
		return &StateError{Op: "attach drive", State: h.state, Err: ErrAlreadyAttached}
	}

	h.path = path
	h.mode = mode
	h.state = StateDriveAttached

	h.options.Logger.Info("drive attached", zap.String("path", path), zap.Stringer("mode", mode))

	return nil
}

// Format returns the detected container format.
func (h *Handle) Format() (container.Info, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.state != StateLaunched {
		return container.Info{}, stateError("format", h.state)
	}

	return h.info, nil
}

// Scheme returns the partitioning scheme.
func (h *Handle) Scheme() (partitioning.Scheme, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.state != StateLaunched {
		return partitioning.SchemeNone, stateError("scheme", h.state)
	}

	return h.scheme, nil
}

// Partitions returns the partition table entries.
func (h *Handle) Partitions() ([]partitioning.Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.state != StateLaunched {
		return nil, stateError("partitions", h.state)
	}

	return slices.Clone(h.partitions), nil
}

// Filesystems returns the detected filesystems in partition order.
//
// Partitions without a recognized filesystem are reported with the Unknown type.
func (h *Handle) Filesystems() ([]*blkid.Filesystem, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.state != StateLaunched {
		return nil, stateError("filesystems", h.state)
	}

	return slices.Clone(h.filesystems), nil
}

// Mounted returns the sorted indexes of the mounted filesystems.
func (h *Handle) Mounted() ([]uint, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.state != StateLaunched {
		return nil, stateError("mounted", h.state)
	}

	return slices.Sorted(maps.Keys(h.mounted)), nil
}

// DeviceName returns the device name of the filesystem, as if the disk was attached as /dev/sda.
func DeviceName(fs *blkid.Filesystem) string {
	if fs.Partition == 0 {
		return DiskName
	}

	return partitioning.DevName(DiskName, fs.Partition)
}

// Mount records that the filesystem is available for file access through accessor.
func (h *Handle) Mount(fs uint, accessor inspect.FileAccessor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateLaunched {
		return stateError("mount", h.state)
	}

	if h.lookup(fs) == nil {
		return fmt.Errorf("mount %d: %w", fs, ErrUnknownFilesystem)
	}

	if _, ok := h.mounted[fs]; ok {
		return fmt.Errorf("mount %d: %w", fs, ErrAlreadyMounted)
	}

	h.mounted[fs] = accessor

	h.options.Logger.Debug("filesystem mounted", zap.Uint("filesystem", fs))

	return nil
}

// Unmount removes the filesystem from the mounted set.
func (h *Handle) Unmount(fs uint) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateLaunched {
		return stateError("unmount", h.state)
	}

	if _, ok := h.mounted[fs]; !ok {
		return fmt.Errorf("unmount %d: %w", fs, ErrNotMounted)
	}

	delete(h.mounted, fs)

	h.options.Logger.Debug("filesystem unmounted", zap.Uint("filesystem", fs))

	return nil
}

func (h *Handle) lookup(index uint) *blkid.Filesystem {
	idx := slices.IndexFunc(h.filesystems, func(fs *blkid.Filesystem) bool { return fs.Partition == index })
	if idx == -1 {
		return nil
	}

	return h.filesystems[idx]
}

// Shutdown releases the disk image and clears all state.
//
// Shutdown may be called any number of times, in any state.
func (h *Handle) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateShutDown {
		return nil
	}

	err := h.release()

	h.path = ""
	h.state = StateShutDown

	h.options.Logger.Info("handle shut down")

	return err
}

// release closes everything acquired by launch.
func (h *Handle) release() error {
	var err error

	if h.decoded != nil {
		err = multierr.Append(err, h.decoded.Close())
	}

	if h.compressed != nil {
		err = multierr.Append(err, h.compressed.Close())
	}

	if h.drive != nil {
		err = multierr.Append(err, h.drive.Unlock())
		err = multierr.Append(err, h.drive.Close())
	}

	h.drive, h.decoded, h.compressed = nil, nil, nil
	h.info = container.Info{}
	h.scheme = partitioning.SchemeNone
	h.partitions, h.filesystems, h.mounted = nil, nil, nil

	return err
}
