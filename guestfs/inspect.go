// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package guestfs

import (
	"context"
	"slices"

	"github.com/siderolabs/gen/xslices"

	"github.com/siderolabs/go-guestinspect/blkid"
	"github.com/siderolabs/go-guestinspect/inspect"
)

var rootFsTypes = []blkid.FsType{blkid.Ext2, blkid.Ext3, blkid.Ext4, blkid.Xfs, blkid.Btrfs, blkid.Ntfs}

// Roots returns the indexes of the filesystems which may hold an operating system.
func (h *Handle) Roots() ([]uint, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.state != StateLaunched {
		return nil, stateError("roots", h.state)
	}

	candidates := xslices.Filter(h.filesystems, func(fs *blkid.Filesystem) bool {
		return slices.Contains(rootFsTypes, fs.Type)
	})

	return xslices.Map(candidates, func(fs *blkid.Filesystem) uint { return fs.Partition }), nil
}

// InspectOS runs the inspector over every mounted filesystem.
//
// Filesystems without operating system markers are skipped. The returned
// records hold no reference to the handle.
func (h *Handle) InspectOS(ctx context.Context, inspector *inspect.Inspector) ([]inspect.OSRoot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.state != StateLaunched {
		return nil, stateError("inspect os", h.state)
	}

	var roots []inspect.OSRoot

	for _, fs := range h.filesystems {
		accessor, ok := h.mounted[fs.Partition]
		if !ok {
			continue
		}

		root, err := inspector.Inspect(ctx, fs.Partition, accessor)
		if err != nil {
			return nil, err
		}

		if root == nil {
			continue
		}

		if root.Mountpoints == nil {
			root.Mountpoints = map[string]string{}
		}

		if _, ok := root.Mountpoints["/"]; !ok {
			root.Mountpoints["/"] = DeviceName(fs)
		}

		roots = append(roots, *root)
	}

	return roots, nil
}
