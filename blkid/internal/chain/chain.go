// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package chain provides the ordered list of filesystem probers.
package chain

import (
	"github.com/siderolabs/go-guestinspect/blkid/internal/filesystems/btrfs"
	"github.com/siderolabs/go-guestinspect/blkid/internal/filesystems/ext"
	"github.com/siderolabs/go-guestinspect/blkid/internal/filesystems/ntfs"
	"github.com/siderolabs/go-guestinspect/blkid/internal/filesystems/vfat"
	"github.com/siderolabs/go-guestinspect/blkid/internal/filesystems/xfs"
	"github.com/siderolabs/go-guestinspect/blkid/internal/probe"
)

// Chain is a list of probers, in priority order.
type Chain []probe.Prober

// MaxMagicSize returns the maximum size of the magic value in the chain.
func (chain Chain) MaxMagicSize() int {
	max := 0

	for _, prober := range chain {
		for _, magic := range prober.Magic() {
			if size := magic.BlockSize(); size >= max {
				max = size
			}
		}
	}

	return max
}

// MagicMatches returns the probers whose magic value is found in the buffer, in chain order.
func (chain Chain) MagicMatches(buf []byte) []probe.MagicMatch {
	var matches []probe.MagicMatch

	for _, prober := range chain {
		for _, magic := range prober.Magic() {
			if magic.Matches(buf) {
				matches = append(matches, probe.MagicMatch{Magic: *magic, Prober: prober})

				break
			}
		}
	}

	return matches
}

// Default returns the probers for the supported filesystems.
func Default() Chain {
	return Chain{
		&ext.Probe{},
		&ntfs.Probe{},
		&xfs.Probe{},
		&btrfs.Probe{},
		&vfat.Probe{},
	}
}
