// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package xfs probes XFS filesystems.
package xfs

import (
	"github.com/siderolabs/go-guestinspect/blkid/internal/magic"
	"github.com/siderolabs/go-guestinspect/blkid/internal/probe"
	"github.com/siderolabs/go-guestinspect/blkid/internal/utils"
	"github.com/siderolabs/go-guestinspect/internal/ioutil"
)

var xfsMagic = magic.Magic{
	Offset: 0,
	Value:  []byte{0x58, 0x46, 0x53, 0x42},
}

// Probe for the filesystem.
type Probe struct{}

// Magic returns the magic value for the filesystem.
func (p *Probe) Magic() []*magic.Magic {
	return []*magic.Magic{&xfsMagic}
}

// Name returns the name of the filesystem.
func (p *Probe) Name() string {
	return "xfs"
}

// Probe runs the further inspection and returns the result if successful.
func (p *Probe) Probe(r probe.Reader, _ magic.Magic) (*probe.Result, error) {
	buf := make([]byte, SUPERBLOCK_SIZE)

	if err := ioutil.ReadFullAt(r, buf, 0); err != nil {
		return nil, err
	}

	sb := SuperBlock(buf)
	if !sb.Valid() {
		return nil, nil //nolint:nilnil
	}

	uuid, err := utils.UUID(sb.UUID())
	if err != nil {
		return nil, err
	}

	res := &probe.Result{
		Name:  p.Name(),
		UUID:  uuid,
		Label: utils.Label(sb.FName()),

		BlockSize:  sb.BlockSize(),
		Blocks:     sb.DataBlocks(),
		FreeBlocks: sb.FDBlocks(),
	}

	if sb.VersionNum()&XFS_SB_VERSION_NUMBITS == XFS_SB_VERSION_5 {
		res.Features = []string{"v5"}
	}

	return res, nil
}
