// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package btrfs probes Btrfs filesystems.
package btrfs

import (
	"bytes"
	"encoding/binary"

	"github.com/siderolabs/go-guestinspect/blkid/internal/magic"
	"github.com/siderolabs/go-guestinspect/blkid/internal/probe"
	"github.com/siderolabs/go-guestinspect/blkid/internal/utils"
	"github.com/siderolabs/go-guestinspect/internal/ioutil"
)

const (
	sbOffset = 0x10000
	sbSize   = 0x1000

	csumTypeCRC32 = 0
)

var btrfsMagic = magic.Magic{
	Offset: sbOffset + 0x40,
	Value:  []byte("_BHRfS_M"),
}

// SuperBlock is the primary Btrfs superblock, little-endian.
type SuperBlock []byte

// Csum is the superblock checksum.
func (s SuperBlock) Csum() []byte { return s[0x00:0x20] }

// FSID is the filesystem UUID.
func (s SuperBlock) FSID() []byte { return s[0x20:0x30] }

// Bytenr is the physical address of this superblock.
func (s SuperBlock) Bytenr() uint64 { return binary.LittleEndian.Uint64(s[0x30:]) }

// TotalBytes is the filesystem size.
func (s SuperBlock) TotalBytes() uint64 { return binary.LittleEndian.Uint64(s[0x70:]) }

// BytesUsed is the space allocated by the filesystem.
func (s SuperBlock) BytesUsed() uint64 { return binary.LittleEndian.Uint64(s[0x78:]) }

// NumDevices is the number of devices of a multi-device filesystem.
func (s SuperBlock) NumDevices() uint64 { return binary.LittleEndian.Uint64(s[0x88:]) }

// SectorSize is the minimal allocation unit.
func (s SuperBlock) SectorSize() uint32 { return binary.LittleEndian.Uint32(s[0x90:]) }

// CsumType is the checksum algorithm.
func (s SuperBlock) CsumType() uint16 { return binary.LittleEndian.Uint16(s[0xC4:]) }

// Label is the filesystem label.
func (s SuperBlock) Label() []byte { return s[0x12B : 0x12B+0x100] }

// Probe for the filesystem.
type Probe struct{}

// Magic returns the magic value for the filesystem.
func (p *Probe) Magic() []*magic.Magic {
	return []*magic.Magic{&btrfsMagic}
}

// Name returns the name of the filesystem.
func (p *Probe) Name() string {
	return "btrfs"
}

// Probe runs the further inspection and returns the result if successful.
func (p *Probe) Probe(r probe.Reader, _ magic.Magic) (*probe.Result, error) {
	buf := make([]byte, sbSize)

	if err := ioutil.ReadFullAt(r, buf, sbOffset); err != nil {
		return nil, err
	}

	sb := SuperBlock(buf)

	if sb.Bytenr() != sbOffset {
		return nil, nil //nolint:nilnil
	}

	if sb.CsumType() == csumTypeCRC32 {
		expected := binary.LittleEndian.AppendUint32(nil, utils.Castagnoli(buf[0x20:]))

		if !bytes.Equal(sb.Csum()[:4], expected) {
			return nil, nil //nolint:nilnil
		}
	}

	sectorSize := sb.SectorSize()
	if !utils.IsPowerOf2(sectorSize) {
		return nil, nil //nolint:nilnil
	}

	uuid, err := utils.UUID(sb.FSID())
	if err != nil {
		return nil, err
	}

	res := &probe.Result{
		Name:  p.Name(),
		UUID:  uuid,
		Label: utils.Label(sb.Label()),

		BlockSize: sectorSize,
		Blocks:    sb.TotalBytes() / uint64(sectorSize),
	}

	if sb.TotalBytes() > sb.BytesUsed() {
		res.FreeBlocks = (sb.TotalBytes() - sb.BytesUsed()) / uint64(sectorSize)
	}

	if sb.NumDevices() > 1 {
		res.Features = []string{"multi_device"}
	}

	return res, nil
}
