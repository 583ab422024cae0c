// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ntfs probes NTFS filesystems.
package ntfs

import (
	"encoding/binary"
	"fmt"

	"github.com/siderolabs/go-pointer"

	"github.com/siderolabs/go-guestinspect/blkid/internal/magic"
	"github.com/siderolabs/go-guestinspect/blkid/internal/probe"
	"github.com/siderolabs/go-guestinspect/blkid/internal/utils"
	"github.com/siderolabs/go-guestinspect/internal/ioutil"
)

const bootSectorSize = 512

var ntfsMagic = magic.Magic{
	Offset: 3,
	Value:  []byte("NTFS    "),
}

// BootSector is the NTFS boot sector (BPB + extended BPB).
type BootSector []byte

// BytesPerSector is the logical sector size.
func (b BootSector) BytesPerSector() uint16 { return binary.LittleEndian.Uint16(b[0x0B:]) }

// SectorsPerCluster is the raw cluster size byte.
func (b BootSector) SectorsPerCluster() uint8 { return b[0x0D] }

// ReservedSectors must be zero on NTFS.
func (b BootSector) ReservedSectors() uint16 { return binary.LittleEndian.Uint16(b[0x0E:]) }

// FATs must be zero on NTFS.
func (b BootSector) FATs() uint8 { return b[0x10] }

// TotalSectors is the volume size in sectors.
func (b BootSector) TotalSectors() uint64 { return binary.LittleEndian.Uint64(b[0x28:]) }

// MFTCluster is the first cluster of $MFT.
func (b BootSector) MFTCluster() uint64 { return binary.LittleEndian.Uint64(b[0x30:]) }

// VolumeSerial is the 64-bit volume serial number.
func (b BootSector) VolumeSerial() uint64 { return binary.LittleEndian.Uint64(b[0x48:]) }

// ClusterSize returns the cluster size in bytes, or 0 if the encoding is invalid.
func (b BootSector) ClusterSize() uint32 {
	spc := uint32(b.SectorsPerCluster())

	// values above 0x80 encode 2^(256-n) sectors
	if spc > 0x80 {
		shift := 256 - spc
		if shift > 31 {
			return 0
		}

		spc = 1 << shift
	}

	if !utils.IsPowerOf2(spc) {
		return 0
	}

	return spc * uint32(b.BytesPerSector())
}

// Probe for the filesystem.
type Probe struct{}

// Magic returns the magic value for the filesystem.
func (p *Probe) Magic() []*magic.Magic {
	return []*magic.Magic{&ntfsMagic}
}

// Name returns the name of the filesystem.
func (p *Probe) Name() string {
	return "ntfs"
}

// Probe runs the further inspection and returns the result if successful.
func (p *Probe) Probe(r probe.Reader, _ magic.Magic) (*probe.Result, error) {
	buf := make([]byte, bootSectorSize)

	if err := ioutil.ReadFullAt(r, buf, 0); err != nil {
		return nil, err
	}

	bs := BootSector(buf)

	sectorSize := bs.BytesPerSector()
	if !utils.IsPowerOf2(sectorSize) || sectorSize < 256 || sectorSize > 4096 {
		return nil, nil //nolint:nilnil
	}

	if bs.ReservedSectors() != 0 || bs.FATs() != 0 {
		return nil, nil //nolint:nilnil
	}

	clusterSize := bs.ClusterSize()
	if clusterSize == 0 || bs.TotalSectors() == 0 {
		return nil, nil //nolint:nilnil
	}

	blocks := bs.TotalSectors() * uint64(sectorSize) / uint64(clusterSize)

	if bs.MFTCluster() >= blocks {
		return nil, nil //nolint:nilnil
	}

	return &probe.Result{
		Name:   p.Name(),
		Serial: pointer.To(fmt.Sprintf("%016X", bs.VolumeSerial())),

		BlockSize: clusterSize,
		Blocks:    blocks,
	}, nil
}
