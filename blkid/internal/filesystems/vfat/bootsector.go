// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package vfat

import "encoding/binary"

// BOOTSECTOR_SIZE is the size of the FAT boot sector.
//
//nolint:revive,stylecheck
const BOOTSECTOR_SIZE = 512

// BootSector is the FAT boot sector with the BIOS parameter block.
type BootSector []byte

// SectorSize is sector_size.
func (b BootSector) SectorSize() uint16 { return binary.LittleEndian.Uint16(b[0x0B:]) }

// SectorsPerCluster is sec_per_clus.
func (b BootSector) SectorsPerCluster() uint8 { return b[0x0D] }

// Reserved is reserved.
func (b BootSector) Reserved() uint16 { return binary.LittleEndian.Uint16(b[0x0E:]) }

// FATs is fats.
func (b BootSector) FATs() uint8 { return b[0x10] }

// DirEntries is dir_entries.
func (b BootSector) DirEntries() uint16 { return binary.LittleEndian.Uint16(b[0x11:]) }

// Sectors is sectors.
func (b BootSector) Sectors() uint16 { return binary.LittleEndian.Uint16(b[0x13:]) }

// Media is media.
func (b BootSector) Media() uint8 { return b[0x15] }

// FATLength is fat_length.
func (b BootSector) FATLength() uint16 { return binary.LittleEndian.Uint16(b[0x16:]) }

// TotalSect is total_sect.
func (b BootSector) TotalSect() uint32 { return binary.LittleEndian.Uint32(b[0x20:]) }

// FAT32Length is fat32_length.
func (b BootSector) FAT32Length() uint32 { return binary.LittleEndian.Uint32(b[0x24:]) }

// FAT32Serial is fat32_serno.
func (b BootSector) FAT32Serial() uint32 { return binary.LittleEndian.Uint32(b[0x43:]) }

// FAT32Label is fat32_label.
func (b BootSector) FAT32Label() []byte { return b[0x47:0x52] }

// FAT16Serial is fat16_serno.
func (b BootSector) FAT16Serial() uint32 { return binary.LittleEndian.Uint32(b[0x27:]) }

// FAT16Label is fat16_label.
func (b BootSector) FAT16Label() []byte { return b[0x2B:0x36] }

// FAT32ExtBootSig is fat32_ext_boot_sig.
func (b BootSector) FAT32ExtBootSig() uint8 { return b[0x42] }

// FAT16ExtBootSig is fat16_ext_boot_sig.
func (b BootSector) FAT16ExtBootSig() uint8 { return b[0x26] }

// TotalSectors returns the filesystem size in sectors.
func (b BootSector) TotalSectors() uint32 {
	if sectors := b.Sectors(); sectors != 0 {
		return uint32(sectors)
	}

	return b.TotalSect()
}

// FATSize returns the size of a single FAT in sectors.
func (b BootSector) FATSize() uint32 {
	if length := b.FATLength(); length != 0 {
		return uint32(length)
	}

	return b.FAT32Length()
}

// RootDirSectors returns the size of the fixed root directory (FAT12/16 only).
func (b BootSector) RootDirSectors() uint32 {
	sectorSize := uint32(b.SectorSize())

	return (uint32(b.DirEntries())*32 + sectorSize - 1) / sectorSize
}

// Clusters returns the number of data clusters.
func (b BootSector) Clusters() uint32 {
	meta := uint64(b.Reserved()) + uint64(b.FATs())*uint64(b.FATSize()) + uint64(b.RootDirSectors())

	total := uint64(b.TotalSectors())
	if total <= meta || b.SectorsPerCluster() == 0 {
		return 0
	}

	return uint32((total - meta) / uint64(b.SectorsPerCluster()))
}
