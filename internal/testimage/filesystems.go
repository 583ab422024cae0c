// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package testimage

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/google/uuid"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// extfs feature flags.
const (
	ExtCompatHasJournal   = 0x0004
	ExtIncompatExtents    = 0x0040
	ExtIncompat64Bit      = 0x0080
	ExtIncompatFlexBG     = 0x0200
	ExtROCompatHugeFile   = 0x0008
	ExtROCompatMetaCsum   = 0x0400
	ext4IncompatFeatures  = ExtIncompatExtents | ExtIncompat64Bit | ExtIncompatFlexBG
	ext4ROCompatFeatures  = ExtROCompatMetaCsum
	extSuperblockOffset   = 0x400
	extSuperblockSize     = 1024
	btrfsSuperblockOffset = 0x10000
)

// ExtOptions describe an extfs superblock.
type ExtOptions struct {
	Label string
	UUID  uuid.UUID

	LogBlockSize uint32
	Blocks       uint64
	FreeBlocks   uint64

	Compat, Incompat, ROCompat uint32
}

// Ext2 returns options for a plain ext2 filesystem.
func Ext2(label string, id uuid.UUID, blocks uint64) ExtOptions {
	return ExtOptions{Label: label, UUID: id, Blocks: blocks, FreeBlocks: blocks / 2}
}

// Ext3 returns options for an ext3 filesystem (journal, no extents).
func Ext3(label string, id uuid.UUID, blocks uint64) ExtOptions {
	o := Ext2(label, id, blocks)
	o.Compat = ExtCompatHasJournal

	return o
}

// Ext4 returns options for an ext4 filesystem as created by a modern mkfs.ext4.
func Ext4(label string, id uuid.UUID, blocks uint64) ExtOptions {
	o := Ext3(label, id, blocks)
	o.LogBlockSize = 2
	o.Incompat = ext4IncompatFeatures
	o.ROCompat = ext4ROCompatFeatures | ExtROCompatHugeFile

	return o
}

// WriteExt writes an extfs superblock into the partition at offset.
func WriteExt(img *Image, offset uint64, o ExtOptions) {
	sb := make([]byte, extSuperblockSize)

	binary.LittleEndian.PutUint32(sb[0x00:], 1024)
	binary.LittleEndian.PutUint32(sb[0x04:], uint32(o.Blocks))
	binary.LittleEndian.PutUint32(sb[0x0C:], uint32(o.FreeBlocks))
	binary.LittleEndian.PutUint32(sb[0x18:], o.LogBlockSize)
	binary.LittleEndian.PutUint16(sb[0x38:], 0xEF53)
	binary.LittleEndian.PutUint16(sb[0x3A:], 1)
	binary.LittleEndian.PutUint32(sb[0x4C:], 1)
	binary.LittleEndian.PutUint32(sb[0x5C:], o.Compat)
	binary.LittleEndian.PutUint32(sb[0x60:], o.Incompat)
	binary.LittleEndian.PutUint32(sb[0x64:], o.ROCompat)
	copy(sb[0x68:0x78], o.UUID[:])
	copy(sb[0x78:0x88], o.Label)

	if o.Incompat&ExtIncompat64Bit != 0 {
		binary.LittleEndian.PutUint32(sb[0x150:], uint32(o.Blocks>>32))
		binary.LittleEndian.PutUint32(sb[0x158:], uint32(o.FreeBlocks>>32))
	}

	if o.ROCompat&ExtROCompatMetaCsum != 0 {
		binary.LittleEndian.PutUint32(sb[0x3FC:], ^crc32.Update(0, castagnoli, sb[:0x3FC]))
	}

	img.Put(offset+extSuperblockOffset, sb)
}

// NTFSOptions describe an NTFS boot sector.
type NTFSOptions struct {
	Serial            uint64
	BytesPerSector    uint16
	SectorsPerCluster uint8
	TotalSectors      uint64
}

// WriteNTFS writes an NTFS boot sector into the partition at offset.
func WriteNTFS(img *Image, offset uint64, o NTFSOptions) {
	bs := make([]byte, 512)

	bs[0], bs[1], bs[2] = 0xEB, 0x52, 0x90
	copy(bs[3:11], "NTFS    ")
	binary.LittleEndian.PutUint16(bs[0x0B:], o.BytesPerSector)
	bs[0x0D] = o.SectorsPerCluster
	bs[0x15] = 0xF8
	binary.LittleEndian.PutUint64(bs[0x28:], o.TotalSectors)
	binary.LittleEndian.PutUint64(bs[0x30:], 4)
	binary.LittleEndian.PutUint64(bs[0x38:], 2)
	bs[0x40] = 0xF6 // 2^10 bytes per MFT record
	binary.LittleEndian.PutUint64(bs[0x48:], o.Serial)
	bs[510], bs[511] = 0x55, 0xAA

	img.Put(offset, bs)
}

// XFSOptions describe an XFS superblock.
type XFSOptions struct {
	Label      string
	UUID       uuid.UUID
	Blocks     uint64
	FreeBlocks uint64
}

// WriteXFS writes an XFS superblock (4096-byte blocks, 512-byte sectors) into the partition at offset.
func WriteXFS(img *Image, offset uint64, o XFSOptions) {
	sb := make([]byte, 512)

	copy(sb[0:4], "XFSB")
	binary.BigEndian.PutUint32(sb[4:], 4096)
	binary.BigEndian.PutUint64(sb[8:], o.Blocks)
	copy(sb[32:48], o.UUID[:])
	binary.BigEndian.PutUint32(sb[80:], 1)                  // rextsize
	binary.BigEndian.PutUint32(sb[84:], uint32(o.Blocks/4)) // agblocks
	binary.BigEndian.PutUint32(sb[88:], 4)                  // agcount
	binary.BigEndian.PutUint16(sb[100:], 0xB4A5)            // versionnum
	binary.BigEndian.PutUint16(sb[102:], 512)               // sectsize
	binary.BigEndian.PutUint16(sb[104:], 512)               // inodesize
	binary.BigEndian.PutUint16(sb[106:], 8)                 // inopblock
	copy(sb[108:120], o.Label)
	sb[120] = 12 // blocklog
	sb[121] = 9  // sectlog
	sb[122] = 9  // inodelog
	sb[123] = 3  // inopblog
	sb[127] = 25 // imax_pct
	binary.BigEndian.PutUint64(sb[144:], o.FreeBlocks)

	img.Put(offset, sb)
}

// BtrfsOptions describe a Btrfs superblock.
type BtrfsOptions struct {
	Label      string
	FSID       uuid.UUID
	TotalBytes uint64
	BytesUsed  uint64
}

// WriteBtrfs writes the primary Btrfs superblock into the partition at offset.
func WriteBtrfs(img *Image, offset uint64, o BtrfsOptions) {
	sb := make([]byte, 4096)

	copy(sb[0x20:0x30], o.FSID[:])
	binary.LittleEndian.PutUint64(sb[0x30:], btrfsSuperblockOffset)
	copy(sb[0x40:0x48], "_BHRfS_M")
	binary.LittleEndian.PutUint64(sb[0x48:], 7)
	binary.LittleEndian.PutUint64(sb[0x70:], o.TotalBytes)
	binary.LittleEndian.PutUint64(sb[0x78:], o.BytesUsed)
	binary.LittleEndian.PutUint64(sb[0x88:], 1)
	binary.LittleEndian.PutUint32(sb[0x90:], 4096)
	binary.LittleEndian.PutUint32(sb[0x94:], 16384)
	binary.LittleEndian.PutUint32(sb[0x9C:], 4096)
	copy(sb[0x12B:0x22B], o.Label)

	binary.LittleEndian.PutUint32(sb[0:4], crc32.Checksum(sb[0x20:], castagnoli))

	img.Put(offset+btrfsSuperblockOffset, sb)
}

// FATOptions describe a FAT boot sector.
type FATOptions struct {
	Label  string
	Serial uint32
	// Sectors is the total number of 512-byte sectors of the filesystem.
	Sectors           uint32
	SectorsPerCluster uint8
}

// WriteFAT32 writes a FAT32 boot sector into the partition at offset.
func WriteFAT32(img *Image, offset uint64, o FATOptions) {
	bs := fatCommon(o)

	const reserved = 32

	clusters := o.Sectors / uint32(o.SectorsPerCluster)
	fatSize := (clusters*4 + 511) / 512

	binary.LittleEndian.PutUint16(bs[0x0E:], reserved)
	binary.LittleEndian.PutUint32(bs[0x20:], o.Sectors)
	binary.LittleEndian.PutUint32(bs[0x24:], fatSize)
	binary.LittleEndian.PutUint32(bs[0x2C:], 2)
	bs[0x42] = 0x29
	binary.LittleEndian.PutUint32(bs[0x43:], o.Serial)
	copy(bs[0x47:0x52], padLabel(o.Label))
	copy(bs[0x52:0x5A], "FAT32   ")

	img.Put(offset, bs)
}

// WriteFAT16 writes a FAT16 boot sector into the partition at offset.
func WriteFAT16(img *Image, offset uint64, o FATOptions) {
	bs := fatCommon(o)

	clusters := o.Sectors / uint32(o.SectorsPerCluster)
	fatSize := (clusters*2 + 511) / 512

	binary.LittleEndian.PutUint16(bs[0x0E:], 1)
	binary.LittleEndian.PutUint16(bs[0x11:], 512)

	if o.Sectors < 1<<16 {
		binary.LittleEndian.PutUint16(bs[0x13:], uint16(o.Sectors))
	} else {
		binary.LittleEndian.PutUint32(bs[0x20:], o.Sectors)
	}

	binary.LittleEndian.PutUint16(bs[0x16:], uint16(fatSize))
	bs[0x26] = 0x29
	binary.LittleEndian.PutUint32(bs[0x27:], o.Serial)
	copy(bs[0x2B:0x36], padLabel(o.Label))
	copy(bs[0x36:0x3E], "FAT16   ")

	img.Put(offset, bs)
}

func fatCommon(o FATOptions) []byte {
	bs := make([]byte, 512)

	bs[0], bs[1], bs[2] = 0xEB, 0x58, 0x90
	copy(bs[3:11], "mkfs.fat")
	binary.LittleEndian.PutUint16(bs[0x0B:], 512)
	bs[0x0D] = o.SectorsPerCluster
	bs[0x10] = 2
	bs[0x15] = 0xF8
	bs[510], bs[511] = 0x55, 0xAA

	return bs
}

func padLabel(label string) []byte {
	b := []byte("NO NAME    ")
	if label != "" {
		b = []byte("           ")
		copy(b, label)
	}

	return b
}
