// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ext

import "encoding/binary"

// SUPERBLOCK_SIZE is the on-disk size of the extfs superblock.
//
//nolint:revive,stylecheck
const SUPERBLOCK_SIZE = 1024

// SuperBlock is the extfs superblock, little-endian.
type SuperBlock []byte

// BlocksCountLo is s_blocks_count_lo.
func (s SuperBlock) BlocksCountLo() uint32 { return binary.LittleEndian.Uint32(s[0x04:]) }

// FreeBlocksCountLo is s_free_blocks_count_lo.
func (s SuperBlock) FreeBlocksCountLo() uint32 { return binary.LittleEndian.Uint32(s[0x0C:]) }

// LogBlockSize is s_log_block_size.
func (s SuperBlock) LogBlockSize() uint32 { return binary.LittleEndian.Uint32(s[0x18:]) }

// FeatureCompat is s_feature_compat.
func (s SuperBlock) FeatureCompat() uint32 { return binary.LittleEndian.Uint32(s[0x5C:]) }

// FeatureIncompat is s_feature_incompat.
func (s SuperBlock) FeatureIncompat() uint32 { return binary.LittleEndian.Uint32(s[0x60:]) }

// FeatureROCompat is s_feature_ro_compat.
func (s SuperBlock) FeatureROCompat() uint32 { return binary.LittleEndian.Uint32(s[0x64:]) }

// UUID is s_uuid.
func (s SuperBlock) UUID() []byte { return s[0x68:0x78] }

// VolumeName is s_volume_name.
func (s SuperBlock) VolumeName() []byte { return s[0x78:0x88] }

// BlocksCountHi is s_blocks_count_hi.
func (s SuperBlock) BlocksCountHi() uint32 { return binary.LittleEndian.Uint32(s[0x150:]) }

// FreeBlocksCountHi is s_free_blocks_count_hi.
func (s SuperBlock) FreeBlocksCountHi() uint32 { return binary.LittleEndian.Uint32(s[0x158:]) }

// Checksum is s_checksum.
func (s SuperBlock) Checksum() uint32 { return binary.LittleEndian.Uint32(s[0x3FC:]) }

// BlockSize returns the block size of the filesystem.
func (s SuperBlock) BlockSize() uint32 {
	if s.LogBlockSize() >= 22 {
		return 0
	}

	return 1024 << s.LogBlockSize()
}

// Is64Bit reports whether the high halves of the block counters are valid.
func (s SuperBlock) Is64Bit() bool {
	return s.FeatureIncompat()&EXT4_FEATURE_INCOMPAT_64BIT != 0
}

// BlocksCount returns the total number of blocks.
func (s SuperBlock) BlocksCount() uint64 {
	if s.Is64Bit() {
		return uint64(s.BlocksCountHi())<<32 | uint64(s.BlocksCountLo())
	}

	return uint64(s.BlocksCountLo())
}

// FreeBlocksCount returns the number of free blocks.
func (s SuperBlock) FreeBlocksCount() uint64 {
	if s.Is64Bit() {
		return uint64(s.FreeBlocksCountHi())<<32 | uint64(s.FreeBlocksCountLo())
	}

	return uint64(s.FreeBlocksCountLo())
}
