// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package xfs

import "encoding/binary"

// SUPERBLOCK_SIZE covers the v4 superblock fields.
//
//nolint:revive,stylecheck
const SUPERBLOCK_SIZE = 264

// SuperBlock is the XFS superblock, big-endian.
type SuperBlock []byte

func (s SuperBlock) BlockSize() uint32  { return binary.BigEndian.Uint32(s[4:]) }
func (s SuperBlock) DBlocks() uint64    { return binary.BigEndian.Uint64(s[8:]) }
func (s SuperBlock) UUID() []byte       { return s[32:48] }
func (s SuperBlock) LogStart() uint64   { return binary.BigEndian.Uint64(s[48:]) }
func (s SuperBlock) RExtSize() uint32   { return binary.BigEndian.Uint32(s[80:]) }
func (s SuperBlock) AGCount() uint32    { return binary.BigEndian.Uint32(s[88:]) }
func (s SuperBlock) LogBlocks() uint32  { return binary.BigEndian.Uint32(s[96:]) }
func (s SuperBlock) VersionNum() uint16 { return binary.BigEndian.Uint16(s[100:]) }
func (s SuperBlock) SectSize() uint16   { return binary.BigEndian.Uint16(s[102:]) }
func (s SuperBlock) InodeSize() uint16  { return binary.BigEndian.Uint16(s[104:]) }
func (s SuperBlock) FName() []byte      { return s[108:120] }
func (s SuperBlock) BlockLog() uint8    { return s[120] }
func (s SuperBlock) SectLog() uint8     { return s[121] }
func (s SuperBlock) InodeLog() uint8    { return s[122] }
func (s SuperBlock) InoPBLog() uint8    { return s[123] }
func (s SuperBlock) IMaxPct() uint8     { return s[127] }
func (s SuperBlock) FDBlocks() uint64   { return binary.BigEndian.Uint64(s[144:]) }
