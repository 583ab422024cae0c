// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gptstructs provides encoded definitions for GPT on-disk structures.
package gptstructs

import "encoding/binary"

// On-disk structure sizes.
const (
	// HeaderSize is the size of the defined part of the GPT header.
	HeaderSize = 92
	// EntrySize is the only supported size of a partition entry.
	EntrySize = 128
	// NameSize is the size of the UTF-16LE partition name field.
	NameSize = 72
)

// NumEntries is the number of entries in the GPT.
const NumEntries = 128

// Header is the GPT header, little-endian.
type Header []byte

// Signature returns the "EFI PART" signature.
func (h Header) Signature() uint64 { return binary.LittleEndian.Uint64(h[0:8]) }

// Revision returns the header revision.
func (h Header) Revision() uint32 { return binary.LittleEndian.Uint32(h[8:12]) }

// Size returns the header size as recorded in the header.
func (h Header) Size() uint32 { return binary.LittleEndian.Uint32(h[12:16]) }

// CRC32 returns the recorded header checksum.
func (h Header) CRC32() uint32 { return binary.LittleEndian.Uint32(h[16:20]) }

// MyLBA returns the LBA of this header copy.
func (h Header) MyLBA() uint64 { return binary.LittleEndian.Uint64(h[24:32]) }

// AlternateLBA returns the LBA of the other header copy.
func (h Header) AlternateLBA() uint64 { return binary.LittleEndian.Uint64(h[32:40]) }

// FirstUsableLBA returns the first LBA usable by partitions.
func (h Header) FirstUsableLBA() uint64 { return binary.LittleEndian.Uint64(h[40:48]) }

// LastUsableLBA returns the last LBA usable by partitions.
func (h Header) LastUsableLBA() uint64 { return binary.LittleEndian.Uint64(h[48:56]) }

// DiskGUID returns the mixed-endian disk GUID.
func (h Header) DiskGUID() []byte { return h[56:72] }

// EntriesLBA returns the starting LBA of the partition entry array.
func (h Header) EntriesLBA() uint64 { return binary.LittleEndian.Uint64(h[72:80]) }

// NumEntries returns the number of entries in the partition entry array.
func (h Header) NumEntries() uint32 { return binary.LittleEndian.Uint32(h[80:84]) }

// EntrySize returns the size of a single partition entry.
func (h Header) EntrySize() uint32 { return binary.LittleEndian.Uint32(h[84:88]) }

// EntriesCRC32 returns the recorded checksum of the partition entry array.
func (h Header) EntriesCRC32() uint32 { return binary.LittleEndian.Uint32(h[88:92]) }

// PutSignature sets the signature.
func (h Header) PutSignature(v uint64) { binary.LittleEndian.PutUint64(h[0:8], v) }

// PutRevision sets the revision.
func (h Header) PutRevision(v uint32) { binary.LittleEndian.PutUint32(h[8:12], v) }

// PutSize sets the header size.
func (h Header) PutSize(v uint32) { binary.LittleEndian.PutUint32(h[12:16], v) }

// PutCRC32 sets the header checksum.
func (h Header) PutCRC32(v uint32) { binary.LittleEndian.PutUint32(h[16:20], v) }

// PutMyLBA sets the LBA of this header copy.
func (h Header) PutMyLBA(v uint64) { binary.LittleEndian.PutUint64(h[24:32], v) }

// PutAlternateLBA sets the LBA of the other header copy.
func (h Header) PutAlternateLBA(v uint64) { binary.LittleEndian.PutUint64(h[32:40], v) }

// PutFirstUsableLBA sets the first usable LBA.
func (h Header) PutFirstUsableLBA(v uint64) { binary.LittleEndian.PutUint64(h[40:48], v) }

// PutLastUsableLBA sets the last usable LBA.
func (h Header) PutLastUsableLBA(v uint64) { binary.LittleEndian.PutUint64(h[48:56], v) }

// PutDiskGUID sets the mixed-endian disk GUID.
func (h Header) PutDiskGUID(v []byte) { copy(h[56:72], v) }

// PutEntriesLBA sets the partition entry array LBA.
func (h Header) PutEntriesLBA(v uint64) { binary.LittleEndian.PutUint64(h[72:80], v) }

// PutNumEntries sets the number of partition entries.
func (h Header) PutNumEntries(v uint32) { binary.LittleEndian.PutUint32(h[80:84], v) }

// PutEntrySize sets the size of a partition entry.
func (h Header) PutEntrySize(v uint32) { binary.LittleEndian.PutUint32(h[84:88], v) }

// PutEntriesCRC32 sets the partition entry array checksum.
func (h Header) PutEntriesCRC32(v uint32) { binary.LittleEndian.PutUint32(h[88:92], v) }

// Entry is a single GPT partition entry, little-endian.
type Entry []byte

// TypeGUID returns the mixed-endian partition type GUID.
func (e Entry) TypeGUID() []byte { return e[0:16] }

// UniqueGUID returns the mixed-endian unique partition GUID.
func (e Entry) UniqueGUID() []byte { return e[16:32] }

// StartingLBA returns the first LBA of the partition.
func (e Entry) StartingLBA() uint64 { return binary.LittleEndian.Uint64(e[32:40]) }

// EndingLBA returns the last LBA of the partition (inclusive).
func (e Entry) EndingLBA() uint64 { return binary.LittleEndian.Uint64(e[40:48]) }

// Attributes returns the attribute bitmap.
func (e Entry) Attributes() uint64 { return binary.LittleEndian.Uint64(e[48:56]) }

// Name returns the raw UTF-16LE name field.
func (e Entry) Name() []byte { return e[56 : 56+NameSize] }

// PutTypeGUID sets the partition type GUID.
func (e Entry) PutTypeGUID(v []byte) { copy(e[0:16], v) }

// PutUniqueGUID sets the unique partition GUID.
func (e Entry) PutUniqueGUID(v []byte) { copy(e[16:32], v) }

// PutStartingLBA sets the first LBA.
func (e Entry) PutStartingLBA(v uint64) { binary.LittleEndian.PutUint64(e[32:40], v) }

// PutEndingLBA sets the last LBA.
func (e Entry) PutEndingLBA(v uint64) { binary.LittleEndian.PutUint64(e[40:48], v) }

// PutAttributes sets the attribute bitmap.
func (e Entry) PutAttributes(v uint64) { binary.LittleEndian.PutUint64(e[48:56], v) }

// PutName sets the raw UTF-16LE name field.
func (e Entry) PutName(v []byte) { copy(e[56:56+NameSize], v) }
