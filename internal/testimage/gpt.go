// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package testimage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/siderolabs/go-guestinspect/internal/gptstructs"
	"github.com/siderolabs/go-guestinspect/internal/gptutil"
)

// GPTOptions is a set of options for creating a new partition table.
type GPTOptions struct {
	SkipPMBR         bool
	MarkPMBRBootable bool

	// DiskGUID is a GUID for the disk.
	//
	// If not set, a new GUID is generated.
	DiskGUID uuid.UUID
}

// GPTOption is a function that sets some option.
type GPTOption func(*GPTOptions)

// WithSkipPMBR is an option to skip writing protective MBR.
func WithSkipPMBR() GPTOption {
	return func(o *GPTOptions) {
		o.SkipPMBR = true
	}
}

// WithMarkPMBRBootable is an option to mark protective MBR bootable.
func WithMarkPMBRBootable() GPTOption {
	return func(o *GPTOptions) {
		o.MarkPMBRBootable = true
	}
}

// WithDiskGUID is an option to set disk GUID.
func WithDiskGUID(guid uuid.UUID) GPTOption {
	return func(o *GPTOptions) {
		o.DiskGUID = guid
	}
}

// PartitionOptions configure a partition.
type PartitionOptions struct {
	UniqueGUID uuid.UUID
	Flags      uint64
}

// PartitionOption is a function that sets some option.
type PartitionOption func(*PartitionOptions)

// WithUniqueGUID is an option to set a unique GUID for the partition.
func WithUniqueGUID(guid uuid.UUID) PartitionOption {
	return func(o *PartitionOptions) {
		o.UniqueGUID = guid
	}
}

// WithLegacyBIOSBootableAttribute marks the partition as bootable.
func WithLegacyBIOSBootableAttribute(val bool) PartitionOption {
	return func(args *PartitionOptions) {
		if val {
			args.Flags |= (1 << 2)
		}
	}
}

// GPTPartition is a single partition entry in GPT.
type GPTPartition struct {
	Name string

	TypeGUID uuid.UUID
	PartGUID uuid.UUID

	FirstLBA uint64
	LastLBA  uint64

	Flags uint64
}

// Offset returns the partition offset in bytes.
func (p GPTPartition) Offset(sectorSize uint) uint64 {
	return p.FirstLBA * uint64(sectorSize)
}

// GPT is a GPT partition table being built.
type GPT struct {
	img *Image

	// sparse slots are nil
	entries []*GPTPartition

	lastLBA uint64

	primaryHeaderLBA, secondaryHeaderLBA         uint64
	primaryPartitionsLBA, secondaryPartitionsLBA uint64
	firstUsableLBA, lastUsableLBA                uint64

	diskGUID uuid.UUID

	options GPTOptions

	alignment  uint64
	sectorSize uint
	nextLBA    uint64
}

// NewGPT creates a new (empty) partition table for the image.
func NewGPT(img *Image, opts ...GPTOption) (*GPT, error) {
	var options GPTOptions

	for _, opt := range opts {
		opt(&options)
	}

	lastLBA, ok := gptutil.LastLBA(img)
	if !ok {
		return nil, errors.New("failed to calculate last LBA (image too small?)")
	}

	if lastLBA < 33 {
		return nil, errors.New("image too small for GPT")
	}

	diskGUID := options.DiskGUID
	if diskGUID == uuid.Nil {
		diskGUID = uuid.New()
	}

	t := &GPT{
		img:      img,
		options:  options,
		diskGUID: diskGUID,
	}

	t.init(lastLBA)

	return t, nil
}

func (t *GPT) init(lastLBA uint64) {
	t.lastLBA = lastLBA
	t.sectorSize = t.img.GetSectorSize()

	lbasForEntries := (gptstructs.EntrySize*gptstructs.NumEntries + t.sectorSize - 1) / t.sectorSize

	t.primaryHeaderLBA = 1
	t.secondaryHeaderLBA = lastLBA

	t.primaryPartitionsLBA = t.primaryHeaderLBA + 1
	t.secondaryPartitionsLBA = t.secondaryHeaderLBA - uint64(lbasForEntries)

	t.firstUsableLBA = t.primaryPartitionsLBA + uint64(lbasForEntries)
	t.lastUsableLBA = t.secondaryPartitionsLBA - 1

	t.alignment = uint64((MiB + t.sectorSize - 1) / t.sectorSize)
	t.nextLBA = t.firstUsableLBA
}

// AllocatePartition appends a new partition after the last one.
//
// Returns the partition number (1-indexed) and the partition entry created.
func (t *GPT) AllocatePartition(size uint64, name string, partType uuid.UUID, opts ...PartitionOption) (int, GPTPartition, error) {
	var options PartitionOptions

	for _, o := range opts {
		o(&options)
	}

	if size < uint64(t.sectorSize) {
		return 0, GPTPartition{}, errors.New("partition size must be greater than sector size")
	}

	if options.UniqueGUID == uuid.Nil {
		options.UniqueGUID = uuid.New()
	}

	firstLBA := (t.nextLBA + t.alignment - 1) / t.alignment * t.alignment
	lastLBA := firstLBA + size/uint64(t.sectorSize) - 1

	if lastLBA > t.lastUsableLBA {
		return 0, GPTPartition{}, fmt.Errorf("no room for %d bytes", size)
	}

	entry := &GPTPartition{
		Name:     name,
		TypeGUID: partType,
		PartGUID: options.UniqueGUID,
		FirstLBA: firstLBA,
		LastLBA:  lastLBA,
		Flags:    options.Flags,
	}

	t.entries = append(t.entries, entry)
	t.nextLBA = lastLBA + 1

	return len(t.entries), *entry, nil
}

// SkipSlot leaves an unused (zero type GUID) slot in the entry array.
func (t *GPT) SkipSlot() {
	t.entries = append(t.entries, nil)
}

// Partitions returns the list of partitions in the table.
func (t *GPT) Partitions() []*GPTPartition {
	return slices.Clone(t.entries)
}

// Write writes the partition table to the image.
func (t *GPT) Write() error {
	entriesBuf := make([]byte, gptstructs.EntrySize*gptstructs.NumEntries)

	for i, entry := range t.entries {
		if entry == nil {
			continue
		}

		entryBuf := gptstructs.Entry(entriesBuf[i*gptstructs.EntrySize : (i+1)*gptstructs.EntrySize])
		entryBuf.PutTypeGUID(gptutil.UUIDToGUID(entry.TypeGUID[:]))
		entryBuf.PutUniqueGUID(gptutil.UUIDToGUID(entry.PartGUID[:]))
		entryBuf.PutStartingLBA(entry.FirstLBA)
		entryBuf.PutEndingLBA(entry.LastLBA)
		entryBuf.PutAttributes(entry.Flags)

		nameBuf, err := gptutil.EncodeName(entry.Name, gptstructs.NameSize)
		if err != nil {
			return err
		}

		entryBuf.PutName(nameBuf)
	}

	entriesChecksum := crc32.ChecksumIEEE(entriesBuf)

	// GPT header should occupy whole sector
	header := gptstructs.Header(make([]byte, t.sectorSize))
	header.PutSignature(gptstructs.HeaderSignature)
	header.PutRevision(0x00010000)
	header.PutSize(gptstructs.HeaderSize)
	header.PutFirstUsableLBA(t.firstUsableLBA)
	header.PutLastUsableLBA(t.lastUsableLBA)
	header.PutDiskGUID(gptutil.UUIDToGUID(t.diskGUID[:]))
	header.PutNumEntries(gptstructs.NumEntries)
	header.PutEntrySize(gptstructs.EntrySize)
	header.PutEntriesCRC32(entriesChecksum)

	primaryHeader := slices.Clone(header)
	primaryHeader.PutMyLBA(t.primaryHeaderLBA)
	primaryHeader.PutAlternateLBA(t.secondaryHeaderLBA)
	primaryHeader.PutEntriesLBA(t.primaryPartitionsLBA)
	primaryHeader.PutCRC32(primaryHeader.CalculateChecksum())

	secondaryHeader := slices.Clone(header)
	secondaryHeader.PutMyLBA(t.secondaryHeaderLBA)
	secondaryHeader.PutAlternateLBA(t.primaryHeaderLBA)
	secondaryHeader.PutEntriesLBA(t.secondaryPartitionsLBA)
	secondaryHeader.PutCRC32(secondaryHeader.CalculateChecksum())

	for _, w := range []struct {
		data []byte
		lba  uint64
	}{
		{primaryHeader, t.primaryHeaderLBA},
		{entriesBuf, t.primaryPartitionsLBA},
		{secondaryHeader, t.secondaryHeaderLBA},
		{entriesBuf, t.secondaryPartitionsLBA},
	} {
		if _, err := t.img.WriteAt(w.data, int64(w.lba)*int64(t.sectorSize)); err != nil {
			return err
		}
	}

	if !t.options.SkipPMBR {
		return t.writePMBR()
	}

	return nil
}

// PrimaryHeaderOffset returns the byte offset of the primary header.
func (t *GPT) PrimaryHeaderOffset() uint64 {
	return t.primaryHeaderLBA * uint64(t.sectorSize)
}

// PrimaryEntriesOffset returns the byte offset of the primary partition entry array.
func (t *GPT) PrimaryEntriesOffset() uint64 {
	return t.primaryPartitionsLBA * uint64(t.sectorSize)
}

func (t *GPT) writePMBR() error {
	protectiveMBR := make([]byte, 512)

	if _, err := t.img.ReadAt(protectiveMBR, 0); err != nil {
		return fmt.Errorf("failed to read protective MBR: %w", err)
	}

	protectiveMBR[510], protectiveMBR[511] = 0x55, 0xAA

	b := protectiveMBR[446 : 446+16]

	if t.options.MarkPMBRBootable {
		b[0] = 0x80
	} else {
		b[0] = 0x00
	}

	// Partition type: EFI data partition.
	b[4] = 0xee

	copy(b[1:4], []byte{0x00, 0x02, 0x00})
	copy(b[5:8], []byte{0xff, 0xff, 0xff})

	binary.LittleEndian.PutUint32(b[8:12], 1)

	if t.lastLBA > math.MaxUint32 {
		binary.LittleEndian.PutUint32(b[12:16], uint32(math.MaxUint32))
	} else {
		binary.LittleEndian.PutUint32(b[12:16], uint32(t.lastLBA))
	}

	_, err := t.img.WriteAt(protectiveMBR, 0)

	return err
}
