// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package partitioning implements MBR and GPT partition table parsing.
package partitioning

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderolabs/go-guestinspect/internal/ioutil"
)

// DefaultSectorSize is the logical sector size assumed when the reader doesn't report one.
const DefaultSectorSize = 512

// Scheme is the partitioning scheme of a disk.
type Scheme int

// Partitioning schemes.
const (
	SchemeNone Scheme = iota
	SchemeMBR
	SchemeGPT
)

func (s Scheme) String() string {
	switch s {
	case SchemeMBR:
		return "mbr"
	case SchemeGPT:
		return "gpt"
	case SchemeNone:
		return "none"
	default:
		return "scheme(" + strconv.Itoa(int(s)) + ")"
	}
}

// Reader is a block-addressable view of the disk.
type Reader interface {
	io.ReaderAt

	GetSectorSize() uint
	GetSize() uint64
}

// Entry is a single partition.
type Entry struct { //nolint:govet
	// Index is 1-based: GPT slot number, MBR primary slot (1-4) or logical number (5+).
	Index uint

	// Start and End are byte offsets, End is exclusive.
	Start, End uint64

	// MBRType is the MBR partition type code (MBR only).
	MBRType byte
	// Bootable is the MBR active flag.
	Bootable bool
	// Extended is set for the MBR extended partition container.
	Extended bool
	// Logical is set for partitions found in the EBR chain.
	Logical bool

	// TypeGUID and PartGUID are set for GPT partitions.
	TypeGUID *uuid.UUID
	PartGUID *uuid.UUID
	// Attributes is the GPT attribute bitmap.
	Attributes uint64
	// Name is the decoded GPT partition name.
	Name *string
}

// Size returns the partition size in bytes.
func (e Entry) Size() uint64 {
	return e.End - e.Start
}

// TypeName returns a human readable partition type.
func (e Entry) TypeName() string {
	if e.TypeGUID != nil {
		return GPTTypeName(*e.TypeGUID)
	}

	return MBRTypeName(e.MBRType)
}

// Parse detects the partitioning scheme and decodes the partition entries.
//
// A disk without a boot signature reports SchemeNone and no entries.
// Structural inconsistencies are reported as *DetectError, read failures
// are returned as is.
func Parse(r Reader, opts ...Option) (Scheme, []Entry, error) {
	options := applyOptions(opts...)

	sectorSize := r.GetSectorSize()
	if sectorSize == 0 {
		sectorSize = DefaultSectorSize
	}

	if r.GetSize() < DefaultSectorSize {
		return SchemeNone, nil, detectError("boot sector", fmt.Errorf("%w: disk size %d", ErrShortBootSector, r.GetSize()))
	}

	bootSector := make([]byte, DefaultSectorSize)

	if err := ioutil.ReadFullAt(r, bootSector, 0); err != nil {
		return SchemeNone, nil, fmt.Errorf("failed to read boot sector: %w", err)
	}

	if bootSector[mbrSignatureOffset] != 0x55 || bootSector[mbrSignatureOffset+1] != 0xAA {
		options.Logger.Debug("no boot signature found")

		return SchemeNone, nil, nil
	}

	primaries := decodeMBREntries(bootSector)

	var (
		scheme  Scheme
		entries []Entry
		err     error
	)

	if isProtective(primaries) {
		scheme = SchemeGPT
		entries, err = parseGPT(r, sectorSize, options)
	} else {
		scheme = SchemeMBR
		entries, err = parseMBR(r, sectorSize, primaries, options)
	}

	if err != nil {
		return SchemeNone, nil, err
	}

	if err = validate(entries, r.GetSize()); err != nil {
		return SchemeNone, nil, err
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return int(a.Index) - int(b.Index)
	})

	options.Logger.Debug("parsed partition table", zap.Stringer("scheme", scheme), zap.Int("partitions", len(entries)))

	return scheme, entries, nil
}

func validate(entries []Entry, diskSize uint64) error {
	for _, e := range entries {
		if e.Start >= e.End {
			return detectError("partition bounds", fmt.Errorf("%w: partition %d start %d >= end %d", ErrOutOfBounds, e.Index, e.Start, e.End))
		}

		if e.End > diskSize {
			return detectError("partition bounds", fmt.Errorf("%w: partition %d ends at %d, disk size %d", ErrOutOfBounds, e.Index, e.End, diskSize))
		}
	}

	// the extended container overlaps its logical partitions by definition
	sorted := slices.DeleteFunc(slices.Clone(entries), func(e Entry) bool { return e.Extended })

	slices.SortFunc(sorted, func(a, b Entry) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			return detectError("partition overlap", fmt.Errorf("%w: partitions %d and %d", ErrOverlap, sorted[i-1].Index, sorted[i].Index))
		}
	}

	return nil
}

// DevName returns the devname for the partition on a disk.
func DevName(device string, part uint) string {
	result := device

	if len(result) > 0 && result[len(result)-1] >= '0' && result[len(result)-1] <= '9' {
		result += "p"
	}

	return result + strconv.FormatUint(uint64(part), 10)
}
