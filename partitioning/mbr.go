// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partitioning

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/siderolabs/go-guestinspect/internal/ioutil"
)

const (
	mbrSignatureOffset = 510
	mbrEntriesOffset   = 446
	mbrEntrySize       = 16
	mbrNumEntries      = 4

	firstLogicalIndex = 5
)

// MBR partition type codes with special meaning to the parser.
const (
	MBRTypeEmpty         = 0x00
	MBRTypeExtendedCHS   = 0x05
	MBRTypeExtendedLBA   = 0x0F
	MBRTypeExtendedLinux = 0x85
	MBRTypeProtective    = 0xEE
)

type mbrEntry struct {
	bootFlag byte
	typ      byte
	startLBA uint32
	sectors  uint32
}

func (e mbrEntry) isExtended() bool {
	switch e.typ {
	case MBRTypeExtendedCHS, MBRTypeExtendedLBA, MBRTypeExtendedLinux:
		return true
	default:
		return false
	}
}

func decodeMBREntries(sector []byte) [mbrNumEntries]mbrEntry {
	var entries [mbrNumEntries]mbrEntry

	for i := range entries {
		b := sector[mbrEntriesOffset+i*mbrEntrySize : mbrEntriesOffset+(i+1)*mbrEntrySize]

		entries[i] = mbrEntry{
			bootFlag: b[0],
			typ:      b[4],
			startLBA: binary.LittleEndian.Uint32(b[8:12]),
			sectors:  binary.LittleEndian.Uint32(b[12:16]),
		}
	}

	return entries
}

// isProtective reports whether the first MBR entry is the GPT protective marker.
func isProtective(entries [mbrNumEntries]mbrEntry) bool {
	return entries[0].typ == MBRTypeProtective
}

func byteRange(startLBA, sectors uint64, sectorSize uint) (uint64, uint64, error) {
	start, err := ioutil.MulOffset(startLBA, uint64(sectorSize))
	if err != nil {
		return 0, 0, detectError("partition offset", fmt.Errorf("%w: %w", ErrOverflow, err))
	}

	length, err := ioutil.MulOffset(sectors, uint64(sectorSize))
	if err != nil {
		return 0, 0, detectError("partition offset", fmt.Errorf("%w: %w", ErrOverflow, err))
	}

	end := start + length
	if end < start {
		return 0, 0, detectError("partition offset", fmt.Errorf("%w: start %d + length %d", ErrOverflow, start, length))
	}

	return start, end, nil
}

func parseMBR(r Reader, sectorSize uint, primaries [mbrNumEntries]mbrEntry, options Options) ([]Entry, error) {
	var (
		entries  []Entry
		extended *Entry
	)

	for i, p := range primaries {
		if p.typ == MBRTypeEmpty {
			continue
		}

		start, end, err := byteRange(uint64(p.startLBA), uint64(p.sectors), sectorSize)
		if err != nil {
			return nil, err
		}

		entry := Entry{
			Index:    uint(i + 1),
			Start:    start,
			End:      end,
			MBRType:  p.typ,
			Bootable: p.bootFlag&0x80 != 0,
			Extended: p.isExtended(),
		}

		entries = append(entries, entry)

		if entry.Extended {
			if extended != nil {
				options.Logger.Warn("ignoring additional extended partition", zap.Uint("index", entry.Index))

				continue
			}

			extended = &entry
		}
	}

	if extended == nil {
		return entries, nil
	}

	if extended.End > r.GetSize() {
		return nil, detectError("partition bounds", fmt.Errorf("%w: extended partition %d ends at %d, disk size %d",
			ErrOutOfBounds, extended.Index, extended.End, r.GetSize()))
	}

	logical, err := walkEBRChain(r, sectorSize, *extended, options)
	if err != nil {
		return nil, err
	}

	return append(entries, logical...), nil
}

// walkEBRChain follows the linked list of extended boot records.
//
// Each EBR holds one logical partition (relative to the EBR itself) and a
// link to the next EBR (relative to the start of the extended partition).
func walkEBRChain(r Reader, sectorSize uint, extended Entry, options Options) ([]Entry, error) {
	var logical []Entry

	extStartLBA := extended.Start / uint64(sectorSize)
	extEndLBA := extended.End / uint64(sectorSize)

	visited := map[uint64]struct{}{}
	ebrLBA := extStartLBA
	sector := make([]byte, DefaultSectorSize)

	for {
		if _, seen := visited[ebrLBA]; seen {
			return nil, detectError("extended boot record chain", fmt.Errorf("%w: LBA %d visited twice", ErrEBRCycle, ebrLBA))
		}

		visited[ebrLBA] = struct{}{}

		if len(visited) > options.MaxLogicalPartitions {
			return nil, detectError("extended boot record chain", fmt.Errorf("%w: more than %d", ErrTooManyLogical, options.MaxLogicalPartitions))
		}

		if ebrLBA < extStartLBA || ebrLBA >= extEndLBA {
			return nil, detectError("extended boot record chain", fmt.Errorf("%w: EBR at LBA %d outside of extended partition", ErrOutOfBounds, ebrLBA))
		}

		offset, err := ioutil.MulOffset(ebrLBA, uint64(sectorSize))
		if err != nil {
			return nil, detectError("extended boot record chain", fmt.Errorf("%w: %w", ErrOverflow, err))
		}

		if err = ioutil.ReadFullAt(r, sector, int64(offset)); err != nil {
			return nil, fmt.Errorf("failed to read EBR at LBA %d: %w", ebrLBA, err)
		}

		if sector[mbrSignatureOffset] != 0x55 || sector[mbrSignatureOffset+1] != 0xAA {
			return nil, detectError("extended boot record chain", fmt.Errorf("%w: LBA %d", ErrEBRSignature, ebrLBA))
		}

		ebr := decodeMBREntries(sector)

		if data := ebr[0]; data.typ != MBRTypeEmpty && data.sectors != 0 {
			start, end, err := byteRange(ebrLBA+uint64(data.startLBA), uint64(data.sectors), sectorSize)
			if err != nil {
				return nil, err
			}

			if start < extended.Start || end > extended.End {
				return nil, detectError("partition bounds", fmt.Errorf("%w: logical partition at %d-%d outside of extended partition", ErrOutOfBounds, start, end))
			}

			logical = append(logical, Entry{
				Index:    uint(firstLogicalIndex + len(logical)),
				Start:    start,
				End:      end,
				MBRType:  data.typ,
				Bootable: data.bootFlag&0x80 != 0,
				Logical:  true,
			})
		}

		next := ebr[1]
		if next.typ == MBRTypeEmpty || next.startLBA == 0 {
			break
		}

		ebrLBA = extStartLBA + uint64(next.startLBA)
	}

	options.Logger.Debug("walked EBR chain", zap.Int("logical", len(logical)), zap.Int("ebrs", len(visited)))

	return logical, nil
}
