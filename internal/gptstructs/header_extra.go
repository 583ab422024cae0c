// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gptstructs

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"slices"

	"github.com/siderolabs/go-guestinspect/internal/ioutil"
)

// HeaderSignature is the signature of the GPT header.
const HeaderSignature = 0x5452415020494645 // "EFI PART"

// MaxEntries limits the size of the partition entry array accepted on read.
//
// The entry array must also fit between LBA 2 and the last LBA of the disk.
const MaxEntries = 1 << 16

// Header validation errors.
var (
	ErrHeaderCRC     = errors.New("GPT header checksum mismatch")
	ErrEntriesCRC    = errors.New("GPT partition entry array checksum mismatch")
	ErrHeaderInvalid = errors.New("GPT header is invalid")
)

// CalculateChecksum calculates the checksum of the header.
//
// The checksum field itself is zeroed for the calculation.
func (h Header) CalculateChecksum() uint32 {
	size := h.Size()
	if size < HeaderSize || int(size) > len(h) {
		size = HeaderSize
	}

	b := slices.Clone(h[:size])

	b[16] = 0
	b[17] = 0
	b[18] = 0
	b[19] = 0

	return crc32.ChecksumIEEE(b)
}

// HeaderReader is an interface for reading GPT headers.
type HeaderReader interface {
	io.ReaderAt
	GetSectorSize() uint
}

// ReadHeader reads the GPT header and partition entries.
//
// A missing signature is reported as (nil, nil, nil). Any other failed
// check is returned as an error wrapping one of ErrHeaderCRC, ErrEntriesCRC
// or ErrHeaderInvalid.
//
//nolint:gocyclo,cyclop
func ReadHeader(r HeaderReader, lba, lastLBA uint64) (Header, []Entry, error) {
	sectorSize := r.GetSectorSize()
	buf := make([]byte, sectorSize)

	offset, err := ioutil.MulOffset(lba, uint64(sectorSize))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrHeaderInvalid, err)
	}

	if err = ioutil.ReadFullAt(r, buf, int64(offset)); err != nil {
		return nil, nil, err
	}

	hdr := Header(buf)

	if hdr.Signature() != HeaderSignature {
		return nil, nil, nil
	}

	headerSize := hdr.Size()
	if headerSize < HeaderSize || uint(headerSize) > sectorSize {
		return nil, nil, fmt.Errorf("%w: header size %d", ErrHeaderInvalid, headerSize)
	}

	if recorded, calculated := hdr.CRC32(), hdr.CalculateChecksum(); recorded != calculated {
		return nil, nil, fmt.Errorf("%w: recorded 0x%08x, calculated 0x%08x", ErrHeaderCRC, recorded, calculated)
	}

	if hdr.MyLBA() != lba {
		return nil, nil, fmt.Errorf("%w: header LBA %d, read at %d", ErrHeaderInvalid, hdr.MyLBA(), lba)
	}

	firstUsableLBA := hdr.FirstUsableLBA()
	lastUsableLBA := hdr.LastUsableLBA()

	if lastUsableLBA < firstUsableLBA || firstUsableLBA > lastLBA || lastUsableLBA > lastLBA {
		return nil, nil, fmt.Errorf("%w: usable range %d-%d, last LBA %d", ErrHeaderInvalid, firstUsableLBA, lastUsableLBA, lastLBA)
	}

	// header should be outside the usable range
	if firstUsableLBA <= lba && lba <= lastUsableLBA {
		return nil, nil, fmt.Errorf("%w: header LBA %d inside usable range", ErrHeaderInvalid, lba)
	}

	if hdr.EntrySize() != EntrySize {
		return nil, nil, fmt.Errorf("%w: entry size %d", ErrHeaderInvalid, hdr.EntrySize())
	}

	numEntries := hdr.NumEntries()
	if numEntries == 0 || numEntries > MaxEntries {
		return nil, nil, fmt.Errorf("%w: %d entries", ErrHeaderInvalid, numEntries)
	}

	entriesLBA := hdr.EntriesLBA()
	entriesSectors := (uint64(numEntries)*EntrySize + uint64(sectorSize) - 1) / uint64(sectorSize)

	if entriesLBA < 2 || entriesLBA > lastLBA || lastLBA-entriesLBA+1 < entriesSectors {
		return nil, nil, fmt.Errorf("%w: %d entries at LBA %d, last LBA %d", ErrHeaderInvalid, numEntries, entriesLBA, lastLBA)
	}

	entriesOffset, err := ioutil.MulOffset(entriesLBA, uint64(sectorSize))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrHeaderInvalid, err)
	}

	entriesBuffer := make([]byte, numEntries*EntrySize)

	if err = ioutil.ReadFullAt(r, entriesBuffer, int64(entriesOffset)); err != nil {
		return nil, nil, err
	}

	if recorded, calculated := hdr.EntriesCRC32(), crc32.ChecksumIEEE(entriesBuffer); recorded != calculated {
		return nil, nil, fmt.Errorf("%w: recorded 0x%08x, calculated 0x%08x", ErrEntriesCRC, recorded, calculated)
	}

	entries := make([]Entry, numEntries)
	for i := range entries {
		entries[i] = Entry(entriesBuffer[i*EntrySize : (i+1)*EntrySize])
	}

	return hdr, entries, nil
}
