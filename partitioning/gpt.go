// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partitioning

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/siderolabs/go-pointer"
	"go.uber.org/zap"

	"github.com/siderolabs/go-guestinspect/internal/gptstructs"
	"github.com/siderolabs/go-guestinspect/internal/gptutil"
)

const primaryLBA = 1

// sectorView overrides the sector size of the reader.
type sectorView struct {
	io.ReaderAt

	sectorSize uint
	size       uint64
}

func (v sectorView) GetSectorSize() uint { return v.sectorSize }
func (v sectorView) GetSize() uint64     { return v.size }

// candidateSectorSizes returns the sector sizes to try, reported size first.
func candidateSectorSizes(reported uint) []uint {
	switch reported {
	case 512:
		return []uint{512, 4096}
	case 4096:
		return []uint{4096, 512}
	default:
		return []uint{reported}
	}
}

func parseGPT(r Reader, reportedSectorSize uint, options Options) ([]Entry, error) {
	for _, sectorSize := range candidateSectorSizes(reportedSectorSize) {
		view := sectorView{ReaderAt: r, sectorSize: sectorSize, size: r.GetSize()}

		lastLBA, ok := gptutil.LastLBA(view)
		if !ok || lastLBA < primaryLBA {
			continue
		}

		hdr, entries, err := readGPTHeader(view, lastLBA, options)
		if err != nil {
			return nil, err
		}

		if hdr == nil {
			continue
		}

		if sectorSize != reportedSectorSize {
			options.Logger.Debug("GPT found with non-default sector size", zap.Uint("sector_size", sectorSize))
		}

		return decodeGPTEntries(hdr, entries, sectorSize)
	}

	return nil, detectError("GPT header", ErrGPTMissing)
}

// readGPTHeader reads the primary header, falling back to the backup copy only if the primary one is absent.
func readGPTHeader(r sectorView, lastLBA uint64, options Options) (gptstructs.Header, []gptstructs.Entry, error) {
	hdr, entries, err := gptstructs.ReadHeader(r, primaryLBA, lastLBA)
	if err != nil {
		return nil, nil, gptError("primary GPT header", err)
	}

	if hdr != nil {
		return hdr, entries, nil
	}

	// the primary header is outside of the disk for 4096-byte sectors on tiny disks
	if lastLBA == primaryLBA {
		return nil, nil, nil
	}

	hdr, entries, err = gptstructs.ReadHeader(r, lastLBA, lastLBA)
	if err != nil {
		return nil, nil, gptError("backup GPT header", err)
	}

	if hdr != nil {
		options.Logger.Warn("primary GPT header missing, using backup header")
	}

	return hdr, entries, nil
}

func gptError(check string, err error) error {
	switch {
	case errors.Is(err, gptstructs.ErrHeaderCRC),
		errors.Is(err, gptstructs.ErrEntriesCRC),
		errors.Is(err, gptstructs.ErrHeaderInvalid):
		return detectError(check, err)
	default:
		return fmt.Errorf("failed to read %s: %w", check, err)
	}
}

func decodeGPTEntries(hdr gptstructs.Header, entries []gptstructs.Entry, sectorSize uint) ([]Entry, error) {
	var result []Entry

	zeroGUID := make([]byte, 16)
	firstUsableLBA := hdr.FirstUsableLBA()
	lastUsableLBA := hdr.LastUsableLBA()

	for idx, entry := range entries {
		// skip unused slots
		if bytes.Equal(entry.TypeGUID(), zeroGUID) {
			continue
		}

		partIdx := uint(idx + 1)

		if entry.EndingLBA() < entry.StartingLBA() {
			return nil, detectError("partition bounds", fmt.Errorf("%w: partition %d ending LBA %d before starting LBA %d",
				ErrOutOfBounds, partIdx, entry.EndingLBA(), entry.StartingLBA()))
		}

		if entry.StartingLBA() < firstUsableLBA || entry.EndingLBA() > lastUsableLBA {
			return nil, detectError("partition bounds", fmt.Errorf("%w: partition %d (LBA %d-%d) outside of usable range %d-%d",
				ErrOutOfBounds, partIdx, entry.StartingLBA(), entry.EndingLBA(), firstUsableLBA, lastUsableLBA))
		}

		start, end, err := byteRange(entry.StartingLBA(), entry.EndingLBA()-entry.StartingLBA()+1, sectorSize)
		if err != nil {
			return nil, err
		}

		typeUUID, err := gptutil.ParseGUID(entry.TypeGUID())
		if err != nil {
			return nil, err
		}

		partUUID, err := gptutil.ParseGUID(entry.UniqueGUID())
		if err != nil {
			return nil, err
		}

		name, err := gptutil.DecodeName(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to decode name of partition %d: %w", partIdx, err)
		}

		result = append(result, Entry{
			Index:      partIdx,
			Start:      start,
			End:        end,
			TypeGUID:   &typeUUID,
			PartGUID:   &partUUID,
			Attributes: entry.Attributes(),
			Name:       pointer.To(name),
		})
	}

	return result, nil
}
