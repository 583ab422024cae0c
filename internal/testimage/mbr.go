// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package testimage

import "encoding/binary"

// MBREntry is a raw MBR/EBR partition slot.
type MBREntry struct {
	Bootable bool
	Type     byte
	StartLBA uint32
	Sectors  uint32
}

func putMBREntry(sector []byte, slot int, e MBREntry) {
	b := sector[446+slot*16 : 446+(slot+1)*16]

	if e.Bootable {
		b[0] = 0x80
	}

	b[4] = e.Type
	binary.LittleEndian.PutUint32(b[8:12], e.StartLBA)
	binary.LittleEndian.PutUint32(b[12:16], e.Sectors)
}

// WriteMBR writes a boot sector with up to four primary entries at LBA 0.
func WriteMBR(img *Image, entries ...MBREntry) {
	WriteBootRecord(img, 0, entries...)
}

// WriteBootRecord writes a boot record (MBR or EBR) at the given LBA.
//
// Only the partition table and the signature are touched.
func WriteBootRecord(img *Image, lba uint64, entries ...MBREntry) {
	sector := make([]byte, 512)
	offset := lba * uint64(img.GetSectorSize())

	copy(sector, img.buf[offset:offset+512])

	for i := range 4 {
		clear(sector[446+i*16 : 446+(i+1)*16])
	}

	for i, e := range entries {
		putMBREntry(sector, i, e)
	}

	sector[510], sector[511] = 0x55, 0xAA

	img.Put(offset, sector)
}

// LogicalPartition describes a partition inside of an extended partition.
type LogicalPartition struct {
	Type byte
	// EBROffset is the EBR LBA relative to the extended partition start.
	EBROffset uint32
	// DataOffset is the data start relative to the EBR.
	DataOffset uint32
	Sectors    uint32
}

// WriteEBRChain writes a linked list of EBRs inside the extended partition at extStart.
//
// The last EBR terminates the chain unless loopTo is non-zero, in which
// case the last EBR links back to that offset (relative to extStart).
func WriteEBRChain(img *Image, extStart uint32, logical []LogicalPartition, loopTo uint32) {
	for i, lp := range logical {
		entries := []MBREntry{
			{Type: lp.Type, StartLBA: lp.DataOffset, Sectors: lp.Sectors},
		}

		switch {
		case i+1 < len(logical):
			next := logical[i+1]
			entries = append(entries, MBREntry{Type: 0x05, StartLBA: next.EBROffset, Sectors: next.DataOffset + next.Sectors})
		case loopTo != 0:
			entries = append(entries, MBREntry{Type: 0x05, StartLBA: loopTo, Sectors: 1})
		}

		WriteBootRecord(img, uint64(extStart+lp.EBROffset), entries...)
	}
}
