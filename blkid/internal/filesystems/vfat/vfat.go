// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package vfat probes FAT12/FAT16/FAT32 filesystems.
package vfat

import (
	"fmt"

	"github.com/siderolabs/go-pointer"

	"github.com/siderolabs/go-guestinspect/blkid/internal/magic"
	"github.com/siderolabs/go-guestinspect/blkid/internal/probe"
	"github.com/siderolabs/go-guestinspect/blkid/internal/utils"
	"github.com/siderolabs/go-guestinspect/internal/ioutil"
)

// Cluster count limits of the FAT variants.
const (
	maxFAT12Clusters = 4084
	maxFAT16Clusters = 65524

	extBootSignature = 0x29
	noName           = "NO NAME"
)

var (
	fatMagic1 = magic.Magic{
		Offset: 0x52,
		Value:  []byte("MSWIN"),
	}

	fatMagic2 = magic.Magic{
		Offset: 0x52,
		Value:  []byte("FAT32   "),
	}

	fatMagic3 = magic.Magic{
		Offset: 0x36,
		Value:  []byte("MSDOS"),
	}

	fatMagic4 = magic.Magic{
		Offset: 0x36,
		Value:  []byte("FAT16   "),
	}

	fatMagic5 = magic.Magic{
		Offset: 0x36,
		Value:  []byte("FAT12   "),
	}

	fatMagic6 = magic.Magic{
		Offset: 0x36,
		Value:  []byte("FAT     "),
	}
)

// Probe for the filesystem.
type Probe struct{}

// Magic returns the magic value for the filesystem.
func (p *Probe) Magic() []*magic.Magic {
	return []*magic.Magic{
		&fatMagic1,
		&fatMagic2,
		&fatMagic3,
		&fatMagic4,
		&fatMagic5,
		&fatMagic6,
	}
}

// Name returns the name of the filesystem.
func (p *Probe) Name() string {
	return "vfat"
}

// Probe runs the further inspection and returns the result if successful.
//
// The result name is one of fat12, fat16 or fat32, picked by the cluster count.
func (p *Probe) Probe(r probe.Reader, _ magic.Magic) (*probe.Result, error) {
	buf := make([]byte, BOOTSECTOR_SIZE)

	if err := ioutil.ReadFullAt(r, buf, 0); err != nil {
		return nil, err
	}

	bs := BootSector(buf)

	if !isValid(bs) {
		return nil, nil //nolint:nilnil
	}

	clusters := bs.Clusters()
	if clusters == 0 {
		return nil, nil //nolint:nilnil
	}

	res := &probe.Result{
		BlockSize: uint32(bs.SectorsPerCluster()) * uint32(bs.SectorSize()),
		Blocks:    uint64(clusters),
	}

	var (
		serial uint32
		label  []byte
		sig    uint8
	)

	switch {
	case clusters > maxFAT16Clusters:
		res.Name = "fat32"
		serial, label, sig = bs.FAT32Serial(), bs.FAT32Label(), bs.FAT32ExtBootSig()
	case clusters > maxFAT12Clusters:
		res.Name = "fat16"
		serial, label, sig = bs.FAT16Serial(), bs.FAT16Label(), bs.FAT16ExtBootSig()
	default:
		res.Name = "fat12"
		serial, label, sig = bs.FAT16Serial(), bs.FAT16Label(), bs.FAT16ExtBootSig()
	}

	res.Features = []string{res.Name}

	if sig == extBootSignature {
		res.Serial = pointer.To(fmt.Sprintf("%04X-%04X", serial>>16, serial&0xFFFF))

		if lbl := utils.PaddedLabel(label); lbl != nil && *lbl != noName {
			res.Label = lbl
		}
	}

	return res, nil
}

func isValid(bs BootSector) bool {
	if bs.FATs() == 0 {
		return false
	}

	if bs.Reserved() == 0 {
		return false
	}

	if !(0xf8 <= bs.Media() || bs.Media() == 0xf0) {
		return false
	}

	if !utils.IsPowerOf2(bs.SectorsPerCluster()) {
		return false
	}

	if !utils.IsPowerOf2(bs.SectorSize()) {
		return false
	}

	if bs.SectorSize() < 512 || bs.SectorSize() > 4096 {
		return false
	}

	return true
}
