// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package container

import (
	"bytes"
	"encoding/binary"
)

type detector struct {
	format Format
	magic  []byte
	offset int
	parse  func(prefix []byte) (Info, bool)
}

var (
	qcow2Magic      = []byte{'Q', 'F', 'I', 0xFB}
	vmdkMagic       = []byte("KDMV")
	vmdkDescriptor  = []byte("# Disk DescriptorFile")
	vdiMagic        = binary.LittleEndian.AppendUint32(nil, 0xbeda107f)
	vhdxMagic       = []byte("vhdxfile")
	vhdMagic        = []byte("conectix")
	vhdDynamicMagic = []byte("cxsparse")
)

// detectors in specificity order.
var detectors = []detector{
	{format: Qcow2, magic: qcow2Magic, parse: parseQcow2},
	{format: Vmdk, magic: vmdkMagic, parse: parseVMDKSparse},
	{format: Vmdk, magic: vmdkDescriptor, parse: parseVMDKDescriptor},
	{format: Vdi, magic: vdiMagic, offset: 0x40, parse: parseVDI},
	{format: Vhdx, magic: vhdxMagic, parse: func([]byte) (Info, bool) { return Info{}, true }},
	{format: Vhd, magic: vhdMagic, parse: parseVHDDynamic},
}

// qcow2 header, big-endian.
const (
	qcow2VersionOffset     = 4
	qcow2ClusterBitsOffset = 20
	qcow2SizeOffset        = 24
	qcow2MinHeaderSize     = 32

	qcow2MinClusterBits = 9
	qcow2MaxClusterBits = 21
)

func parseQcow2(prefix []byte) (Info, bool) {
	if len(prefix) < qcow2MinHeaderSize {
		return Info{}, false
	}

	version := binary.BigEndian.Uint32(prefix[qcow2VersionOffset:])
	clusterBits := binary.BigEndian.Uint32(prefix[qcow2ClusterBitsOffset:])

	if version != 2 && version != 3 {
		return Info{}, false
	}

	if clusterBits < qcow2MinClusterBits || clusterBits > qcow2MaxClusterBits {
		return Info{}, false
	}

	return Info{
		Version:     version,
		ClusterSize: 1 << clusterBits,
		VirtualSize: binary.BigEndian.Uint64(prefix[qcow2SizeOffset:]),
	}, true
}

// VMDK sparse extent header, little-endian, sizes in sectors.
const (
	vmdkVersionOffset   = 4
	vmdkCapacityOffset  = 12
	vmdkGrainSizeOffset = 20
	vmdkMinHeaderSize   = 28
)

func parseVMDKSparse(prefix []byte) (Info, bool) {
	if len(prefix) < vmdkMinHeaderSize {
		return Info{}, false
	}

	version := binary.LittleEndian.Uint32(prefix[vmdkVersionOffset:])
	if version == 0 || version > 3 {
		return Info{}, false
	}

	capacity := binary.LittleEndian.Uint64(prefix[vmdkCapacityOffset:])
	grain := binary.LittleEndian.Uint64(prefix[vmdkGrainSizeOffset:])

	if grain == 0 || grain&(grain-1) != 0 || capacity > 1<<54 || grain > 1<<54 {
		return Info{}, false
	}

	return Info{
		Version:     version,
		VirtualSize: capacity * sectorSize,
		ClusterSize: grain * sectorSize,
	}, true
}

// parseVMDKDescriptor accepts a text descriptor; extents live in other files.
func parseVMDKDescriptor(prefix []byte) (Info, bool) {
	var info Info

	for line := range bytes.Lines(prefix) {
		line = bytes.TrimSpace(line)

		if version, ok := bytes.CutPrefix(line, []byte("version=")); ok && len(version) == 1 && version[0] >= '1' && version[0] <= '3' {
			info.Version = uint32(version[0] - '0')
		}
	}

	return info, true
}

// VDI header, little-endian.
const (
	vdiVersionOffset   = 0x44
	vdiDiskSizeOffset  = 0x170
	vdiBlockSizeOffset = 0x178
	vdiMinHeaderSize   = 0x17C
)

func parseVDI(prefix []byte) (Info, bool) {
	if len(prefix) < vdiMinHeaderSize {
		return Info{}, false
	}

	version := binary.LittleEndian.Uint32(prefix[vdiVersionOffset:])
	if version>>16 != 1 {
		return Info{}, false
	}

	return Info{
		Version:     version,
		VirtualSize: binary.LittleEndian.Uint64(prefix[vdiDiskSizeOffset:]),
		ClusterSize: uint64(binary.LittleEndian.Uint32(prefix[vdiBlockSizeOffset:])),
	}, true
}

// VHD footer, big-endian.
const (
	vhdVersionOffset     = 12
	vhdCurrentSizeOffset = 48
	vhdDiskTypeOffset    = 60
	vhdChecksumOffset    = 64

	vhdDiskTypeFixed        = 2
	vhdDiskTypeDynamic      = 3
	vhdDiskTypeDifferencing = 4
)

// parseVHDDynamic parses the footer copy at the start of dynamic and differencing disks.
func parseVHDDynamic(prefix []byte) (Info, bool) {
	if len(prefix) < 2*FooterSize || !bytes.HasPrefix(prefix[FooterSize:], vhdDynamicMagic) {
		return Info{}, false
	}

	info, ok := parseVHDFooter(prefix[:FooterSize])
	if !ok {
		return Info{}, false
	}

	return info, true
}

func parseVHDFooter(footer []byte) (Info, bool) {
	if len(footer) < FooterSize {
		return Info{}, false
	}

	var sum uint32

	for i, b := range footer[:FooterSize] {
		if i >= vhdChecksumOffset && i < vhdChecksumOffset+4 {
			continue
		}

		sum += uint32(b)
	}

	if ^sum != binary.BigEndian.Uint32(footer[vhdChecksumOffset:]) {
		return Info{}, false
	}

	switch binary.BigEndian.Uint32(footer[vhdDiskTypeOffset:]) {
	case vhdDiskTypeFixed, vhdDiskTypeDynamic, vhdDiskTypeDifferencing:
	default:
		return Info{}, false
	}

	return Info{
		Version:     binary.BigEndian.Uint32(footer[vhdVersionOffset:]),
		VirtualSize: binary.BigEndian.Uint64(footer[vhdCurrentSizeOffset:]),
	}, true
}
