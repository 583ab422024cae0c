// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package container identifies the outer disk image format from a bounded prefix.
package container

import (
	"bytes"
	"strconv"
)

// PrefixSize is the number of leading bytes Detect needs to see.
const PrefixSize = 1024

// FooterSize is the size of the trailing VHD footer.
const FooterSize = 512

const sectorSize = 512

// Format is a disk image container format.
type Format int

// Container formats.
const (
	Unknown Format = iota
	Raw
	Qcow2
	Vmdk
	Vhd
	Vhdx
	Vdi
)

var formatNames = []string{
	Unknown: "unknown",
	Raw:     "raw",
	Qcow2:   "qcow2",
	Vmdk:    "vmdk",
	Vhd:     "vhd",
	Vhdx:    "vhdx",
	Vdi:     "vdi",
}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}

	return "format(" + strconv.Itoa(int(f)) + ")"
}

// ParseFormat returns the format with the given name, or Unknown.
func ParseFormat(s string) Format {
	for i, name := range formatNames {
		if name == s {
			return Format(i)
		}
	}

	return Unknown
}

// NeedsDecoding returns true if the format isn't a flat byte view of the disk.
func (f Format) NeedsDecoding() bool {
	return f != Raw && f != Unknown
}

// Info is the result of container detection.
type Info struct {
	Format Format

	// Suspected is set when a signature matched but the header is truncated or invalid.
	//
	// Format is Unknown in that case.
	Suspected Format

	// VirtualSize is the guest-visible disk size in bytes, if the header records it.
	VirtualSize uint64
	// ClusterSize is the allocation unit of sparse formats in bytes.
	ClusterSize uint64
	// Version is the header version, as recorded.
	Version uint32
}

// Undecodable returns true if a container signature matched but no flat view can be derived.
func (info Info) Undecodable() bool {
	return info.Format == Unknown && info.Suspected != Unknown
}

// Detect classifies the container from the first bytes of the image.
//
// Detect only looks at prefix (at most PrefixSize bytes are used) and never
// fails: unrecognized data is Raw if it holds at least one sector, Unknown
// otherwise.
func Detect(prefix []byte, totalLength uint64) Info {
	return DetectWithFooter(prefix, nil, totalLength)
}

// DetectWithFooter is Detect which also consults the trailing VHD footer.
//
// The footer is only looked at when the prefix is inconclusive, as fixed
// VHD images carry no header at all.
func DetectWithFooter(prefix, footer []byte, totalLength uint64) Info {
	if len(prefix) > PrefixSize {
		prefix = prefix[:PrefixSize]
	}

	for _, detector := range detectors {
		if !bytes.HasPrefix(prefix[min(len(prefix), detector.offset):], detector.magic) {
			continue
		}

		info, ok := detector.parse(prefix)
		if !ok {
			return Info{Format: Unknown, Suspected: detector.format}
		}

		info.Format = detector.format

		return info
	}

	if footer != nil && totalLength >= 2*FooterSize && bytes.HasPrefix(footer, vhdMagic) {
		if info, ok := parseVHDFooter(footer); ok {
			info.Format = Vhd

			return info
		}
	}

	if uint64(len(prefix)) >= sectorSize && totalLength >= sectorSize {
		return Info{Format: Raw, VirtualSize: totalLength}
	}

	return Info{Format: Unknown}
}

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// IsZstd returns true if the prefix starts with a zstd frame.
func IsZstd(prefix []byte) bool {
	return bytes.HasPrefix(prefix, zstdMagic)
}
