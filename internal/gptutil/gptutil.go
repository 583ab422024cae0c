// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gptutil implements helper functions for GPT tables.
package gptutil

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// DiskSizer is an interface for block devices that can provide their sector size and total size.
type DiskSizer interface {
	GetSectorSize() uint
	GetSize() uint64
}

// LastLBA returns the last logical block address of the device.
func LastLBA(r DiskSizer) (uint64, bool) {
	sectorSize := r.GetSectorSize()
	size := r.GetSize()

	if sectorSize == 0 || uint64(sectorSize) > size {
		return 0, false
	}

	return (size / uint64(sectorSize)) - 1, true
}

// GUIDToUUID converts a GPT GUID to a UUID.
func GUIDToUUID(g []byte) []byte {
	return append(
		[]byte{
			g[3], g[2], g[1], g[0],
			g[5], g[4],
			g[7], g[6],
			g[8], g[9],
		},
		g[10:16]...,
	)
}

// UUIDToGUID converts a UUID to a GPT GUID.
func UUIDToGUID(u []byte) []byte {
	return GUIDToUUID(u)
}

// ParseGUID decodes a mixed-endian on-disk GUID.
func ParseGUID(g []byte) (uuid.UUID, error) {
	return uuid.FromBytes(GUIDToUUID(g))
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeName decodes a NUL-padded UTF-16LE partition name.
func DecodeName(raw []byte) (string, error) {
	// cut at the first UTF-16 NUL code unit
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			raw = raw[:i]

			break
		}
	}

	name, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}

	return string(bytes.TrimRight(name, "\x00")), nil
}

// EncodeName encodes a partition name as UTF-16LE, failing if it does not fit into size bytes.
func EncodeName(name string, size int) ([]byte, error) {
	buf, err := utf16le.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("failed to encode partition name: %w", err)
	}

	if len(buf) > size {
		return nil, fmt.Errorf("partition name %q too long: %d bytes", name, len(buf))
	}

	return buf, nil
}
