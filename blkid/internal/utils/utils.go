// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package utils provides utility functions.
package utils

import (
	"bytes"
	"hash/crc32"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"
)

var castagnoliTable = sync.OnceValue(func() *crc32.Table {
	return crc32.MakeTable(crc32.Castagnoli)
})

// CRC32c returns values compatible with Linux crc32c function.
func CRC32c(buf []byte) uint32 {
	return ^crc32.Update(0, castagnoliTable(), buf)
}

// Castagnoli returns the standard (finalized) CRC-32C checksum.
func Castagnoli(buf []byte) uint32 {
	return crc32.Checksum(buf, castagnoliTable())
}

// IsPowerOf2 returns true if num is a power of 2.
func IsPowerOf2[T uint8 | uint16 | uint32 | uint64](num T) bool {
	return (num != 0 && ((num & (num - 1)) == 0))
}

// Label decodes a NUL-terminated label, returning nil for an empty one.
func Label(lbl []byte) *string {
	if idx := bytes.IndexByte(lbl, 0); idx != -1 {
		lbl = lbl[:idx]
	}

	if len(lbl) == 0 {
		return nil
	}

	return pointer.To(string(lbl))
}

// PaddedLabel decodes a space-padded label, returning nil for a blank one.
func PaddedLabel(lbl []byte) *string {
	s := strings.TrimRight(string(lbl), " \x00")
	if s == "" {
		return nil
	}

	return pointer.To(s)
}

// UUID decodes a big-endian UUID, returning nil for the all-zero one.
func UUID(b []byte) (*uuid.UUID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return nil, err
	}

	if u == uuid.Nil {
		return nil, nil //nolint:nilnil
	}

	return &u, nil
}
