// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package probe defines common probe interfaces.
package probe

import (
	"io"

	"github.com/google/uuid"

	"github.com/siderolabs/go-guestinspect/blkid/internal/magic"
)

// Reader is a view of a single partition.
type Reader interface {
	io.ReaderAt

	GetSectorSize() uint
	GetSize() uint64
}

// Prober is an interface for probing filesystems.
type Prober interface {
	// Name returns the name of the filesystem family.
	Name() string
	// Magic returns the magic values for the filesystem.
	Magic() []*magic.Magic
	// Probe runs the further inspection and returns the result if successful.
	//
	// Probe returns (nil, nil) if the superblock fails validation.
	Probe(Reader, magic.Magic) (*Result, error)
}

// MagicMatch is a prober whose magic matched.
type MagicMatch struct {
	Prober

	Magic magic.Magic
}

// Result is a probe result.
type Result struct { //nolint:govet
	// Name is the exact filesystem variant (e.g. ext3 for the extfs prober).
	Name string

	UUID   *uuid.UUID
	Label  *string
	Serial *string

	BlockSize  uint32
	Blocks     uint64
	FreeBlocks uint64

	Features []string
}
