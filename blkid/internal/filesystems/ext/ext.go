// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ext probes extfs filesystems.
package ext

import (
	"github.com/siderolabs/go-guestinspect/blkid/internal/magic"
	"github.com/siderolabs/go-guestinspect/blkid/internal/probe"
	"github.com/siderolabs/go-guestinspect/blkid/internal/utils"
	"github.com/siderolabs/go-guestinspect/internal/ioutil"
)

const sbOffset = 0x400

// Various extfs constants.
//
//nolint:stylecheck,revive
const (
	EXT3_FEATURE_COMPAT_HAS_JOURNAL      = 0x0004
	EXT3_FEATURE_INCOMPAT_JOURNAL_DEV    = 0x0008
	EXT4_FEATURE_INCOMPAT_EXTENTS        = 0x0040
	EXT4_FEATURE_INCOMPAT_64BIT          = 0x0080
	EXT4_FEATURE_INCOMPAT_FLEX_BG        = 0x0200
	EXT4_FEATURE_RO_COMPAT_HUGE_FILE     = 0x0008
	EXT4_FEATURE_RO_COMPAT_GDT_CSUM      = 0x0010
	EXT4_FEATURE_RO_COMPAT_DIR_NLINK     = 0x0020
	EXT4_FEATURE_RO_COMPAT_EXTRA_ISIZE   = 0x0040
	EXT4_FEATURE_RO_COMPAT_METADATA_CSUM = 0x0400

	ext4Incompat = EXT4_FEATURE_INCOMPAT_EXTENTS | EXT4_FEATURE_INCOMPAT_64BIT | EXT4_FEATURE_INCOMPAT_FLEX_BG
	ext4ROCompat = EXT4_FEATURE_RO_COMPAT_HUGE_FILE | EXT4_FEATURE_RO_COMPAT_GDT_CSUM |
		EXT4_FEATURE_RO_COMPAT_DIR_NLINK | EXT4_FEATURE_RO_COMPAT_EXTRA_ISIZE | EXT4_FEATURE_RO_COMPAT_METADATA_CSUM
)

type feature struct {
	name string
	mask uint32
}

var (
	compatFeatures = []feature{
		{"has_journal", EXT3_FEATURE_COMPAT_HAS_JOURNAL},
	}

	incompatFeatures = []feature{
		{"extents", EXT4_FEATURE_INCOMPAT_EXTENTS},
		{"64bit", EXT4_FEATURE_INCOMPAT_64BIT},
		{"flex_bg", EXT4_FEATURE_INCOMPAT_FLEX_BG},
	}

	roCompatFeatures = []feature{
		{"huge_file", EXT4_FEATURE_RO_COMPAT_HUGE_FILE},
		{"uninit_bg", EXT4_FEATURE_RO_COMPAT_GDT_CSUM},
		{"dir_nlink", EXT4_FEATURE_RO_COMPAT_DIR_NLINK},
		{"extra_isize", EXT4_FEATURE_RO_COMPAT_EXTRA_ISIZE},
		{"metadata_csum", EXT4_FEATURE_RO_COMPAT_METADATA_CSUM},
	}
)

var extfsMagic = magic.Magic{
	Offset: sbOffset + 0x38,
	Value:  []byte("\123\357"),
}

// Probe for the filesystem.
type Probe struct{}

// Magic returns the magic value for the filesystem.
func (p *Probe) Magic() []*magic.Magic {
	return []*magic.Magic{&extfsMagic}
}

// Name returns the name of the filesystem.
func (p *Probe) Name() string {
	return "extfs"
}

// Probe runs the further inspection and returns the result if successful.
func (p *Probe) Probe(r probe.Reader, _ magic.Magic) (*probe.Result, error) {
	buf := make([]byte, SUPERBLOCK_SIZE)

	if err := ioutil.ReadFullAt(r, buf, sbOffset); err != nil {
		return nil, err
	}

	sb := SuperBlock(buf)

	// external journal device, not a filesystem
	if sb.FeatureIncompat()&EXT3_FEATURE_INCOMPAT_JOURNAL_DEV != 0 {
		return nil, nil //nolint:nilnil
	}

	if sb.FeatureROCompat()&EXT4_FEATURE_RO_COMPAT_METADATA_CSUM > 0 {
		csum := utils.CRC32c(buf[:1020])

		if csum != sb.Checksum() {
			return nil, nil //nolint:nilnil
		}
	}

	if sb.BlockSize() == 0 {
		return nil, nil //nolint:nilnil
	}

	uuid, err := utils.UUID(sb.UUID())
	if err != nil {
		return nil, err
	}

	return &probe.Result{
		Name:  variant(sb),
		UUID:  uuid,
		Label: utils.Label(sb.VolumeName()),

		BlockSize:  sb.BlockSize(),
		Blocks:     sb.BlocksCount(),
		FreeBlocks: sb.FreeBlocksCount(),

		Features: features(sb),
	}, nil
}

func variant(sb SuperBlock) string {
	switch {
	case sb.FeatureIncompat()&ext4Incompat != 0, sb.FeatureROCompat()&ext4ROCompat != 0:
		return "ext4"
	case sb.FeatureCompat()&EXT3_FEATURE_COMPAT_HAS_JOURNAL != 0:
		return "ext3"
	default:
		return "ext2"
	}
}

func features(sb SuperBlock) []string {
	var result []string

	for _, set := range []struct {
		flags    uint32
		features []feature
	}{
		{sb.FeatureCompat(), compatFeatures},
		{sb.FeatureIncompat(), incompatFeatures},
		{sb.FeatureROCompat(), roCompatFeatures},
	} {
		for _, f := range set.features {
			if set.flags&f.mask != 0 {
				result = append(result, f.name)
			}
		}
	}

	return result
}
