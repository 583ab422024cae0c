// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package blkid identifies the filesystem stored in a partition.
package blkid

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderolabs/go-guestinspect/blkid/internal/chain"
	"github.com/siderolabs/go-guestinspect/blkid/internal/probe"
	"github.com/siderolabs/go-guestinspect/internal/ioutil"
)

// FsType is a detected filesystem type.
type FsType int

// Supported filesystem types.
const (
	Unknown FsType = iota
	Ext2
	Ext3
	Ext4
	Ntfs
	Xfs
	Btrfs
	Fat32
)

var fsTypeNames = map[FsType]string{
	Unknown: "unknown",
	Ext2:    "ext2",
	Ext3:    "ext3",
	Ext4:    "ext4",
	Ntfs:    "ntfs",
	Xfs:     "xfs",
	Btrfs:   "btrfs",
	Fat32:   "fat32",
}

func (t FsType) String() string {
	if name, ok := fsTypeNames[t]; ok {
		return name
	}

	return "fstype(" + strconv.Itoa(int(t)) + ")"
}

// ParseFsType is the inverse of FsType.String.
func ParseFsType(s string) (FsType, error) {
	for t, name := range fsTypeNames {
		if name == s {
			return t, nil
		}
	}

	return Unknown, fmt.Errorf("unknown filesystem type %q", s)
}

// Filesystem describes the filesystem found in a partition.
type Filesystem struct { //nolint:govet
	// Partition is the 1-based partition index, 0 for an unpartitioned disk.
	Partition uint

	Type FsType

	Label  *string
	UUID   *uuid.UUID
	Serial *string

	// BlockSize is the filesystem allocation unit in bytes.
	BlockSize  uint32
	Blocks     uint64
	FreeBlocks uint64

	// Features lists on-disk feature flags, e.g. has_journal for extfs.
	Features []string
}

// Size returns the filesystem size in bytes as recorded in the superblock.
func (fs *Filesystem) Size() uint64 {
	return fs.Blocks * uint64(fs.BlockSize)
}

// ProbeOptions is the options for probing.
type ProbeOptions struct {
	// Logger to use for logging.
	Logger *zap.Logger

	// Partition index reported in the result.
	Partition uint

	// SectorSize of the underlying disk.
	SectorSize uint
}

// ProbeOption is an option for probing.
type ProbeOption func(*ProbeOptions)

// WithProbeLogger sets the logger for the probe.
func WithProbeLogger(logger *zap.Logger) ProbeOption {
	return func(o *ProbeOptions) {
		o.Logger = logger
	}
}

// WithPartition sets the partition index reported in the result.
func WithPartition(index uint) ProbeOption {
	return func(o *ProbeOptions) {
		o.Partition = index
	}
}

// WithSectorSize sets the logical sector size of the disk.
func WithSectorSize(size uint) ProbeOption {
	return func(o *ProbeOptions) {
		o.SectorSize = size
	}
}

func applyProbeOptions(opts ...ProbeOption) ProbeOptions {
	o := ProbeOptions{
		Logger:     zap.NewNop(),
		SectorSize: 512,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Detect identifies the filesystem in the first size bytes of r.
//
// Probers run in a fixed order (ext, NTFS, XFS, Btrfs, FAT) and the first
// one accepting its superblock wins. No match is reported as Unknown; only
// read failures are returned as errors.
func Detect(r io.ReaderAt, size uint64, opts ...ProbeOption) (*Filesystem, error) {
	options := applyProbeOptions(opts...)
	logger := options.Logger.With(zap.Uint("partition", options.Partition))

	view := ioutil.NewRange(r, 0, size, options.SectorSize)
	probers := chain.Default()

	// read enough data to cover the maximum magic size
	buf := make([]byte, min(uint64(probers.MaxMagicSize()), size))

	if err := ioutil.ReadFullAt(view, buf, 0); err != nil {
		return nil, fmt.Errorf("error reading magic buffer: %w", err)
	}

	for _, matched := range probers.MagicMatches(buf) {
		res, err := matched.Probe(view, matched.Magic)
		if err != nil {
			if isTruncated(err) {
				logger.Debug("superblock truncated", zap.String("prober", matched.Name()), zap.Error(err))

				continue
			}

			return nil, fmt.Errorf("error probing %s: %w", matched.Name(), err)
		}

		if res == nil {
			logger.Debug("superblock rejected", zap.String("prober", matched.Name()))

			continue
		}

		fs := newFilesystem(options.Partition, res)

		logger.Debug("filesystem detected", zap.Stringer("type", fs.Type), zap.Stringp("label", fs.Label))

		return fs, nil
	}

	return &Filesystem{Partition: options.Partition, Type: Unknown}, nil
}

func isTruncated(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ioutil.ErrOutOfBounds)
}

func newFilesystem(partition uint, res *probe.Result) *Filesystem {
	fsType, err := ParseFsType(res.Name)
	if err != nil {
		// fat12 and fat16 are recognized but not reported
		fsType = Unknown
	}

	return &Filesystem{
		Partition: partition,
		Type:      fsType,

		Label:  res.Label,
		UUID:   res.UUID,
		Serial: res.Serial,

		BlockSize:  res.BlockSize,
		Blocks:     res.Blocks,
		FreeBlocks: res.FreeBlocks,

		Features: slices.Clone(res.Features),
	}
}
