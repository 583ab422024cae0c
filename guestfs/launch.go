// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package guestfs

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siderolabs/go-guestinspect/blkid"
	"github.com/siderolabs/go-guestinspect/container"
	"github.com/siderolabs/go-guestinspect/internal/ioutil"
	"github.com/siderolabs/go-guestinspect/inspect"
	"github.com/siderolabs/go-guestinspect/partitioning"
)

// Launch detects the container format, parses the partition table and
// detects the filesystem of every partition.
//
// Resources acquired by a failed launch are released before it returns,
// the handle stays in the DriveAttached state.
func (h *Handle) Launch(ctx context.Context) (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateDriveAttached {
		return stateError("launch", h.state)
	}

	logger := h.options.Logger.With(zap.String("path", h.path))

	defer func() {
		if err != nil {
			err = multierr.Append(err, h.release())
		}
	}()

	if h.drive, err = h.options.Opener(h.path, h.mode == ReadOnly); err != nil {
		return fmt.Errorf("failed to open drive: %w", err)
	}

	if err = h.drive.TryLock(h.mode == ReadWrite); err != nil {
		return fmt.Errorf("failed to lock drive: %w", err)
	}

	size, err := h.drive.GetSize()
	if err != nil {
		return fmt.Errorf("failed to get drive size: %w", err)
	}

	disk, err := h.flatten(ctx, h.drive, size, logger)
	if err != nil {
		return err
	}

	h.scheme, h.partitions, err = partitioning.Parse(disk,
		partitioning.WithLogger(logger),
		partitioning.WithMaxLogicalPartitions(h.options.MaxLogicalPartitions),
	)
	if err != nil {
		return err
	}

	if h.filesystems, err = h.detectFilesystems(ctx, disk, logger); err != nil {
		return err
	}

	h.mounted = map[uint]inspect.FileAccessor{}
	h.state = StateLaunched

	logger.Info("launched",
		zap.Stringer("format", h.info.Format),
		zap.Stringer("scheme", h.scheme),
		zap.Int("partitions", len(h.partitions)),
	)

	return nil
}

// flatten returns the flat disk view, decompressing and decoding containers as needed.
func (h *Handle) flatten(ctx context.Context, r io.ReaderAt, size uint64, logger *zap.Logger) (*ioutil.Range, error) {
	sectorSize := h.drive.GetSectorSize()

	prefix, err := readPrefix(r, size)
	if err != nil {
		return nil, err
	}

	if container.IsZstd(prefix) {
		logger.Debug("decompressing zstd image")

		if h.compressed, err = container.DecompressZstd(ctx, r, size, h.options.TempDir, h.options.MaxDecompressedSize); err != nil {
			return nil, err
		}

		r, size, sectorSize = h.compressed, h.compressed.Size(), partitioning.DefaultSectorSize

		if prefix, err = readPrefix(r, size); err != nil {
			return nil, err
		}
	}

	var footer []byte

	if size >= 2*container.FooterSize {
		footer = make([]byte, container.FooterSize)

		if err = ioutil.ReadFullAt(r, footer, int64(size-container.FooterSize)); err != nil {
			return nil, fmt.Errorf("failed to read image footer: %w", err)
		}
	}

	h.info = container.DetectWithFooter(prefix, footer, size)

	switch {
	case h.info.Undecodable():
		return nil, fmt.Errorf("%w: suspected %s", ErrUndecodable, h.info.Suspected)
	case h.info.Format.NeedsDecoding():
		logger.Debug("decoding container", zap.Stringer("format", h.info.Format))

		if h.decoded, err = h.options.Decoder.Decode(ctx, r, size, h.info); err != nil {
			return nil, fmt.Errorf("failed to decode %s image: %w", h.info.Format, err)
		}

		r, size, sectorSize = h.decoded, h.decoded.Size(), partitioning.DefaultSectorSize
	case h.info.Format == container.Unknown:
		logger.Debug("unknown container format, reading as raw")
	}

	return ioutil.NewRange(r, 0, size, sectorSize), nil
}

func readPrefix(r io.ReaderAt, size uint64) ([]byte, error) {
	prefix := make([]byte, min(size, container.PrefixSize))

	if err := ioutil.ReadFullAt(r, prefix, 0); err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	return prefix, nil
}

// detectFilesystems probes partitions concurrently, results keep the partition order.
//
// A disk without a partition table is probed as a single filesystem with index 0.
func (h *Handle) detectFilesystems(ctx context.Context, disk *ioutil.Range, logger *zap.Logger) ([]*blkid.Filesystem, error) {
	targets := make([]partitioning.Entry, 0, len(h.partitions))

	for _, entry := range h.partitions {
		if !entry.Extended {
			targets = append(targets, entry)
		}
	}

	if h.scheme == partitioning.SchemeNone {
		targets = append(targets, partitioning.Entry{Index: 0, Start: 0, End: disk.GetSize()})
	}

	filesystems := make([]*blkid.Filesystem, len(targets))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(h.options.Concurrency)

	for i, entry := range targets {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			fs, err := blkid.Detect(
				ioutil.NewRange(disk, entry.Start, entry.Size(), disk.GetSectorSize()),
				entry.Size(),
				blkid.WithProbeLogger(logger),
				blkid.WithPartition(entry.Index),
				blkid.WithSectorSize(disk.GetSectorSize()),
			)
			if err != nil {
				return fmt.Errorf("failed to detect filesystem on partition %d: %w", entry.Index, err)
			}

			filesystems[i] = fs

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return filesystems, nil
}
