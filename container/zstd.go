// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
)

const copyChunk = 4 << 20

// ErrTooLarge is returned when the decompressed image exceeds the configured limit.
var ErrTooLarge = errors.New("decompressed image exceeds size limit")

// DecompressZstd streams a zstd-compressed image into a temporary file in dir.
//
// A non-zero limit caps the decompressed size.
// The temporary file is removed when the returned Flat is closed.
func DecompressZstd(ctx context.Context, r io.ReaderAt, size uint64, dir string, limit uint64) (Flat, error) {
	zr, err := zstd.NewReader(io.NewSectionReader(r, 0, int64(size)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize zstd reader: %w", err)
	}

	defer zr.Close()

	tmp, err := os.CreateTemp(dir, "guestinspect-*.raw")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	cleanup := func(err error) error {
		return multierr.Combine(err, tmp.Close(), os.Remove(tmp.Name()))
	}

	if err = copyLimited(ctx, tmp, zr, limit); err != nil {
		return nil, cleanup(err)
	}

	if err = tmp.Close(); err != nil {
		return nil, multierr.Append(err, os.Remove(tmp.Name()))
	}

	flat, err := openFileFlat(tmp.Name(), true)
	if err != nil {
		return nil, multierr.Append(err, os.Remove(tmp.Name()))
	}

	return flat, nil
}

// copyLimited copies r to w in chunks, writing no more than limit bytes when limit is non-zero.
func copyLimited(ctx context.Context, w io.Writer, r io.Reader, limit uint64) error {
	src := r
	if limit > 0 {
		src = io.LimitReader(r, int64(min(limit, math.MaxInt64)))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := io.CopyN(w, src, copyChunk)
		if err == io.EOF {
			break
		}

		if err != nil {
			return fmt.Errorf("failed to decompress image: %w", err)
		}
	}

	if limit == 0 {
		return nil
	}

	var extra [1]byte

	n, err := io.ReadFull(r, extra[:])

	switch {
	case n > 0:
		return fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	case err == io.EOF:
		return nil
	default:
		return fmt.Errorf("failed to decompress image: %w", err)
	}
}
