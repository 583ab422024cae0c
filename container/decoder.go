// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
)

// ErrUnsupportedFormat is returned by a Decoder which can't handle the image.
var ErrUnsupportedFormat = errors.New("unsupported container format")

// Flat is a flat, byte-addressable view of the guest disk.
type Flat interface {
	io.ReaderAt

	Size() uint64
	Close() error
}

// Decoder produces a flat view of a container image.
type Decoder interface {
	Decode(ctx context.Context, r io.ReaderAt, size uint64, info Info) (Flat, error)
}

// Chain tries decoders in order, the first one to succeed wins.
type Chain []Decoder

// Decode implements Decoder.
func (chain Chain) Decode(ctx context.Context, r io.ReaderAt, size uint64, info Info) (Flat, error) {
	var errs error

	for _, decoder := range chain {
		flat, err := decoder.Decode(ctx, r, size, info)
		if err == nil {
			return flat, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		errs = multierr.Append(errs, err)
	}

	if errs == nil {
		return nil, fmt.Errorf("%w: %s (no decoders)", ErrUnsupportedFormat, info.Format)
	}

	return nil, errs
}

// DefaultDecoder decodes natively when possible and falls back to qemu-img.
func DefaultDecoder(tempDir string) Decoder {
	return Chain{
		&QCOW2Reader{},
		&QemuImg{TempDir: tempDir},
	}
}

// fileFlat is a Flat backed by a (temporary) file.
type fileFlat struct {
	f      *os.File
	size   uint64
	remove bool
}

func openFileFlat(path string, remove bool) (*fileFlat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}

	return &fileFlat{f: f, size: uint64(st.Size()), remove: remove}, nil
}

func (ff *fileFlat) ReadAt(p []byte, off int64) (int, error) {
	return ff.f.ReadAt(p, off)
}

// Name returns the path of the backing file.
func (ff *fileFlat) Name() string {
	return ff.f.Name()
}

func (ff *fileFlat) Size() uint64 {
	return ff.size
}

func (ff *fileFlat) Close() error {
	err := ff.f.Close()

	if ff.remove {
		err = multierr.Append(err, os.Remove(ff.f.Name()))
	}

	return err
}
