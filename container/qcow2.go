// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package container

import (
	"context"
	"fmt"
	"io"

	"github.com/lima-vm/go-qcow2reader"
	"github.com/lima-vm/go-qcow2reader/image"
)

// QCOW2Reader decodes images in-process with go-qcow2reader.
//
// Only formats the library can read are accepted (qcow2 without a backing file).
type QCOW2Reader struct{}

// Decode implements Decoder.
func (d *QCOW2Reader) Decode(_ context.Context, r io.ReaderAt, _ uint64, info Info) (Flat, error) {
	if info.Format != Qcow2 {
		return nil, fmt.Errorf("%w: %s is not handled by qcow2reader", ErrUnsupportedFormat, info.Format)
	}

	img, err := qcow2reader.Open(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	if err = img.Readable(); err != nil {
		img.Close() //nolint:errcheck

		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	return &imageFlat{img: img}, nil
}

type imageFlat struct {
	img image.Image
}

func (f *imageFlat) ReadAt(p []byte, off int64) (int, error) {
	return f.img.ReadAt(p, off)
}

func (f *imageFlat) Size() uint64 {
	return uint64(f.img.Size())
}

func (f *imageFlat) Close() error {
	return f.img.Close()
}
