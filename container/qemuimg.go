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

	"github.com/siderolabs/go-cmd/pkg/cmd"
	"go.uber.org/multierr"
)

var qemuImgFormats = map[Format]string{
	Qcow2: "qcow2",
	Vmdk:  "vmdk",
	Vhd:   "vpc",
	Vhdx:  "vhdx",
	Vdi:   "vdi",
}

// QemuImg converts images to raw with the qemu-img binary.
//
// The source must be a named file, the converted image is stored in a
// temporary file which is removed on Close.
type QemuImg struct {
	// Binary defaults to qemu-img from $PATH.
	Binary string
	// TempDir defaults to os.TempDir().
	TempDir string
}

type namer interface {
	Name() string
}

// Decode implements Decoder.
func (d *QemuImg) Decode(ctx context.Context, r io.ReaderAt, _ uint64, info Info) (Flat, error) {
	format, ok := qemuImgFormats[info.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not handled by qemu-img", ErrUnsupportedFormat, info.Format)
	}

	src, ok := r.(namer)
	if !ok {
		return nil, fmt.Errorf("%w: qemu-img needs a file path", ErrUnsupportedFormat)
	}

	binary := d.Binary
	if binary == "" {
		binary = "qemu-img"
	}

	tmp, err := os.CreateTemp(d.TempDir, "guestinspect-*.raw")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	dst := tmp.Name()

	if err = tmp.Close(); err != nil {
		return nil, multierr.Append(err, os.Remove(dst))
	}

	if _, err = cmd.RunContext(ctx, binary, "convert", "-q", "-f", format, "-O", "raw", src.Name(), dst); err != nil {
		var exitError *cmd.ExitError

		if errors.As(err, &exitError) {
			err = fmt.Errorf("%s exited with %d: %s", binary, exitError.ExitCode, exitError.Output)
		}

		return nil, multierr.Append(fmt.Errorf("failed to convert %s image: %w", info.Format, err), os.Remove(dst))
	}

	flat, err := openFileFlat(dst, true)
	if err != nil {
		return nil, multierr.Append(err, os.Remove(dst))
	}

	return flat, nil
}
