// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package guestfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-guestinspect/block"
	"github.com/siderolabs/go-guestinspect/guestfs"
)

func TestLaunchLocking(t *testing.T) {
	t.Parallel()

	path := writeImage(t, "disk.raw", mbrExt4Image().Bytes())

	reader1 := launch(t, path)
	reader2 := launch(t, path)

	assert.Equal(t, guestfs.StateLaunched, reader1.State())
	assert.Equal(t, guestfs.StateLaunched, reader2.State())

	writer := guestfs.New(guestfs.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, writer.AttachDrive(path, guestfs.ReadWrite))

	assert.ErrorIs(t, writer.Launch(t.Context()), block.ErrLocked)

	require.NoError(t, reader1.Shutdown())
	require.NoError(t, reader2.Shutdown())

	require.NoError(t, writer.Launch(t.Context()))
	require.NoError(t, writer.Shutdown())
}
