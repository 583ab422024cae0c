// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-guestinspect/block"
)

const MiB = 1024 * 1024

func createImage(t *testing.T, size int64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "image.raw")

	f, err := os.Create(path)
	require.NoError(t, err)

	require.NoError(t, f.Truncate(size))

	_, err = f.WriteAt([]byte("hello"), MiB)
	require.NoError(t, err)

	require.NoError(t, f.Close())

	return path
}

func TestDevice(t *testing.T) {
	t.Parallel()

	path := createImage(t, 2*MiB)

	dev, err := block.Open(path, true)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, dev.Close())
	})

	assert.False(t, dev.IsBlockDevice())
	assert.Equal(t, path, dev.Name())
	assert.EqualValues(t, block.DefaultBlockSize, dev.GetSectorSize())

	size, err := dev.GetSize()
	require.NoError(t, err)
	assert.EqualValues(t, 2*MiB, size)

	buf := make([]byte, 5)
	_, err = dev.ReadAt(buf, MiB)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	require.NoError(t, dev.TryLock(false))
	require.NoError(t, dev.Unlock())
}

func TestDeviceOpenMissing(t *testing.T) {
	t.Parallel()

	_, err := block.DefaultOpener(filepath.Join(t.TempDir(), "missing.raw"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewFromFileNotOwned(t *testing.T) {
	t.Parallel()

	path := createImage(t, MiB+5)

	f, err := os.Open(path)
	require.NoError(t, err)

	dev, err := block.NewFromFile(f)
	require.NoError(t, err)

	require.NoError(t, dev.Close())

	// file is still usable
	_, err = f.Stat()
	require.NoError(t, err)

	require.NoError(t, f.Close())
}
