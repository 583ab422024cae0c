// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package block_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-guestinspect/block"
)

func TestDeviceLocking(t *testing.T) {
	t.Parallel()

	path := createImage(t, 2*MiB)

	dev1, err := block.Open(path, true)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, dev1.Close())
	})

	dev2, err := block.Open(path, true)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, dev2.Close())
	})

	// shared locks coexist
	require.NoError(t, dev1.TryLock(false))
	require.NoError(t, dev2.TryLock(false))

	require.NoError(t, dev2.Unlock())

	// exclusive lock conflicts with the shared one
	assert.ErrorIs(t, dev2.TryLock(true), block.ErrLocked)

	require.NoError(t, dev1.Unlock())

	require.NoError(t, dev2.TryLock(true))
	assert.ErrorIs(t, dev1.TryLock(false), block.ErrLocked)

	require.NoError(t, dev2.Unlock())
}
