// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-guestinspect/blkid/internal/utils"
)

func TestCRC32c(t *testing.T) {
	buf := []byte("hello, world")
	assert.Equal(t, uint32(0x96665be0), utils.CRC32c(buf))
	assert.Equal(t, ^uint32(0x96665be0), utils.Castagnoli(buf))
}

func TestIsPowerOf2(t *testing.T) {
	assert.True(t, utils.IsPowerOf2(uint32(2)))
	assert.True(t, utils.IsPowerOf2(uint32(1<<16)))
	assert.False(t, utils.IsPowerOf2(uint32(0)))
	assert.False(t, utils.IsPowerOf2(uint32(3)))
}

func TestLabel(t *testing.T) {
	assert.Nil(t, utils.Label(make([]byte, 16)))
	assert.Equal(t, "rootfs", *utils.Label([]byte("rootfs\x00\x00\x00")))
	assert.Equal(t, "sixteen-chars-ok", *utils.Label([]byte("sixteen-chars-ok")))

	assert.Nil(t, utils.PaddedLabel([]byte("           ")))
	assert.Equal(t, "EFI", *utils.PaddedLabel([]byte("EFI        ")))
}

func TestUUID(t *testing.T) {
	u, err := utils.UUID(make([]byte, 16))
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = utils.UUID([]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0})
	require.NoError(t, err)
	assert.Equal(t, "12345678-9abc-def0-1234-56789abcdef0", u.String())

	_, err = utils.UUID([]byte{1, 2, 3})
	assert.Error(t, err)
}
