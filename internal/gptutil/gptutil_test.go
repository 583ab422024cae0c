// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gptutil_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-guestinspect/internal/gptutil"
)

func TestGUIDToUUID(t *testing.T) {
	uuid := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}

	guid := []byte{0x67, 0x45, 0x23, 0x01, 0xab, 0x89, 0xef, 0xcd, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}

	assert.Equal(t, uuid, gptutil.GUIDToUUID(guid))
	assert.Equal(t, guid, gptutil.GUIDToUUID(uuid))
	assert.Equal(t, uuid, gptutil.GUIDToUUID(gptutil.UUIDToGUID(uuid)))
}

func TestParseGUID(t *testing.T) {
	esp := uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")

	parsed, err := gptutil.ParseGUID(gptutil.UUIDToGUID(esp[:]))
	require.NoError(t, err)
	assert.Equal(t, esp, parsed)
}

func TestNames(t *testing.T) {
	for _, name := range []string{"", "EFI", "Linux filesystem", "données"} {
		t.Run(name, func(t *testing.T) {
			raw := make([]byte, 72)

			encoded, err := gptutil.EncodeName(name, len(raw))
			require.NoError(t, err)

			copy(raw, encoded)

			decoded, err := gptutil.DecodeName(raw)
			require.NoError(t, err)
			assert.Equal(t, name, decoded)
		})
	}

	_, err := gptutil.EncodeName("this partition name is definitely too long for a GPT entry", 72)
	require.Error(t, err)
}

func TestLastLBA(t *testing.T) {
	lba, ok := gptutil.LastLBA(sizer{sectorSize: 512, size: 1024 * 1024})
	require.True(t, ok)
	assert.EqualValues(t, 2047, lba)

	_, ok = gptutil.LastLBA(sizer{sectorSize: 4096, size: 512})
	assert.False(t, ok)
}

type sizer struct {
	sectorSize uint
	size       uint64
}

func (s sizer) GetSectorSize() uint { return s.sectorSize }
func (s sizer) GetSize() uint64     { return s.size }
