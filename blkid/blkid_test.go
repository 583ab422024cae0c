// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package blkid_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-guestinspect/blkid"
	"github.com/siderolabs/go-guestinspect/internal/testimage"
)

var testUUID = uuid.MustParse("6f0e4c1a-2b3d-4e5f-8a9b-0c1d2e3f4a5b")

func TestDetect(t *testing.T) {
	t.Parallel()

	for _, test := range []struct { //nolint:govet
		name string

		size  uint64
		setup func(*testimage.Image)

		expectedType     blkid.FsType
		expectedLabel    string
		expectUUID       bool
		expectedSerial   string
		expectedBS       uint32
		expectedBlocks   uint64
		expectedFree     uint64
		expectedFeatures []string
	}{
		{
			name: "ext4",

			setup: func(img *testimage.Image) {
				testimage.WriteExt(img, 0, testimage.Ext4("rootfs", testUUID, 16384))
			},

			expectedType:     blkid.Ext4,
			expectedLabel:    "rootfs",
			expectUUID:       true,
			expectedBS:       4096,
			expectedBlocks:   16384,
			expectedFree:     8192,
			expectedFeatures: []string{"has_journal", "extents", "64bit", "flex_bg", "huge_file", "metadata_csum"},
		},
		{
			name: "ext4 64-bit block count",

			setup: func(img *testimage.Image) {
				testimage.WriteExt(img, 0, testimage.Ext4("big", testUUID, 1<<33))
			},

			expectedType:     blkid.Ext4,
			expectedLabel:    "big",
			expectUUID:       true,
			expectedBS:       4096,
			expectedBlocks:   1 << 33,
			expectedFree:     1 << 32,
			expectedFeatures: []string{"has_journal", "extents", "64bit", "flex_bg", "huge_file", "metadata_csum"},
		},
		{
			name: "ext4 checksum mismatch",

			setup: func(img *testimage.Image) {
				testimage.WriteExt(img, 0, testimage.Ext4("rootfs", testUUID, 16384))

				img.Bytes()[0x400+0x78] = 'R'
			},

			expectedType: blkid.Unknown,
		},
		{
			name: "ext3",

			setup: func(img *testimage.Image) {
				testimage.WriteExt(img, 0, testimage.Ext3("boot", testUUID, 262144))
			},

			expectedType:     blkid.Ext3,
			expectedLabel:    "boot",
			expectUUID:       true,
			expectedBS:       1024,
			expectedBlocks:   262144,
			expectedFree:     131072,
			expectedFeatures: []string{"has_journal"},
		},
		{
			name: "ext2 without label and UUID",

			setup: func(img *testimage.Image) {
				testimage.WriteExt(img, 0, testimage.Ext2("", uuid.Nil, 1024))
			},

			expectedType:   blkid.Ext2,
			expectedBS:     1024,
			expectedBlocks: 1024,
			expectedFree:   512,
		},
		{
			name: "ntfs",

			setup: func(img *testimage.Image) {
				testimage.WriteNTFS(img, 0, testimage.NTFSOptions{
					Serial:            0x1234ABCD5678EF90,
					BytesPerSector:    512,
					SectorsPerCluster: 8,
					TotalSectors:      204800,
				})
			},

			expectedType:   blkid.Ntfs,
			expectedSerial: "1234ABCD5678EF90",
			expectedBS:     4096,
			expectedBlocks: 25600,
		},
		{
			name: "xfs",

			setup: func(img *testimage.Image) {
				testimage.WriteXFS(img, 0, testimage.XFSOptions{
					Label:      "somelabel",
					UUID:       testUUID,
					Blocks:     16384,
					FreeBlocks: 1000,
				})
			},

			expectedType:     blkid.Xfs,
			expectedLabel:    "somelabel",
			expectUUID:       true,
			expectedBS:       4096,
			expectedBlocks:   16384,
			expectedFree:     1000,
			expectedFeatures: []string{"v5"},
		},
		{
			name: "btrfs",

			setup: func(img *testimage.Image) {
				testimage.WriteBtrfs(img, 0, testimage.BtrfsOptions{
					Label:      "data",
					FSID:       testUUID,
					TotalBytes: 64 * testimage.MiB,
					BytesUsed:  16 * testimage.MiB,
				})
			},

			expectedType:   blkid.Btrfs,
			expectedLabel:  "data",
			expectUUID:     true,
			expectedBS:     4096,
			expectedBlocks: 16384,
			expectedFree:   12288,
		},
		{
			name: "btrfs checksum mismatch",

			setup: func(img *testimage.Image) {
				testimage.WriteBtrfs(img, 0, testimage.BtrfsOptions{FSID: testUUID, TotalBytes: testimage.GiB})

				img.Bytes()[0x10000+0x12B] = 'x'
			},

			expectedType: blkid.Unknown,
		},
		{
			name: "btrfs truncated",

			size: 0x10048,
			setup: func(img *testimage.Image) {
				testimage.WriteBtrfs(img, 0, testimage.BtrfsOptions{FSID: testUUID, TotalBytes: testimage.GiB})
			},

			expectedType: blkid.Unknown,
		},
		{
			name: "fat32",

			setup: func(img *testimage.Image) {
				testimage.WriteFAT32(img, 0, testimage.FATOptions{
					Label:             "EFI",
					Serial:            0x1234ABCD,
					Sectors:           131072,
					SectorsPerCluster: 1,
				})
			},

			expectedType:     blkid.Fat32,
			expectedLabel:    "EFI",
			expectedSerial:   "1234-ABCD",
			expectedBS:       512,
			expectedBlocks:   128992,
			expectedFeatures: []string{"fat32"},
		},
		{
			name: "fat16",

			setup: func(img *testimage.Image) {
				testimage.WriteFAT16(img, 0, testimage.FATOptions{
					Serial:            0xCAFEF00D,
					Sectors:           32768,
					SectorsPerCluster: 4,
				})
			},

			expectedType:     blkid.Unknown,
			expectedSerial:   "CAFE-F00D",
			expectedBS:       2048,
			expectedBlocks:   8167,
			expectedFeatures: []string{"fat16"},
		},
		{
			name: "fat32 with oversized FATs",

			setup: func(img *testimage.Image) {
				testimage.WriteFAT32(img, 0, testimage.FATOptions{
					Sectors:           131072,
					SectorsPerCluster: 1,
				})

				// two FATs of 0x80000000 sectors wrap to zero in 32 bits
				binary.LittleEndian.PutUint32(img.Bytes()[0x24:], 0x80000000)
			},

			expectedType: blkid.Unknown,
		},
		{
			name: "zeroed",

			setup: func(*testimage.Image) {},

			expectedType: blkid.Unknown,
		},
		{
			name: "empty",

			size:  1,
			setup: func(*testimage.Image) {},

			expectedType: blkid.Unknown,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			img := testimage.New(testimage.MiB, 512)
			test.setup(img)

			size := img.GetSize()
			if test.size != 0 {
				size = test.size
			}

			fs, err := blkid.Detect(img, size, blkid.WithProbeLogger(zaptest.NewLogger(t)), blkid.WithPartition(3))
			require.NoError(t, err)

			assert.EqualValues(t, 3, fs.Partition)
			assert.Equal(t, test.expectedType, fs.Type)

			if test.expectedLabel != "" {
				require.NotNil(t, fs.Label)
				assert.Equal(t, test.expectedLabel, *fs.Label)
			} else {
				assert.Nil(t, fs.Label)
			}

			if test.expectUUID {
				require.NotNil(t, fs.UUID)
				assert.Equal(t, testUUID, *fs.UUID)
				assert.Len(t, fs.UUID.String(), 36)
			} else {
				assert.Nil(t, fs.UUID)
			}

			if test.expectedSerial != "" {
				require.NotNil(t, fs.Serial)
				assert.Equal(t, test.expectedSerial, *fs.Serial)
			} else {
				assert.Nil(t, fs.Serial)
			}

			assert.Equal(t, test.expectedBS, fs.BlockSize)
			assert.Equal(t, test.expectedBlocks, fs.Blocks)
			assert.Equal(t, test.expectedFree, fs.FreeBlocks)
			assert.Equal(t, test.expectedFeatures, fs.Features)
		})
	}
}

type failingReader struct{}

func (failingReader) ReadAt([]byte, int64) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestDetectReadError(t *testing.T) {
	t.Parallel()

	_, err := blkid.Detect(failingReader{}, testimage.MiB)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestFsTypeString(t *testing.T) {
	t.Parallel()

	for _, typ := range []blkid.FsType{blkid.Unknown, blkid.Ext2, blkid.Ext3, blkid.Ext4, blkid.Ntfs, blkid.Xfs, blkid.Btrfs, blkid.Fat32} {
		parsed, err := blkid.ParseFsType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	assert.Equal(t, "fstype(42)", blkid.FsType(42).String())

	_, err := blkid.ParseFsType("reiserfs")
	assert.Error(t, err)
}
