// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package container_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/siderolabs/go-guestinspect/container"
)

func qcow2Header(version, clusterBits uint32, size uint64) []byte {
	buf := make([]byte, container.PrefixSize)

	copy(buf, "QFI\xfb")
	binary.BigEndian.PutUint32(buf[4:], version)
	binary.BigEndian.PutUint32(buf[20:], clusterBits)
	binary.BigEndian.PutUint64(buf[24:], size)

	return buf
}

func vmdkHeader(capacity, grain uint64) []byte {
	buf := make([]byte, container.PrefixSize)

	copy(buf, "KDMV")
	binary.LittleEndian.PutUint32(buf[4:], 1)
	binary.LittleEndian.PutUint64(buf[12:], capacity)
	binary.LittleEndian.PutUint64(buf[20:], grain)

	return buf
}

func vdiHeader(version uint32, diskSize uint64) []byte {
	buf := make([]byte, container.PrefixSize)

	copy(buf, "<<< Oracle VM VirtualBox Disk Image >>>\n")
	binary.LittleEndian.PutUint32(buf[0x40:], 0xbeda107f)
	binary.LittleEndian.PutUint32(buf[0x44:], version)
	binary.LittleEndian.PutUint64(buf[0x170:], diskSize)
	binary.LittleEndian.PutUint32(buf[0x178:], 1<<20)

	return buf
}

func vhdFooter(diskType uint32, size uint64) []byte {
	buf := make([]byte, container.FooterSize)

	copy(buf, "conectix")
	binary.BigEndian.PutUint32(buf[12:], 0x00010000)
	binary.BigEndian.PutUint64(buf[40:], size)
	binary.BigEndian.PutUint64(buf[48:], size)
	binary.BigEndian.PutUint32(buf[60:], diskType)

	var sum uint32
	for _, b := range buf {
		sum += uint32(b)
	}

	binary.BigEndian.PutUint32(buf[64:], ^sum)

	return buf
}

func vhdDynamicPrefix(size uint64) []byte {
	buf := make([]byte, container.PrefixSize)

	copy(buf, vhdFooter(3, size))
	copy(buf[container.FooterSize:], "cxsparse")

	return buf
}

func TestDetect(t *testing.T) {
	t.Parallel()

	for _, test := range []struct { //nolint:govet
		name string

		prefix []byte
		footer []byte
		length uint64

		expected container.Info
	}{
		{
			name:     "empty",
			expected: container.Info{Format: container.Unknown},
		},
		{
			name:     "short",
			prefix:   make([]byte, 100),
			length:   100,
			expected: container.Info{Format: container.Unknown},
		},
		{
			name:     "raw",
			prefix:   make([]byte, container.PrefixSize),
			length:   1 << 30,
			expected: container.Info{Format: container.Raw, VirtualSize: 1 << 30},
		},
		{
			name:   "qcow2",
			prefix: qcow2Header(3, 16, 10<<30),
			length: 200 << 10,
			expected: container.Info{
				Format:      container.Qcow2,
				Version:     3,
				ClusterSize: 65536,
				VirtualSize: 10 << 30,
			},
		},
		{
			name:     "qcow2 truncated",
			prefix:   qcow2Header(3, 16, 10<<30)[:16],
			length:   16,
			expected: container.Info{Format: container.Unknown, Suspected: container.Qcow2},
		},
		{
			name:     "qcow2 bad version",
			prefix:   qcow2Header(7, 16, 10<<30),
			length:   1 << 20,
			expected: container.Info{Format: container.Unknown, Suspected: container.Qcow2},
		},
		{
			name:     "qcow2 bad cluster bits",
			prefix:   qcow2Header(2, 40, 10<<30),
			length:   1 << 20,
			expected: container.Info{Format: container.Unknown, Suspected: container.Qcow2},
		},
		{
			name:   "vmdk sparse",
			prefix: vmdkHeader(2097152, 128),
			length: 1 << 20,
			expected: container.Info{
				Format:      container.Vmdk,
				Version:     1,
				VirtualSize: 1 << 30,
				ClusterSize: 65536,
			},
		},
		{
			name:     "vmdk sparse bad grain",
			prefix:   vmdkHeader(2097152, 100),
			length:   1 << 20,
			expected: container.Info{Format: container.Unknown, Suspected: container.Vmdk},
		},
		{
			name:     "vmdk descriptor",
			prefix:   []byte("# Disk DescriptorFile\nversion=1\nCID=fffffffe\ncreateType=\"monolithicFlat\"\n"),
			length:   72,
			expected: container.Info{Format: container.Vmdk, Version: 1},
		},
		{
			name:   "vdi",
			prefix: vdiHeader(0x00010001, 8<<30),
			length: 1 << 20,
			expected: container.Info{
				Format:      container.Vdi,
				Version:     0x00010001,
				VirtualSize: 8 << 30,
				ClusterSize: 1 << 20,
			},
		},
		{
			name:     "vdi truncated",
			prefix:   vdiHeader(0x00010001, 8<<30)[:0x100],
			length:   0x100,
			expected: container.Info{Format: container.Unknown, Suspected: container.Vdi},
		},
		{
			name:     "vhdx",
			prefix:   append([]byte("vhdxfile"), make([]byte, 1016)...),
			length:   4 << 20,
			expected: container.Info{Format: container.Vhdx},
		},
		{
			name:   "vhd dynamic",
			prefix: vhdDynamicPrefix(4 << 30),
			length: 1 << 20,
			expected: container.Info{
				Format:      container.Vhd,
				Version:     0x00010000,
				VirtualSize: 4 << 30,
			},
		},
		{
			name:   "vhd fixed",
			prefix: make([]byte, container.PrefixSize),
			footer: vhdFooter(2, 1<<20),
			length: 1<<20 + container.FooterSize,
			expected: container.Info{
				Format:      container.Vhd,
				Version:     0x00010000,
				VirtualSize: 1 << 20,
			},
		},
		{
			name:   "vhd fixed bad checksum",
			prefix: make([]byte, container.PrefixSize),
			footer: func() []byte {
				footer := vhdFooter(2, 1<<20)
				footer[100] = 1

				return footer
			}(),
			length:   1<<20 + container.FooterSize,
			expected: container.Info{Format: container.Raw, VirtualSize: 1<<20 + container.FooterSize},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, test.expected, container.DetectWithFooter(test.prefix, test.footer, test.length))

			if test.footer == nil {
				assert.Equal(t, test.expected, container.Detect(test.prefix, test.length))
			}
		})
	}
}

func TestInfoUndecodable(t *testing.T) {
	t.Parallel()

	assert.True(t, container.Detect(qcow2Header(9, 16, 1), 1<<20).Undecodable())
	assert.False(t, container.Detect(qcow2Header(3, 16, 1), 1<<20).Undecodable())
	assert.False(t, container.Detect(nil, 0).Undecodable())
}

func TestFormat(t *testing.T) {
	t.Parallel()

	for _, format := range []container.Format{
		container.Unknown, container.Raw, container.Qcow2, container.Vmdk, container.Vhd, container.Vhdx, container.Vdi,
	} {
		assert.Equal(t, format, container.ParseFormat(format.String()))
	}

	assert.Equal(t, container.Unknown, container.ParseFormat("iso"))
	assert.Equal(t, "format(99)", container.Format(99).String())

	assert.False(t, container.Raw.NeedsDecoding())
	assert.False(t, container.Unknown.NeedsDecoding())
	assert.True(t, container.Qcow2.NeedsDecoding())
}

func TestIsZstd(t *testing.T) {
	t.Parallel()

	assert.True(t, container.IsZstd([]byte{0x28, 0xB5, 0x2F, 0xFD, 0x04}))
	assert.False(t, container.IsZstd([]byte{0x28, 0xB5}))
	assert.False(t, container.IsZstd(nil))
}
