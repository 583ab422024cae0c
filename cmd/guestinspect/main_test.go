// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-guestinspect/internal/testimage"
)

var rootUUID = uuid.MustParse("5c3b6a9e-27e4-4c1b-9f59-0d8a8e6b9a10")

func writeImage(t *testing.T) string {
	t.Helper()

	img := testimage.New(64*testimage.MiB, 512)

	testimage.WriteMBR(img, testimage.MBREntry{Bootable: true, Type: 0x83, StartLBA: 2048, Sectors: 131072 - 2048})
	testimage.WriteExt(img, testimage.MiB, testimage.Ext4("root", rootUUID, 63*testimage.MiB/4096))

	path := filepath.Join(t.TempDir(), "disk.raw")
	require.NoError(t, img.WriteFile(path))

	return path
}

func writeRoot(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	for name, contents := range map[string]string{
		"etc/os-release":      "ID=debian\nVERSION_ID=\"12\"\nPRETTY_NAME=\"Debian GNU/Linux 12 (bookworm)\"\n",
		"etc/hostname":        "bookworm\n",
		"etc/fstab":           "UUID=5c3b6a9e-27e4-4c1b-9f59-0d8a8e6b9a10 / ext4 defaults 0 1\n",
		"var/lib/dpkg/status": "Package: bash\nStatus: install ok installed\nArchitecture: amd64\nVersion: 5.2.15-2+b2\n\n",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.Dir(name)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(contents), 0o644))
	}

	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib64"), 0o755))

	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--no-color"}, args...))

	err := cmd.ExecuteContext(t.Context())

	return out.String(), err
}

func TestInspectJSON(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "inspect", "--json", writeImage(t))
	require.NoError(t, err)

	var rep report

	require.NoError(t, json.Unmarshal([]byte(out), &rep))

	assert.Equal(t, "raw", rep.Format)
	assert.EqualValues(t, 64*testimage.MiB, rep.VirtualSize)
	assert.Equal(t, "mbr", rep.Scheme)

	require.Len(t, rep.Partitions, 1)
	assert.Equal(t, "/dev/sda1", rep.Partitions[0].Device)
	assert.EqualValues(t, testimage.MiB, rep.Partitions[0].Start)
	assert.True(t, rep.Partitions[0].Bootable)
	assert.Equal(t, "Linux", rep.Partitions[0].Type)

	require.Len(t, rep.Filesystems, 1)
	assert.Equal(t, "/dev/sda1", rep.Filesystems[0].Device)
	assert.Equal(t, "ext4", rep.Filesystems[0].Type)
	assert.Equal(t, "root", rep.Filesystems[0].Label)
	assert.Equal(t, rootUUID.String(), rep.Filesystems[0].UUID)

	assert.Empty(t, rep.OperatingSystems)
}

func TestInspectRootDir(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "inspect", "--json", "--applications", "--root-dir", writeRoot(t), writeImage(t))
	require.NoError(t, err)

	var rep report

	require.NoError(t, json.Unmarshal([]byte(out), &rep))

	require.Len(t, rep.OperatingSystems, 1)

	root := rep.OperatingSystems[0]
	assert.Equal(t, "/dev/sda1", root.Device)
	assert.Equal(t, "linux", root.Type)
	assert.Equal(t, "debian", root.Distro)
	assert.Equal(t, "Debian GNU/Linux 12 (bookworm)", root.ProductName)
	assert.Equal(t, "12.0", root.Version)
	assert.Equal(t, "bookworm", root.Hostname)
	assert.Equal(t, "x86_64", root.Arch)
	assert.Equal(t, "deb", root.PackageFormat)
	assert.Equal(t, "UUID=5c3b6a9e-27e4-4c1b-9f59-0d8a8e6b9a10", root.Mountpoints["/"])

	require.Len(t, root.Applications, 1)
	assert.Equal(t, "bash", root.Applications[0].Name)
}

func TestInspectText(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "inspect", writeImage(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Format: raw")
	assert.Contains(t, out, "Partition table: mbr")
	assert.Contains(t, out, "/dev/sda1")
	assert.Contains(t, out, "ext4")
	assert.Contains(t, out, "root")
}

func TestInspectErrors(t *testing.T) {
	t.Parallel()

	for _, test := range []struct { //nolint:govet
		name string
		args []string
	}{
		{
			name: "no image",
			args: []string{"inspect"},
		},
		{
			name: "missing image",
			args: []string{"inspect", filepath.Join(t.TempDir(), "missing.raw")},
		},
		{
			name: "missing root dir",
			args: []string{"inspect", "--root-dir", filepath.Join(t.TempDir(), "missing"), writeImage(t)},
		},
		{
			name: "ls bad partition",
			args: []string{"ls", writeImage(t), "first"},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := execute(t, test.args...)
			require.Error(t, err)
		})
	}
}
