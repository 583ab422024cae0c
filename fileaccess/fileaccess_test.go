// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package fileaccess_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-guestinspect/fileaccess"
	"github.com/siderolabs/go-guestinspect/inspect"
	"github.com/siderolabs/go-guestinspect/internal/testimage"
)

var (
	_ inspect.FileAccessor = fileaccess.Map{}
	_ inspect.FileAccessor = (*fileaccess.Dir)(nil)
	_ inspect.FileAccessor = (*fileaccess.Diskfs)(nil)
)

func TestMap(t *testing.T) {
	t.Parallel()

	m := fileaccess.Map{
		"/etc/os-release":              []byte("ID=ubuntu\n"),
		"/etc/hostname":                []byte("guest\n"),
		"/var/lib/pacman/local/a/desc": []byte("%NAME%\na\n"),
		"/var/lib/pacman/local/b/desc": []byte("%NAME%\nb\n"),
	}

	contents, err := m.ReadFile("/etc/hostname")
	require.NoError(t, err)
	assert.Equal(t, "guest\n", string(contents))

	contents, err = m.ReadFile("etc//./os-release")
	require.NoError(t, err)
	assert.Equal(t, "ID=ubuntu\n", string(contents))

	_, err = m.ReadFile("/etc/missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	names, err := m.ReadDir("/etc")
	require.NoError(t, err)
	assert.Equal(t, []string{"hostname", "os-release"}, names)

	names, err = m.ReadDir("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"etc", "var"}, names)

	names, err = m.ReadDir("/var/lib/pacman/local")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	_, err = m.ReadDir("/etc/hostname")
	assert.ErrorIs(t, err, fileaccess.ErrNotDirectory)

	_, err = m.ReadDir("/usr")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.True(t, m.Exists("/"))
	assert.True(t, m.Exists("/etc"))
	assert.True(t, m.Exists("/etc/os-release"))
	assert.True(t, m.Exists("/var/lib/pacman/local"))
	assert.False(t, m.Exists("/var/lib/dpkg"))
	assert.False(t, m.Exists("/et"))
}

func TestDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib64"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc", "hostname"), []byte("guest\n"), 0o644))
	require.NoError(t, os.Symlink("/etc/hostname", filepath.Join(root, "escape")))

	dir, err := fileaccess.OpenDir(root)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, dir.Close())
	})

	contents, err := dir.ReadFile("/etc/hostname")
	require.NoError(t, err)
	assert.Equal(t, "guest\n", string(contents))

	names, err := dir.ReadDir("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"escape", "etc", "lib64"}, names)

	assert.True(t, dir.Exists("/lib64"))
	assert.True(t, dir.Exists("/"))
	assert.False(t, dir.Exists("/usr/lib64"))

	// the symlink points outside of the guest root
	_, err = dir.ReadFile("/escape")
	assert.Error(t, err)
}

func TestOpenDiskfsErrors(t *testing.T) {
	t.Parallel()

	_, err := fileaccess.OpenDiskfs(filepath.Join(t.TempDir(), "missing.raw"), 0)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "zero.raw")
	require.NoError(t, testimage.New(4*testimage.MiB, 512).WriteFile(path))

	_, err = fileaccess.OpenDiskfs(path, 0)
	require.Error(t, err)
}
