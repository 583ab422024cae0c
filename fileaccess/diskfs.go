// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package fileaccess

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
)

// Diskfs serves files from a FAT32, ISO 9660 or squashfs partition of a raw image.
//
// The image is opened read-only.
type Diskfs struct {
	disk *disk.Disk
	fs   filesystem.FileSystem
}

// OpenDiskfs opens the partition of the raw disk image at path.
//
// Partition 0 is the whole disk, partitions are numbered as in the partition table.
func OpenDiskfs(path string, partition int) (*Diskfs, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to open disk image: %w", err)
	}

	fs, err := d.GetFilesystem(partition)
	if err != nil {
		d.Close() //nolint:errcheck

		return nil, fmt.Errorf("failed to read filesystem on partition %d: %w", partition, err)
	}

	return &Diskfs{disk: d, fs: fs}, nil
}

// candidates lists the spellings tried for p, FAT short names are stored upper case.
func candidates(p string) []string {
	c := abs(p)

	return slices.Compact([]string{c, strings.ToUpper(c)})
}

// ReadFile returns the contents of a file.
func (d *Diskfs) ReadFile(p string) ([]byte, error) {
	for _, candidate := range candidates(p) {
		f, err := d.fs.OpenFile(candidate, os.O_RDONLY)
		if err != nil {
			continue
		}

		contents, err := io.ReadAll(f)
		f.Close() //nolint:errcheck

		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}

		return contents, nil
	}

	return nil, notExist("read", p)
}

// ReadDir returns the sorted names of the directory entries.
func (d *Diskfs) ReadDir(p string) ([]string, error) {
	for _, candidate := range candidates(p) {
		entries, err := d.fs.ReadDir(candidate)
		if err != nil {
			continue
		}

		names := make([]string, 0, len(entries))

		for _, entry := range entries {
			if entry.Name() == "." || entry.Name() == ".." {
				continue
			}

			names = append(names, entry.Name())
		}

		slices.Sort(names)

		return names, nil
	}

	return nil, notExist("readdir", p)
}

// Exists reports whether the path is a readable file or directory.
func (d *Diskfs) Exists(p string) bool {
	if clean(p) == "." {
		return true
	}

	for _, candidate := range candidates(p) {
		if f, err := d.fs.OpenFile(candidate, os.O_RDONLY); err == nil {
			f.Close() //nolint:errcheck

			return true
		}

		if _, err := d.fs.ReadDir(candidate); err == nil {
			return true
		}
	}

	return false
}

// Label returns the filesystem label reported by go-diskfs.
func (d *Diskfs) Label() string {
	return strings.TrimSpace(d.fs.Label())
}

// Close releases the image.
func (d *Diskfs) Close() error {
	return d.disk.Close()
}
