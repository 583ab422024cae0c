// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package fileaccess

import (
	"io/fs"
	"os"
)

// Dir serves files from a host directory holding an externally mounted guest filesystem.
//
// Symlinks are resolved within the directory, absolute guest symlinks can't escape to the host.
type Dir struct {
	root *os.Root
}

// OpenDir opens the directory as the guest root.
func OpenDir(path string) (*Dir, error) {
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}

	return &Dir{root: root}, nil
}

// ReadFile returns the contents of a file.
func (d *Dir) ReadFile(p string) ([]byte, error) {
	return d.root.ReadFile(clean(p))
}

// ReadDir returns the sorted names of the directory entries.
func (d *Dir) ReadDir(p string) ([]string, error) {
	entries, err := fs.ReadDir(d.root.FS(), clean(p))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names, nil
}

// Exists reports whether the path exists.
func (d *Dir) Exists(p string) bool {
	_, err := d.root.Stat(clean(p))

	return err == nil
}

// Close releases the directory.
func (d *Dir) Close() error {
	return d.root.Close()
}
