// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package fileaccess

import (
	"io/fs"
	"slices"
	"strings"
)

// Map is an in-memory accessor keyed by absolute path.
//
// Directories are implied by the files below them.
type Map map[string][]byte

// ReadFile returns the contents of a file.
func (m Map) ReadFile(p string) ([]byte, error) {
	contents, ok := m[abs(p)]
	if !ok {
		return nil, notExist("read", p)
	}

	return slices.Clone(contents), nil
}

// ReadDir returns the sorted names of the directory entries.
func (m Map) ReadDir(p string) ([]string, error) {
	prefix := dirPrefix(p)

	var names []string

	for key := range m {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || rest == "" {
			continue
		}

		name, _, _ := strings.Cut(rest, "/")
		names = append(names, name)
	}

	if names == nil {
		if _, ok := m[abs(p)]; ok {
			return nil, &fs.PathError{Op: "readdir", Path: p, Err: ErrNotDirectory}
		}

		return nil, notExist("readdir", p)
	}

	slices.Sort(names)

	return slices.Compact(names), nil
}

// Exists reports whether the path is a file or an implied directory.
func (m Map) Exists(p string) bool {
	if clean(p) == "." {
		return len(m) > 0
	}

	if _, ok := m[abs(p)]; ok {
		return true
	}

	prefix := dirPrefix(p)

	for key := range m {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

func dirPrefix(p string) string {
	c := clean(p)
	if c == "." {
		return "/"
	}

	return "/" + c + "/"
}
