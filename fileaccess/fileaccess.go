// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package fileaccess implements read-only file accessors for guest filesystems.
package fileaccess

import (
	"errors"
	"io/fs"
	"path"
	"strings"
)

// ErrNotDirectory is returned by ReadDir for paths which are not directories.
var ErrNotDirectory = errors.New("not a directory")

// clean normalizes an accessor path to a slash-separated path without the leading slash.
//
// The root itself is returned as ".".
func clean(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return "."
	}

	return p
}

// abs returns the cleaned absolute form of p.
func abs(p string) string {
	if c := clean(p); c != "." {
		return "/" + c
	}

	return "/"
}

func notExist(op, p string) error {
	return &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
}
