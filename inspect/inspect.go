// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package inspect identifies the operating system installed on a guest filesystem.
//
// The inspector only consumes file contents through a FileAccessor, it never
// mounts anything itself.
package inspect

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// FileAccessor provides read access to the files of a mounted guest filesystem.
//
// Paths are absolute and slash-separated, rooted at the filesystem root.
type FileAccessor interface {
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]string, error)
	Exists(path string) bool
}

// OSType is the operating system family.
type OSType int

// Operating system families.
const (
	OSTypeUnknown OSType = iota
	OSTypeLinux
	OSTypeWindows
	OSTypeBSD
)

func (t OSType) String() string {
	switch t {
	case OSTypeLinux:
		return "linux"
	case OSTypeWindows:
		return "windows"
	case OSTypeBSD:
		return "bsd"
	case OSTypeUnknown:
		return "unknown"
	default:
		return "ostype(" + strconv.Itoa(int(t)) + ")"
	}
}

// PackageFormat is the package database format of the guest.
type PackageFormat int

// Package formats.
const (
	PackageFormatUnknown PackageFormat = iota
	PackageFormatNone
	PackageFormatDeb
	PackageFormatRpm
	PackageFormatPacman
)

func (f PackageFormat) String() string {
	switch f {
	case PackageFormatNone:
		return "none"
	case PackageFormatDeb:
		return "deb"
	case PackageFormatRpm:
		return "rpm"
	case PackageFormatPacman:
		return "pacman"
	case PackageFormatUnknown:
		return "unknown"
	default:
		return "packageformat(" + strconv.Itoa(int(f)) + ")"
	}
}

// ParsePackageFormat parses the package format name.
func ParsePackageFormat(s string) (PackageFormat, error) {
	for _, f := range []PackageFormat{PackageFormatDeb, PackageFormatRpm, PackageFormatPacman, PackageFormatNone, PackageFormatUnknown} {
		if f.String() == s {
			return f, nil
		}
	}

	return PackageFormatUnknown, fmt.Errorf("unknown package format %q", s)
}

// Version of the operating system.
type Version struct {
	Major int
	Minor int
	Build *int
}

func (v Version) String() string {
	s := strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)

	if v.Build != nil {
		s += "." + strconv.Itoa(*v.Build)
	}

	return s
}

// Application is an installed package.
type Application struct {
	Name        string
	Epoch       int
	Version     string
	Release     string
	Arch        string
	Publisher   string
	Description string
}

// OSRoot describes one operating system installation.
//
// OSRoot holds no reference to the guest handle which produced it.
type OSRoot struct { //nolint:govet
	// Filesystem is the index of the partition holding the root filesystem.
	Filesystem uint

	Type        OSType
	Distro      string
	ProductName string
	Version     Version

	Hostname string
	// Arch is a heuristic guess based on the presence of 64-bit library directories.
	Arch string

	PackageFormat PackageFormat

	// Mountpoints maps mount paths to the fstab device specification.
	Mountpoints map[string]string

	Applications []Application
}

// Inspector runs the OS identification decision procedure.
type Inspector struct {
	options Options
}

// New creates an Inspector.
func New(opts ...Option) *Inspector {
	return &Inspector{
		options: applyOptions(opts...),
	}
}

// Inspect identifies the operating system on the filesystem.
//
// Inspect returns nil if no marker file is found.
func (i *Inspector) Inspect(ctx context.Context, fs uint, fa FileAccessor) (*OSRoot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := i.options.Logger.With(zap.Uint("filesystem", fs))

	root, err := i.identify(fa, logger)
	if err != nil {
		return nil, err
	}

	if root == nil {
		logger.Debug("no operating system markers found")

		return nil, nil //nolint:nilnil
	}

	root.Filesystem = fs

	switch root.Type { //nolint:exhaustive
	case OSTypeWindows:
		root.Arch = windowsArch(fa)
		root.PackageFormat = PackageFormatNone
	default:
		if err = i.inspectUnix(root, fa, logger); err != nil {
			return nil, err
		}
	}

	if i.options.Applications {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		root.Applications = i.listApplications(ctx, root, fa, logger)
	}

	logger.Info("identified operating system",
		zap.Stringer("type", root.Type),
		zap.String("distro", root.Distro),
		zap.Stringer("version", root.Version),
		zap.Stringer("package_format", root.PackageFormat),
	)

	return root, nil
}

func (i *Inspector) identify(fa FileAccessor, logger *zap.Logger) (*OSRoot, error) {
	for _, path := range osReleasePaths {
		if !fa.Exists(path) {
			continue
		}

		contents, err := fa.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		if root := parseOSRelease(contents); root != nil {
			logger.Debug("identified from os-release", zap.String("path", path))

			return root, nil
		}
	}

	if hive, ok := findWindowsHive(fa, "SOFTWARE"); ok {
		logger.Debug("found windows registry hive", zap.String("path", hive))

		return i.inspectWindows(fa, hive, logger), nil
	}

	for _, legacy := range legacyReleaseFiles {
		if !fa.Exists(legacy.path) {
			continue
		}

		contents, err := fa.ReadFile(legacy.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", legacy.path, err)
		}

		if root := legacy.parse(contents); root != nil {
			logger.Debug("identified from legacy release file", zap.String("path", legacy.path))

			return root, nil
		}
	}

	return nil, nil //nolint:nilnil
}

func (i *Inspector) inspectUnix(root *OSRoot, fa FileAccessor, logger *zap.Logger) error {
	if fa.Exists("/etc/hostname") {
		contents, err := fa.ReadFile("/etc/hostname")
		if err != nil {
			return fmt.Errorf("failed to read hostname: %w", err)
		}

		root.Hostname = firstLine(contents)
	}

	root.Arch = unixArch(fa)
	root.PackageFormat = i.packageFormat(fa)

	if fa.Exists("/etc/fstab") {
		contents, err := fa.ReadFile("/etc/fstab")
		if err != nil {
			return fmt.Errorf("failed to read fstab: %w", err)
		}

		root.Mountpoints = parseFstab(contents, logger)
	}

	return nil
}

// unixArch is a low-confidence guess.
func unixArch(fa FileAccessor) string {
	if fa.Exists("/lib64") || fa.Exists("/usr/lib64") {
		return "x86_64"
	}

	return "i386"
}
