// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package inspect

import "go.uber.org/zap"

// DefaultPackageFormatPriority resolves guests carrying more than one package database.
var DefaultPackageFormatPriority = []PackageFormat{PackageFormatDeb, PackageFormatRpm, PackageFormatPacman}

// Options configure the Inspector.
type Options struct {
	Logger *zap.Logger

	// PackageFormatPriority is the tie-break order when several package databases are present.
	PackageFormatPriority []PackageFormat

	// RegistryOpener opens offline Windows registry hives.
	RegistryOpener RegistryOpener

	// Applications enables listing of installed packages.
	Applications bool

	// TempDir is used for the database files handed to the rpm and registry readers.
	TempDir string
}

// Option is a function that sets some option.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithPackageFormatPriority overrides the package format tie-break order.
func WithPackageFormatPriority(formats ...PackageFormat) Option {
	return func(o *Options) {
		o.PackageFormatPriority = formats
	}
}

// WithRegistry sets the Windows registry hive opener.
func WithRegistry(opener RegistryOpener) Option {
	return func(o *Options) {
		o.RegistryOpener = opener
	}
}

// WithApplications enables listing installed applications.
func WithApplications(enabled bool) Option {
	return func(o *Options) {
		o.Applications = enabled
	}
}

// WithTempDir sets the directory for temporary database copies.
func WithTempDir(dir string) Option {
	return func(o *Options) {
		o.TempDir = dir
	}
}

func applyOptions(opts ...Option) Options {
	o := Options{
		Logger:                zap.NewNop(),
		PackageFormatPriority: DefaultPackageFormatPriority,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.RegistryOpener == nil {
		o.RegistryOpener = OfflineRegistryOpener(o.TempDir)
	}

	return o
}
