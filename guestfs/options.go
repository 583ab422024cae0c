// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package guestfs

import (
	"go.uber.org/zap"

	"github.com/siderolabs/go-guestinspect/block"
	"github.com/siderolabs/go-guestinspect/container"
	"github.com/siderolabs/go-guestinspect/partitioning"
)

// DefaultConcurrency is the default number of partitions probed in parallel.
const DefaultConcurrency = 4

// Options configure the Handle.
type Options struct {
	Logger *zap.Logger

	// Decoder produces a flat view of container images.
	Decoder container.Decoder
	// Opener opens the attached drive.
	Opener block.Opener

	// Concurrency limits parallel filesystem detection.
	Concurrency int

	// MaxLogicalPartitions bounds the EBR chain walk.
	MaxLogicalPartitions int

	// TempDir holds decompressed and converted images.
	TempDir string

	// MaxDecompressedSize caps zstd decompression, zero means no limit.
	MaxDecompressedSize uint64
}

// Option is a function that sets some option.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithDecoder sets the container decoder.
func WithDecoder(decoder container.Decoder) Option {
	return func(o *Options) {
		o.Decoder = decoder
	}
}

// WithOpener sets the drive opener.
func WithOpener(opener block.Opener) Option {
	return func(o *Options) {
		o.Opener = opener
	}
}

// WithConcurrency sets the number of partitions probed in parallel.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

// WithMaxLogicalPartitions bounds the number of MBR logical partitions decoded.
func WithMaxLogicalPartitions(n int) Option {
	return func(o *Options) {
		o.MaxLogicalPartitions = n
	}
}

// WithTempDir sets the directory for temporary images.
func WithTempDir(dir string) Option {
	return func(o *Options) {
		o.TempDir = dir
	}
}

// WithMaxDecompressedSize limits the size of decompressed images.
func WithMaxDecompressedSize(size uint64) Option {
	return func(o *Options) {
		o.MaxDecompressedSize = size
	}
}

func applyOptions(opts ...Option) Options {
	o := Options{
		Logger:               zap.NewNop(),
		Opener:               block.DefaultOpener,
		Concurrency:          DefaultConcurrency,
		MaxLogicalPartitions: partitioning.DefaultMaxLogicalPartitions,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.Decoder == nil {
		o.Decoder = container.DefaultDecoder(o.TempDir)
	}

	if o.Concurrency < 1 {
		o.Concurrency = 1
	}

	return o
}
