// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partitioning

import "go.uber.org/zap"

// DefaultMaxLogicalPartitions bounds the EBR chain walk.
const DefaultMaxLogicalPartitions = 256

// Options configure partition table parsing.
type Options struct {
	Logger *zap.Logger

	// MaxLogicalPartitions is the upper bound of EBRs followed.
	MaxLogicalPartitions int
}

// Option is a function that sets some option.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMaxLogicalPartitions limits the number of logical partitions decoded from the EBR chain.
func WithMaxLogicalPartitions(n int) Option {
	return func(o *Options) {
		o.MaxLogicalPartitions = n
	}
}

func applyOptions(opts ...Option) Options {
	o := Options{
		Logger:               zap.NewNop(),
		MaxLogicalPartitions: DefaultMaxLogicalPartitions,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
