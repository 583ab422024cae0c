// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package config loads guestinspect settings from TOML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/c2h5oh/datasize"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/siderolabs/go-guestinspect/guestfs"
	"github.com/siderolabs/go-guestinspect/inspect"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GUESTINSPECT_"

// Config is the guestinspect configuration.
type Config struct {
	TempDir string `toml:"temp_dir"` // Directory for decompressed images and database copies, empty means os.TempDir()

	Launch struct {
		Concurrency          int               `toml:"concurrency" default:"4" validate:"min=1,max=64"`                // Partitions probed in parallel
		MaxLogicalPartitions int               `toml:"max_logical_partitions" default:"256" validate:"min=0,max=4096"` // Bound on the EBR chain walk
		MaxDecompressedSize  datasize.ByteSize `toml:"max_decompressed_size"`                                          // Limit for zstd images, e.g. "64GB"; zero disables the limit
		ReadWrite            bool              `toml:"read_write" default:"false"`                                     // Attach drives with an exclusive lock
	} `toml:"launch"`

	Inspect struct {
		// List installed applications.
		Applications bool `toml:"applications" default:"false"`
		// Tie-break order for guests with several package databases.
		PackageFormatPriority []string `toml:"package_format_priority" default:"[\"deb\",\"rpm\",\"pacman\"]" validate:"min=1,dive,oneof=deb rpm pacman"`
	} `toml:"inspect"`
}

// Default returns the configuration with all defaults applied.
func Default() (*Config, error) {
	var cfg Config

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	return &cfg, nil
}

// Load reads the configuration.
//
// Defaults are applied first, then the TOML file at path (if not empty),
// then the GUESTINSPECT_* environment variables. A .env file in the working
// directory is loaded into the environment if present.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if _, err = toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	}

	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err = cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	return nil
}

func (cfg *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))

				return
			}

			*dst = n
		}
	}

	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))

				return
			}

			*dst = b
		}
	}

	str("TEMP_DIR", &cfg.TempDir)
	integer("CONCURRENCY", &cfg.Launch.Concurrency)
	integer("MAX_LOGICAL_PARTITIONS", &cfg.Launch.MaxLogicalPartitions)
	boolean("READ_WRITE", &cfg.Launch.ReadWrite)
	boolean("APPLICATIONS", &cfg.Inspect.Applications)

	if v, ok := lookup(EnvPrefix + "MAX_DECOMPRESSED_SIZE"); ok {
		size, err := datasize.ParseString(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_DECOMPRESSED_SIZE: %w", EnvPrefix, err))
		} else {
			cfg.Launch.MaxDecompressedSize = size
		}
	}

	if v, ok := lookup(EnvPrefix + "PACKAGE_FORMAT_PRIORITY"); ok {
		cfg.Inspect.PackageFormatPriority = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}

	return errors.Join(errs...)
}

// Mode returns the drive attach mode.
func (cfg *Config) Mode() guestfs.Mode {
	if cfg.Launch.ReadWrite {
		return guestfs.ReadWrite
	}

	return guestfs.ReadOnly
}

// HandleOptions converts the configuration into guestfs options.
func (cfg *Config) HandleOptions(logger *zap.Logger) []guestfs.Option {
	return []guestfs.Option{
		guestfs.WithLogger(logger),
		guestfs.WithTempDir(cfg.TempDir),
		guestfs.WithConcurrency(cfg.Launch.Concurrency),
		guestfs.WithMaxLogicalPartitions(cfg.Launch.MaxLogicalPartitions),
		guestfs.WithMaxDecompressedSize(cfg.Launch.MaxDecompressedSize.Bytes()),
	}
}

// InspectorOptions converts the configuration into inspector options.
func (cfg *Config) InspectorOptions(logger *zap.Logger) ([]inspect.Option, error) {
	priority := make([]inspect.PackageFormat, 0, len(cfg.Inspect.PackageFormatPriority))

	for _, name := range cfg.Inspect.PackageFormatPriority {
		format, err := inspect.ParsePackageFormat(name)
		if err != nil {
			return nil, err
		}

		priority = append(priority, format)
	}

	return []inspect.Option{
		inspect.WithLogger(logger),
		inspect.WithTempDir(cfg.TempDir),
		inspect.WithApplications(cfg.Inspect.Applications),
		inspect.WithPackageFormatPriority(priority...),
	}, nil
}
