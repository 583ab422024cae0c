// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-guestinspect/guestfs"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "guestinspect.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Launch.Concurrency)
	assert.Equal(t, 256, cfg.Launch.MaxLogicalPartitions)
	assert.Zero(t, cfg.Launch.MaxDecompressedSize)
	assert.False(t, cfg.Launch.ReadWrite)
	assert.False(t, cfg.Inspect.Applications)
	assert.Equal(t, []string{"deb", "rpm", "pacman"}, cfg.Inspect.PackageFormatPriority)
	assert.Equal(t, guestfs.ReadOnly, cfg.Mode())

	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
temp_dir = "/var/tmp"

[launch]
concurrency = 8
max_decompressed_size = "64GB"
read_write = true

[inspect]
applications = true
package_format_priority = ["rpm", "deb"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/tmp", cfg.TempDir)
	assert.Equal(t, 8, cfg.Launch.Concurrency)
	assert.Equal(t, 256, cfg.Launch.MaxLogicalPartitions)
	assert.Equal(t, 64*datasize.GB, cfg.Launch.MaxDecompressedSize)
	assert.Equal(t, guestfs.ReadWrite, cfg.Mode())
	assert.True(t, cfg.Inspect.Applications)
	assert.Equal(t, []string{"rpm", "deb"}, cfg.Inspect.PackageFormatPriority)

	opts, err := cfg.InspectorOptions(zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	assert.Len(t, cfg.HandleOptions(zaptest.NewLogger(t)), 5)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	for _, test := range []struct { //nolint:govet
		name     string
		contents string
	}{
		{
			name:     "syntax",
			contents: "[launch\n",
		},
		{
			name:     "concurrency",
			contents: "[launch]\nconcurrency = 0\n",
		},
		{
			name:     "package format",
			contents: "[inspect]\npackage_format_priority = [\"apk\"]\n",
		},
		{
			name:     "empty priority",
			contents: "[inspect]\npackage_format_priority = []\n",
		},
		{
			name:     "size",
			contents: "[launch]\nmax_decompressed_size = \"lots\"\n",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeConfig(t, test.contents))
			require.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	for _, test := range []struct { //nolint:govet
		name    string
		env     map[string]string
		check   func(*testing.T, *Config)
		wantErr bool
	}{
		{
			name: "empty",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 4, cfg.Launch.Concurrency)
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"GUESTINSPECT_TEMP_DIR":                "/scratch",
				"GUESTINSPECT_CONCURRENCY":             "2",
				"GUESTINSPECT_MAX_LOGICAL_PARTITIONS":  "16",
				"GUESTINSPECT_MAX_DECOMPRESSED_SIZE":   "512MB",
				"GUESTINSPECT_READ_WRITE":              "true",
				"GUESTINSPECT_APPLICATIONS":            "1",
				"GUESTINSPECT_PACKAGE_FORMAT_PRIORITY": "pacman, deb",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/scratch", cfg.TempDir)
				assert.Equal(t, 2, cfg.Launch.Concurrency)
				assert.Equal(t, 16, cfg.Launch.MaxLogicalPartitions)
				assert.Equal(t, 512*datasize.MB, cfg.Launch.MaxDecompressedSize)
				assert.True(t, cfg.Launch.ReadWrite)
				assert.True(t, cfg.Inspect.Applications)
				assert.Equal(t, []string{"pacman", "deb"}, cfg.Inspect.PackageFormatPriority)
			},
		},
		{
			name: "bad integer",
			env: map[string]string{
				"GUESTINSPECT_CONCURRENCY": "many",
			},
			wantErr: true,
		},
		{
			name: "bad bool",
			env: map[string]string{
				"GUESTINSPECT_APPLICATIONS": "perhaps",
			},
			wantErr: true,
		},
		{
			name: "bad size",
			env: map[string]string{
				"GUESTINSPECT_MAX_DECOMPRESSED_SIZE": "5XB",
			},
			wantErr: true,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Default()
			require.NoError(t, err)

			err = cfg.applyEnv(func(key string) (string, bool) {
				v, ok := test.env[key]

				return v, ok
			})

			if test.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			test.check(t, cfg)
		})
	}
}
