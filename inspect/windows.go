// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package inspect

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/google/osv-scalibr/common/windows/registry"
	"github.com/siderolabs/go-pointer"
	"go.uber.org/zap"
)

// Registry is an opened offline registry hive.
//
// Key paths are backslash-separated and relative to the hive root.
type Registry interface {
	StringValue(key, name string) (string, error)
	DWORDValue(key, name string) (uint32, error)
	Subkeys(key string) ([]string, error)
	Close() error
}

// RegistryOpener opens a registry hive from its raw contents.
type RegistryOpener func(hive []byte) (Registry, error)

// ErrValueType is returned when a registry value can't be decoded as requested.
var ErrValueType = errors.New("unexpected registry value type")

// systemRoot candidates, NTFS is case-insensitive but the accessor might not be.
var windowsSystemRoots = []string{"/Windows", "/WINDOWS", "/windows", "/WinNT"}

func findWindowsHive(fa FileAccessor, name string) (string, bool) {
	for _, root := range windowsSystemRoots {
		for _, dir := range []string{"System32/config", "system32/config"} {
			for _, hive := range []string{name, strings.ToLower(name)} {
				p := path.Join(root, dir, hive)

				if fa.Exists(p) {
					return p, true
				}
			}
		}
	}

	return "", false
}

func windowsArch(fa FileAccessor) string {
	if fa.Exists("/Program Files (x86)") {
		return "x86_64"
	}

	return "i386"
}

const (
	currentVersionKey = `Microsoft\Windows NT\CurrentVersion`
	uninstallKey      = `Microsoft\Windows\CurrentVersion\Uninstall`
)

// inspectWindows never fails: a hive which can't be read leaves the version unset.
func (i *Inspector) inspectWindows(fa FileAccessor, hivePath string, logger *zap.Logger) *OSRoot {
	root := &OSRoot{
		Type:        OSTypeWindows,
		Distro:      "windows",
		ProductName: "Windows",
	}

	reg, err := i.openHive(fa, hivePath)
	if err != nil {
		logger.Warn("failed to open registry hive", zap.String("path", hivePath), zap.Error(err))

		return root
	}

	defer reg.Close() //nolint:errcheck

	if name, err := reg.StringValue(currentVersionKey, "ProductName"); err == nil && name != "" {
		root.ProductName = name
	}

	root.Version = windowsVersion(reg)

	if systemHive, ok := findWindowsHive(fa, "SYSTEM"); ok {
		root.Hostname = i.windowsHostname(fa, systemHive, logger)
	}

	return root
}

func (i *Inspector) openHive(fa FileAccessor, hivePath string) (Registry, error) {
	contents, err := fa.ReadFile(hivePath)
	if err != nil {
		return nil, err
	}

	return i.options.RegistryOpener(contents)
}

func windowsVersion(reg Registry) Version {
	var v Version

	// Windows 10 and later keep CurrentVersion at 6.3 for compatibility.
	if major, err := reg.DWORDValue(currentVersionKey, "CurrentMajorVersionNumber"); err == nil {
		v.Major = int(major)

		if minor, err := reg.DWORDValue(currentVersionKey, "CurrentMinorVersionNumber"); err == nil {
			v.Minor = int(minor)
		}
	} else if current, err := reg.StringValue(currentVersionKey, "CurrentVersion"); err == nil {
		v = parseVersion(current)
	}

	if build, err := reg.StringValue(currentVersionKey, "CurrentBuildNumber"); err == nil {
		if n, err := strconv.Atoi(build); err == nil {
			v.Build = pointer.To(n)
		}
	}

	return v
}

func (i *Inspector) windowsHostname(fa FileAccessor, hivePath string, logger *zap.Logger) string {
	reg, err := i.openHive(fa, hivePath)
	if err != nil {
		logger.Warn("failed to open registry hive", zap.String("path", hivePath), zap.Error(err))

		return ""
	}

	defer reg.Close() //nolint:errcheck

	controlSet := "ControlSet001"

	if current, err := reg.DWORDValue("Select", "Current"); err == nil {
		controlSet = fmt.Sprintf("ControlSet%03d", current)
	}

	name, err := reg.StringValue(controlSet+`\Control\ComputerName\ComputerName`, "ComputerName")
	if err != nil {
		return ""
	}

	return name
}

func (i *Inspector) windowsApplications(fa FileAccessor, logger *zap.Logger) []Application {
	hivePath, ok := findWindowsHive(fa, "SOFTWARE")
	if !ok {
		return nil
	}

	reg, err := i.openHive(fa, hivePath)
	if err != nil {
		logger.Warn("failed to open registry hive", zap.String("path", hivePath), zap.Error(err))

		return nil
	}

	defer reg.Close() //nolint:errcheck

	var apps []Application

	for _, base := range []string{uninstallKey, `WOW6432Node\` + uninstallKey} {
		subkeys, err := reg.Subkeys(base)
		if err != nil {
			continue
		}

		for _, sub := range subkeys {
			key := base + `\` + sub

			name, err := reg.StringValue(key, "DisplayName")
			if err != nil || name == "" {
				continue
			}

			version, _ := reg.StringValue(key, "DisplayVersion") //nolint:errcheck
			publisher, _ := reg.StringValue(key, "Publisher")    //nolint:errcheck

			apps = append(apps, Application{
				Name:      name,
				Version:   version,
				Publisher: publisher,
			})
		}
	}

	return apps
}

// OfflineRegistryOpener returns a RegistryOpener parsing hives with osv-scalibr.
//
// The hive is copied to a temporary file in dir, which is removed on Close.
func OfflineRegistryOpener(dir string) RegistryOpener {
	return func(hive []byte) (Registry, error) {
		tmp, err := os.CreateTemp(dir, "hive-*.dat")
		if err != nil {
			return nil, err
		}

		cleanup := func() { os.Remove(tmp.Name()) } //nolint:errcheck

		if _, err = tmp.Write(hive); err != nil {
			tmp.Close() //nolint:errcheck
			cleanup()

			return nil, err
		}

		if err = tmp.Close(); err != nil {
			cleanup()

			return nil, err
		}

		reg, err := registry.NewOfflineOpener(tmp.Name()).Open()
		if err != nil {
			cleanup()

			return nil, fmt.Errorf("failed to parse registry hive: %w", err)
		}

		return &offlineRegistry{hive: reg, cleanup: cleanup}, nil
	}
}

type offlineRegistry struct {
	hive    registry.Registry
	cleanup func()
}

func (r *offlineRegistry) StringValue(key, name string) (string, error) {
	k, err := r.hive.OpenKey("", key)
	if err != nil {
		return "", err
	}

	val, err := k.ValueString(name)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(val, "\x00"), nil
}

func (r *offlineRegistry) DWORDValue(key, name string) (uint32, error) {
	k, err := r.hive.OpenKey("", key)
	if err != nil {
		return 0, err
	}

	val, err := k.Value(name)
	if err != nil {
		return 0, err
	}

	data, err := val.Data()
	if err != nil {
		return 0, err
	}

	if len(data) < 4 {
		return 0, fmt.Errorf("%w: %s\\%s is %d bytes", ErrValueType, key, name, len(data))
	}

	return binary.LittleEndian.Uint32(data[:4]), nil
}

func (r *offlineRegistry) Subkeys(key string) ([]string, error) {
	k, err := r.hive.OpenKey("", key)
	if err != nil {
		return nil, err
	}

	subkeys, err := k.Subkeys()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(subkeys))

	for _, sub := range subkeys {
		names = append(names, sub.Name())
	}

	return names, nil
}

func (r *offlineRegistry) Close() error {
	err := r.hive.Close()
	r.cleanup()

	return err
}
