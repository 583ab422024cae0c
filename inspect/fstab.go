// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package inspect

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/deniswernert/go-fstab"
	"go.uber.org/zap"
)

// parseFstab returns mountpoint to device spec, swap and pseudo filesystems are skipped.
func parseFstab(contents []byte, logger *zap.Logger) map[string]string {
	mountpoints := map[string]string{}

	scanner := bufio.NewScanner(bytes.NewReader(contents))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		mount, err := fstab.ParseLine(line)
		if err != nil {
			logger.Warn("ignoring malformed fstab line", zap.String("line", line), zap.Error(err))

			continue
		}

		if mount == nil {
			continue
		}

		if !strings.HasPrefix(mount.File, "/") || isPseudoFilesystem(mount.VfsType) {
			continue
		}

		mountpoints[mount.File] = mount.Spec
	}

	return mountpoints
}

func isPseudoFilesystem(vfsType string) bool {
	switch vfsType {
	case "swap", "proc", "sysfs", "tmpfs", "devpts", "devtmpfs", "cgroup", "cgroup2":
		return true
	default:
		return false
	}
}
