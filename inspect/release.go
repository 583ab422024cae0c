// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package inspect

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/siderolabs/go-pointer"
)

var osReleasePaths = []string{"/etc/os-release", "/usr/lib/os-release"}

var bsdIDs = map[string]struct{}{
	"freebsd":   {},
	"openbsd":   {},
	"netbsd":    {},
	"dragonfly": {},
}

// parseKeyValues parses shell-style KEY=value lines.
func parseKeyValues(contents []byte) map[string]string {
	values := map[string]string{}

	scanner := bufio.NewScanner(bytes.NewReader(contents))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		value = strings.TrimSpace(value)

		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		} else {
			value = strings.Trim(value, `"'`)
		}

		values[strings.TrimSpace(key)] = value
	}

	return values
}

func parseOSRelease(contents []byte) *OSRoot {
	values := parseKeyValues(contents)

	id := strings.ToLower(values["ID"])
	if id == "" {
		return nil
	}

	root := &OSRoot{
		Type:        OSTypeLinux,
		Distro:      id,
		ProductName: values["PRETTY_NAME"],
		Version:     parseVersion(values["VERSION_ID"]),
	}

	if root.ProductName == "" {
		root.ProductName = values["NAME"]
	}

	if _, ok := bsdIDs[id]; ok {
		root.Type = OSTypeBSD
	}

	return root
}

// parseVersion parses "22.04", "9" or "7.9.2009", anything else is zero.
func parseVersion(s string) Version {
	var v Version

	parts := strings.SplitN(strings.TrimSpace(s), ".", 3)

	for i, part := range parts {
		n, err := strconv.Atoi(leadingDigits(part))
		if err != nil {
			break
		}

		switch i {
		case 0:
			v.Major = n
		case 1:
			v.Minor = n
		case 2:
			v.Build = pointer.To(n)
		}
	}

	return v
}

func leadingDigits(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if end == -1 {
		return s
	}

	return s[:end]
}

func firstLine(contents []byte) string {
	line, _, _ := strings.Cut(string(contents), "\n")

	return strings.TrimSpace(line)
}

type legacyReleaseFile struct {
	path  string
	parse func([]byte) *OSRoot
}

var legacyReleaseFiles = []legacyReleaseFile{
	{path: "/etc/redhat-release", parse: parseRedHatRelease},
	{path: "/etc/debian_version", parse: parseDebianVersion},
	{path: "/etc/lsb-release", parse: parseLSBRelease},
}

var redHatReleaseRe = regexp.MustCompile(`^(.*?)\s+release\s+([0-9][0-9.]*)`)

var redHatDistros = []struct {
	marker, distro string
}{
	{"CentOS", "centos"},
	{"Fedora", "fedora"},
	{"Rocky", "rocky"},
	{"AlmaLinux", "almalinux"},
	{"Oracle", "ol"},
	{"Scientific", "scientific"},
	{"Red Hat", "rhel"},
}

func parseRedHatRelease(contents []byte) *OSRoot {
	line := firstLine(contents)
	if line == "" {
		return nil
	}

	root := &OSRoot{
		Type:        OSTypeLinux,
		Distro:      "redhat-based",
		ProductName: line,
	}

	for _, d := range redHatDistros {
		if strings.Contains(line, d.marker) {
			root.Distro = d.distro

			break
		}
	}

	if m := redHatReleaseRe.FindStringSubmatch(line); m != nil {
		root.Version = parseVersion(m[2])
	}

	return root
}

// parseDebianVersion handles both "12.5" and testing codenames like "trixie/sid".
func parseDebianVersion(contents []byte) *OSRoot {
	line := firstLine(contents)
	if line == "" {
		return nil
	}

	return &OSRoot{
		Type:        OSTypeLinux,
		Distro:      "debian",
		ProductName: "Debian GNU/Linux " + line,
		Version:     parseVersion(line),
	}
}

func parseLSBRelease(contents []byte) *OSRoot {
	values := parseKeyValues(contents)

	id := strings.ToLower(values["DISTRIB_ID"])
	if id == "" {
		return nil
	}

	return &OSRoot{
		Type:        OSTypeLinux,
		Distro:      id,
		ProductName: values["DISTRIB_DESCRIPTION"],
		Version:     parseVersion(values["DISTRIB_RELEASE"]),
	}
}
