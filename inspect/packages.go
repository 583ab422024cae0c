// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package inspect

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path"
	"strconv"
	"strings"

	rpmdb "github.com/knqyf263/go-rpmdb/pkg"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // sqlite driver for rpmdb.sqlite
)

const (
	dpkgStatusPath = "/var/lib/dpkg/status"
	pacmanLocalDir = "/var/lib/pacman/local"
)

var packageMarkers = map[PackageFormat][]string{
	PackageFormatDeb:    {dpkgStatusPath},
	PackageFormatRpm:    {"/var/lib/rpm", "/usr/lib/sysimage/rpm"},
	PackageFormatPacman: {pacmanLocalDir},
}

// rpm database files in the order rpm itself prefers them.
var rpmDatabases = []string{
	"/var/lib/rpm/rpmdb.sqlite",
	"/usr/lib/sysimage/rpm/rpmdb.sqlite",
	"/var/lib/rpm/Packages.db",
	"/usr/lib/sysimage/rpm/Packages.db",
	"/var/lib/rpm/Packages",
	"/usr/lib/sysimage/rpm/Packages",
}

func (i *Inspector) packageFormat(fa FileAccessor) PackageFormat {
	for _, format := range i.options.PackageFormatPriority {
		for _, marker := range packageMarkers[format] {
			if fa.Exists(marker) {
				return format
			}
		}
	}

	return PackageFormatNone
}

// listApplications is best effort, unreadable databases are logged and skipped.
func (i *Inspector) listApplications(ctx context.Context, root *OSRoot, fa FileAccessor, logger *zap.Logger) []Application {
	var (
		apps []Application
		err  error
	)

	switch root.PackageFormat { //nolint:exhaustive
	case PackageFormatDeb:
		apps, err = dpkgApplications(fa)
	case PackageFormatRpm:
		apps, err = i.rpmApplications(ctx, fa)
	case PackageFormatPacman:
		apps, err = pacmanApplications(ctx, fa)
	case PackageFormatNone:
		if root.Type == OSTypeWindows {
			apps = i.windowsApplications(fa, logger)
		}
	}

	if err != nil {
		logger.Warn("failed to list applications", zap.Stringer("package_format", root.PackageFormat), zap.Error(err))

		return nil
	}

	return apps
}

func dpkgApplications(fa FileAccessor) ([]Application, error) {
	contents, err := fa.ReadFile(dpkgStatusPath)
	if err != nil {
		return nil, err
	}

	var apps []Application

	for _, paragraph := range bytes.Split(contents, []byte("\n\n")) {
		fields := parseDebControl(paragraph)

		if fields["Package"] == "" || !strings.HasSuffix(fields["Status"], " installed") {
			continue
		}

		app := Application{
			Name:        fields["Package"],
			Arch:        fields["Architecture"],
			Publisher:   fields["Maintainer"],
			Description: fields["Description"],
		}

		app.Epoch, app.Version, app.Release = splitDebVersion(fields["Version"])

		apps = append(apps, app)
	}

	return apps, nil
}

// parseDebControl returns the first line of each field, continuation lines are dropped.
func parseDebControl(paragraph []byte) map[string]string {
	fields := map[string]string{}

	scanner := bufio.NewScanner(bytes.NewReader(paragraph))

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		fields[key] = strings.TrimSpace(value)
	}

	return fields
}

// splitDebVersion splits [epoch:]upstream[-revision].
func splitDebVersion(v string) (int, string, string) {
	var epoch int

	if e, rest, ok := strings.Cut(v, ":"); ok {
		if n, err := strconv.Atoi(e); err == nil {
			epoch = n
			v = rest
		}
	}

	if idx := strings.LastIndex(v, "-"); idx > 0 {
		return epoch, v[:idx], v[idx+1:]
	}

	return epoch, v, ""
}

func (i *Inspector) rpmApplications(ctx context.Context, fa FileAccessor) ([]Application, error) {
	for _, dbPath := range rpmDatabases {
		if !fa.Exists(dbPath) {
			continue
		}

		contents, err := fa.ReadFile(dbPath)
		if err != nil {
			return nil, err
		}

		return i.readRPMDatabase(ctx, path.Base(dbPath), contents)
	}

	return nil, nil
}

// readRPMDatabase copies the database to the host, rpmdb only opens files by path.
func (i *Inspector) readRPMDatabase(ctx context.Context, name string, contents []byte) ([]Application, error) {
	dir, err := os.MkdirTemp(i.options.TempDir, "rpmdb-")
	if err != nil {
		return nil, err
	}

	defer os.RemoveAll(dir) //nolint:errcheck

	dbPath := path.Join(dir, name)

	if err = os.WriteFile(dbPath, contents, 0o600); err != nil {
		return nil, err
	}

	db, err := rpmdb.Open(dbPath)
	if err != nil {
		return nil, err
	}

	defer db.Close() //nolint:errcheck

	pkgs, err := db.ListPackages()
	if err != nil {
		return nil, err
	}

	apps := make([]Application, 0, len(pkgs))

	for _, pkg := range pkgs {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		apps = append(apps, Application{
			Name:      pkg.Name,
			Version:   pkg.Version,
			Release:   pkg.Release,
			Arch:      pkg.Arch,
			Publisher: pkg.Vendor,
		})
	}

	return apps, nil
}

func pacmanApplications(ctx context.Context, fa FileAccessor) ([]Application, error) {
	entries, err := fa.ReadDir(pacmanLocalDir)
	if err != nil {
		return nil, err
	}

	var apps []Application

	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		descPath := path.Join(pacmanLocalDir, entry, "desc")
		if !fa.Exists(descPath) {
			continue
		}

		contents, err := fa.ReadFile(descPath)
		if err != nil {
			return nil, err
		}

		if app, ok := parsePacmanDesc(contents); ok {
			apps = append(apps, app)
		}
	}

	return apps, nil
}

func parsePacmanDesc(contents []byte) (Application, bool) {
	var (
		app     Application
		section string
	)

	scanner := bufio.NewScanner(bytes.NewReader(contents))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			section = ""
		case strings.HasPrefix(line, "%") && strings.HasSuffix(line, "%"):
			section = strings.Trim(line, "%")
		default:
			switch section {
			case "NAME":
				app.Name = line
			case "VERSION":
				app.Epoch, app.Version, app.Release = splitDebVersion(line)
			case "ARCH":
				app.Arch = line
			case "DESC":
				app.Description = line
			case "PACKAGER":
				app.Publisher = line
			}
		}
	}

	return app, app.Name != ""
}
