// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/c2h5oh/datasize"
	"github.com/fatih/color"
	"github.com/siderolabs/go-pointer"

	"github.com/siderolabs/go-guestinspect/blkid"
	"github.com/siderolabs/go-guestinspect/guestfs"
	"github.com/siderolabs/go-guestinspect/inspect"
	"github.com/siderolabs/go-guestinspect/partitioning"
)

type styles struct {
	heading *color.Color
	faint   *color.Color
}

func newStyles(noColor bool) styles {
	st := styles{
		heading: color.New(color.FgCyan, color.Bold),
		faint:   color.New(color.Faint),
	}

	if noColor {
		st.heading.DisableColor()
		st.faint.DisableColor()
	}

	return st
}

type report struct {
	Image       string `json:"image"`
	Format      string `json:"format"`
	VirtualSize uint64 `json:"virtual_size,omitempty"`
	Scheme      string `json:"scheme"`

	Partitions       []partitionReport  `json:"partitions"`
	Filesystems      []filesystemReport `json:"filesystems"`
	OperatingSystems []osReport         `json:"operating_systems,omitempty"`
}

type partitionReport struct {
	Device   string `json:"device"`
	Index    uint   `json:"index"`
	Start    uint64 `json:"start"`
	Size     uint64 `json:"size"`
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	UUID     string `json:"uuid,omitempty"`
	Bootable bool   `json:"bootable,omitempty"`
	Extended bool   `json:"extended,omitempty"`
	Logical  bool   `json:"logical,omitempty"`
}

type filesystemReport struct {
	Device   string   `json:"device"`
	Type     string   `json:"type"`
	Label    string   `json:"label,omitempty"`
	UUID     string   `json:"uuid,omitempty"`
	Serial   string   `json:"serial,omitempty"`
	Size     uint64   `json:"size,omitempty"`
	Free     uint64   `json:"free,omitempty"`
	Features []string `json:"features,omitempty"`
}

type osReport struct {
	Device        string            `json:"device"`
	Type          string            `json:"type"`
	Distro        string            `json:"distro,omitempty"`
	ProductName   string            `json:"product_name,omitempty"`
	Version       string            `json:"version"`
	Hostname      string            `json:"hostname,omitempty"`
	Arch          string            `json:"arch,omitempty"`
	PackageFormat string            `json:"package_format"`
	Mountpoints   map[string]string `json:"mountpoints,omitempty"`

	Applications []inspect.Application `json:"applications,omitempty"`
}

func newReport(image string, h *guestfs.Handle) (*report, error) {
	info, err := h.Format()
	if err != nil {
		return nil, err
	}

	scheme, err := h.Scheme()
	if err != nil {
		return nil, err
	}

	partitions, err := h.Partitions()
	if err != nil {
		return nil, err
	}

	filesystems, err := h.Filesystems()
	if err != nil {
		return nil, err
	}

	rep := &report{
		Image:       image,
		Format:      info.Format.String(),
		VirtualSize: info.VirtualSize,
		Scheme:      scheme.String(),
		Partitions:  make([]partitionReport, 0, len(partitions)),
		Filesystems: make([]filesystemReport, 0, len(filesystems)),
	}

	for _, p := range partitions {
		pr := partitionReport{
			Device:   partitioning.DevName(guestfs.DiskName, p.Index),
			Index:    p.Index,
			Start:    p.Start,
			Size:     p.Size(),
			Type:     p.TypeName(),
			Name:     pointer.SafeDeref(p.Name),
			Bootable: p.Bootable,
			Extended: p.Extended,
			Logical:  p.Logical,
		}

		if p.PartGUID != nil {
			pr.UUID = p.PartGUID.String()
		}

		rep.Partitions = append(rep.Partitions, pr)
	}

	for _, fs := range filesystems {
		fr := filesystemReport{
			Device:   guestfs.DeviceName(fs),
			Type:     fs.Type.String(),
			Label:    pointer.SafeDeref(fs.Label),
			Serial:   pointer.SafeDeref(fs.Serial),
			Size:     fs.Size(),
			Free:     fs.FreeBlocks * uint64(fs.BlockSize),
			Features: fs.Features,
		}

		if fs.UUID != nil {
			fr.UUID = fs.UUID.String()
		}

		rep.Filesystems = append(rep.Filesystems, fr)
	}

	return rep, nil
}

func newOSReport(root inspect.OSRoot) osReport {
	return osReport{
		Device:        guestfs.DeviceName(&blkid.Filesystem{Partition: root.Filesystem}),
		Type:          root.Type.String(),
		Distro:        root.Distro,
		ProductName:   root.ProductName,
		Version:       root.Version.String(),
		Hostname:      root.Hostname,
		Arch:          root.Arch,
		PackageFormat: root.PackageFormat.String(),
		Mountpoints:   root.Mountpoints,
		Applications:  root.Applications,
	}
}

func humanSize(n uint64) string {
	if n == 0 {
		return "-"
	}

	return datasize.ByteSize(n).HR()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func (rep *report) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(rep)
}

func (rep *report) writeText(w io.Writer, st styles) {
	heading, faint := st.heading.Sprint, st.faint.Sprint

	fmt.Fprintf(w, "%s %s\n", heading("Image:"), rep.Image)
	fmt.Fprintf(w, "%s %s", heading("Format:"), rep.Format)

	if rep.VirtualSize > 0 {
		fmt.Fprintf(w, " %s", faint("(virtual size "+humanSize(rep.VirtualSize)+")"))
	}

	fmt.Fprintf(w, "\n%s %s\n", heading("Partition table:"), rep.Scheme)

	if len(rep.Partitions) > 0 {
		fmt.Fprintf(w, "\n%s\n", heading("Partitions"))

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DEVICE\tSTART\tSIZE\tTYPE\tNAME\tFLAGS")

		for _, p := range rep.Partitions {
			var flags []string

			if p.Bootable {
				flags = append(flags, "boot")
			}

			if p.Extended {
				flags = append(flags, "extended")
			}

			if p.Logical {
				flags = append(flags, "logical")
			}

			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", p.Device, p.Start, humanSize(p.Size), p.Type, orDash(p.Name), orDash(strings.Join(flags, ",")))
		}

		tw.Flush() //nolint:errcheck
	}

	if len(rep.Filesystems) > 0 {
		fmt.Fprintf(w, "\n%s\n", heading("Filesystems"))

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DEVICE\tTYPE\tLABEL\tUUID\tSIZE\tFREE")

		for _, fs := range rep.Filesystems {
			id := fs.UUID
			if id == "" {
				id = fs.Serial
			}

			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", fs.Device, fs.Type, orDash(fs.Label), orDash(id), humanSize(fs.Size), humanSize(fs.Free))
		}

		tw.Flush() //nolint:errcheck
	}

	for _, root := range rep.OperatingSystems {
		fmt.Fprintf(w, "\n%s %s\n", heading("Operating system on"), root.Device)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  type\t%s\n", root.Type)
		fmt.Fprintf(tw, "  distro\t%s\n", orDash(root.Distro))
		fmt.Fprintf(tw, "  product\t%s\n", orDash(root.ProductName))
		fmt.Fprintf(tw, "  version\t%s\n", root.Version)
		fmt.Fprintf(tw, "  hostname\t%s\n", orDash(root.Hostname))
		fmt.Fprintf(tw, "  arch\t%s\n", orDash(root.Arch))
		fmt.Fprintf(tw, "  packages\t%s\n", root.PackageFormat)

		for _, mp := range slices.Sorted(maps.Keys(root.Mountpoints)) {
			fmt.Fprintf(tw, "  mount %s\t%s\n", mp, root.Mountpoints[mp])
		}

		tw.Flush() //nolint:errcheck

		if len(root.Applications) > 0 {
			fmt.Fprintf(w, "  %s %s\n", heading("applications:"), faint(fmt.Sprintf("(%d)", len(root.Applications))))

			for _, app := range root.Applications {
				fmt.Fprintf(w, "    %s %s\n", app.Name, app.Version)
			}
		}
	}
}
