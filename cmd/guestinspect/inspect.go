// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/siderolabs/go-guestinspect/fileaccess"
	"github.com/siderolabs/go-guestinspect/guestfs"
	"github.com/siderolabs/go-guestinspect/inspect"
)

type inspectCommand struct {
	gctx *globalContext

	json         bool
	rootDir      string
	rootFS       uint
	applications bool
}

func newInspectCommand(gctx *globalContext) *cobra.Command {
	c := &inspectCommand{gctx: gctx}

	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "Show format, partitions and filesystems of a disk image",
		Long: `Show the container format, partition table and filesystems of a disk image.

With --root-dir, the directory is treated as the mounted root filesystem of
the guest and the operating system is identified from it.`,
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}

	cmd.Flags().BoolVarP(&c.json, "json", "j", false, "JSON output")
	cmd.Flags().StringVar(&c.rootDir, "root-dir", "", "Directory holding the mounted guest root filesystem")
	cmd.Flags().UintVar(&c.rootFS, "root-fs", 0, "Filesystem (partition index) mounted at --root-dir, defaults to the first root candidate")
	cmd.Flags().BoolVar(&c.applications, "applications", false, "List installed applications")

	return cmd
}

func (c *inspectCommand) run(cmd *cobra.Command, args []string) error {
	cfg := c.gctx.config

	if cmd.Flags().Changed("applications") {
		cfg.Inspect.Applications = c.applications
	}

	h := guestfs.New(cfg.HandleOptions(c.gctx.logger)...)
	defer h.Shutdown() //nolint:errcheck

	if err := h.AttachDrive(args[0], cfg.Mode()); err != nil {
		return err
	}

	if err := h.Launch(cmd.Context()); err != nil {
		return err
	}

	rep, err := newReport(args[0], h)
	if err != nil {
		return err
	}

	if c.rootDir != "" {
		if rep.OperatingSystems, err = c.inspectRoot(cmd, h, args[0]); err != nil {
			return err
		}
	}

	return c.print(cmd.OutOrStdout(), rep)
}

func (c *inspectCommand) inspectRoot(cmd *cobra.Command, h *guestfs.Handle, image string) ([]osReport, error) {
	fs := c.rootFS

	if !cmd.Flags().Changed("root-fs") {
		roots, err := h.Roots()
		if err != nil {
			return nil, err
		}

		if len(roots) == 0 {
			return nil, fmt.Errorf("no root filesystem candidates in %s", image)
		}

		fs = roots[0]
	}

	dir, err := fileaccess.OpenDir(c.rootDir)
	if err != nil {
		return nil, err
	}

	defer dir.Close() //nolint:errcheck

	if err = h.Mount(fs, dir); err != nil {
		return nil, err
	}

	opts, err := c.gctx.config.InspectorOptions(c.gctx.logger)
	if err != nil {
		return nil, err
	}

	roots, err := h.InspectOS(cmd.Context(), inspect.New(opts...))
	if err != nil {
		return nil, err
	}

	reports := make([]osReport, 0, len(roots))

	for _, root := range roots {
		reports = append(reports, newOSReport(root))
	}

	return reports, nil
}

func (c *inspectCommand) print(w io.Writer, rep *report) error {
	if c.json {
		return rep.writeJSON(w)
	}

	rep.writeText(w, c.gctx.styles)

	return nil
}
