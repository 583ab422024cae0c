// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/siderolabs/go-guestinspect/container"
	"github.com/siderolabs/go-guestinspect/fileaccess"
	"github.com/siderolabs/go-guestinspect/guestfs"
)

func newLsCommand(gctx *globalContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <image> <partition> [path]",
		Short: "List a directory of a FAT, ISO or squashfs filesystem in a raw image",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid partition %q: %w", args[1], err)
			}

			path := "/"
			if len(args) == 3 {
				path = args[2]
			}

			h := guestfs.New(gctx.config.HandleOptions(gctx.logger)...)
			defer h.Shutdown() //nolint:errcheck

			if err = h.AttachDrive(args[0], guestfs.ReadOnly); err != nil {
				return err
			}

			if err = h.Launch(cmd.Context()); err != nil {
				return err
			}

			info, err := h.Format()
			if err != nil {
				return err
			}

			if info.Format != container.Raw && info.Format != container.Unknown {
				return fmt.Errorf("%s images must be converted to raw before listing files", info.Format)
			}

			fs, err := fileaccess.OpenDiskfs(args[0], int(partition))
			if err != nil {
				return err
			}

			defer fs.Close() //nolint:errcheck

			names, err := fs.ReadDir(path)
			if err != nil {
				return err
			}

			if label := fs.Label(); label != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", gctx.styles.heading.Sprint("Label:"), label)
			}

			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}

			return nil
		},
	}
}
