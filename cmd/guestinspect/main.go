// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main is the guestinspect command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/go-guestinspect/config"
)

type globalFlags struct {
	configPath string
	debug      bool
	noColor    bool
}

type globalContext struct {
	flags globalFlags

	logger *zap.Logger
	config *config.Config
	styles styles
}

func (gctx *globalContext) setup() error {
	gctx.styles = newStyles(gctx.flags.noColor)

	var err error

	if gctx.flags.debug {
		gctx.logger, err = zap.NewDevelopment()
	} else {
		gctx.logger, err = zap.NewProduction(zap.IncreaseLevel(zap.WarnLevel))
	}

	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	gctx.config, err = config.Load(gctx.flags.configPath)

	return err
}

func newRootCommand() *cobra.Command {
	gctx := &globalContext{}

	rootCmd := &cobra.Command{
		Use:   "guestinspect",
		Short: "Inspect virtual machine disk images",
		Long: `guestinspect identifies the container format, partition table and filesystems
of a disk image without booting or mounting it.

Operating system inspection runs against an externally mounted root directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return gctx.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if gctx.logger != nil {
				gctx.logger.Sync() //nolint:errcheck
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&gctx.flags.configPath, "config", "c", "", "Path to the TOML configuration file")
	rootCmd.PersistentFlags().BoolVar(&gctx.flags.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&gctx.flags.noColor, "no-color", false, "Disable color output")

	rootCmd.AddCommand(newInspectCommand(gctx))
	rootCmd.AddCommand(newLsCommand(gctx))

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := newRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}
