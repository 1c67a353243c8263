// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"daml.com/x/wpm/pkg/builtincommand"
	"daml.com/x/wpm/pkg/wpmconfig"
	"github.com/spf13/cobra"
)

func Cmd(config *wpmconfig.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(builtincommand.Mirror),
		Short: "manage dependency mirrors",
		Long:  "maintains the mirror substitutions applied to dependency locations during resolution",
	}

	cmd.AddCommand(setCmd(config), unsetCmd(config), listCmd(config))
	return cmd
}

func setCmd(config *wpmconfig.Config) *cobra.Command {
	var original, mirror string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "add or replace a mirror for a package location",
		RunE: func(cmd *cobra.Command, args []string) error {
			mirrors, err := config.LoadMirrors()
			if err != nil {
				return err
			}
			if err := mirrors.Set(original, mirror); err != nil {
				return err
			}
			return config.SaveMirrors(mirrors)
		},
	}

	cmd.Flags().StringVar(&original, "original", "", "canonical package location")
	cmd.Flags().StringVar(&mirror, "mirror", "", "location to substitute for it")
	_ = cmd.MarkFlagRequired("original")
	_ = cmd.MarkFlagRequired("mirror")
	return cmd
}

func unsetCmd(config *wpmconfig.Config) *cobra.Command {
	var original string

	cmd := &cobra.Command{
		Use:   "unset",
		Short: "remove the mirror for a package location",
		RunE: func(cmd *cobra.Command, args []string) error {
			mirrors, err := config.LoadMirrors()
			if err != nil {
				return err
			}
			mirrors.Unset(original)
			return config.SaveMirrors(mirrors)
		},
	}

	cmd.Flags().StringVar(&original, "original", "", "canonical package location")
	_ = cmd.MarkFlagRequired("original")
	return cmd
}

func listCmd(config *wpmconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list configured mirrors",
		RunE: func(cmd *cobra.Command, args []string) error {
			mirrors, err := config.LoadMirrors()
			if err != nil {
				return err
			}
			for _, original := range mirrors.Originals() {
				mirror, _ := mirrors.Mirror(original)
				cmd.Printf("%s -> %s\n", original, mirror)
			}
			return nil
		},
	}
}
