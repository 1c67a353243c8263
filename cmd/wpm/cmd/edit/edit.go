// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package edit

import (
	"fmt"

	"daml.com/x/wpm/pkg/builtincommand"
	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/workspace"
	"daml.com/x/wpm/pkg/wpmconfig"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func Cmd(config *wpmconfig.Config) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   string(builtincommand.Edit) + " <package>",
		Short: "use a local copy of a dependency",
		Long:  "puts a managed dependency into edited mode, so resolution uses the package at --path instead of the recorded checkout or download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return fmt.Errorf("--path is required")
			}
			w, err := workspace.OpenCurrent(config, workspace.Options{})
			if err != nil {
				return err
			}
			id := identity.PackageIdentity(args[0])
			if err := w.Edit(cmd.Context(), id, path); err != nil {
				return err
			}
			cmd.Printf("%s is now edited at %s\n", id, color.GreenString(path))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "directory holding the local copy of the package")
	return cmd
}
