// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package unedit

import (
	"daml.com/x/wpm/pkg/builtincommand"
	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/workspace"
	"daml.com/x/wpm/pkg/wpmconfig"
	"github.com/spf13/cobra"
)

func Cmd(config *wpmconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   string(builtincommand.Unedit) + " <package>",
		Short: "stop using a local copy of a dependency",
		Long:  "takes a dependency out of edited mode; the next resolve re-materializes it from its declared requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workspace.OpenCurrent(config, workspace.Options{})
			if err != nil {
				return err
			}
			return w.Unedit(cmd.Context(), identity.PackageIdentity(args[0]))
		},
	}
}
