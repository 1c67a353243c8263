// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package statecmd

import (
	"daml.com/x/wpm/pkg/builtincommand"
	"daml.com/x/wpm/pkg/depview"
	"daml.com/x/wpm/pkg/workspace"
	"daml.com/x/wpm/pkg/wpmconfig"
	"github.com/spf13/cobra"
)

func Cmd(config *wpmconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   string(builtincommand.State),
		Short: "print the recorded workspace state",
		Long:  "prints the managed dependencies as last recorded by resolve, without resolving again",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workspace.OpenCurrent(config, workspace.Options{})
			if err != nil {
				return err
			}
			doc, err := w.State()
			if err != nil {
				return err
			}
			cmd.Print(depview.StateTable(doc))
			return nil
		},
	}
}
