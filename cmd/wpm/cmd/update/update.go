// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package update

import (
	"daml.com/x/wpm/pkg/builtincommand"
	"daml.com/x/wpm/pkg/depview"
	"daml.com/x/wpm/pkg/traits"
	"daml.com/x/wpm/pkg/workspace"
	"daml.com/x/wpm/pkg/wpmconfig"
	"github.com/spf13/cobra"
)

func Cmd(config *wpmconfig.Config) *cobra.Command {
	var enabledTraits []string

	cmd := &cobra.Command{
		Use:   string(builtincommand.Update),
		Short: "update dependencies to their latest admissible versions",
		Long:  "re-resolves the package graph from live release metadata, ignoring recorded pins, and rewrites pins and state",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workspace.OpenCurrent(config, workspace.Options{})
			if err != nil {
				return err
			}

			opts := workspace.ResolveOptions{Update: true}
			if cmd.Flags().Changed("traits") {
				opts.Traits = traits.Configuration{EnabledTraits: enabledTraits}
			}
			res, err := w.Resolve(cmd.Context(), opts)
			if err != nil {
				return err
			}
			cmd.Print(depview.StateTable(res.State))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&enabledTraits, "traits", nil, "traits to enable on the root package, replacing its defaults")
	return cmd
}
