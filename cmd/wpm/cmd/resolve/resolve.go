// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"os"
	"strconv"

	"daml.com/x/wpm/pkg/builtincommand"
	"daml.com/x/wpm/pkg/depview"
	"daml.com/x/wpm/pkg/traits"
	"daml.com/x/wpm/pkg/workspace"
	"daml.com/x/wpm/pkg/wpmconfig"
	"github.com/spf13/cobra"
)

func Cmd(config *wpmconfig.Config) *cobra.Command {
	var enabledTraits []string
	var enableAll bool

	cmd := &cobra.Command{
		Use:   string(builtincommand.Resolve),
		Short: "resolve package dependencies",
		Long:  "resolves the package graph, honoring recorded pins where they still satisfy the declared requirements, and records the outcome in the workspace state",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workspace.OpenCurrent(config, workspace.Options{})
			if err != nil {
				return err
			}

			res, err := w.Resolve(cmd.Context(), workspace.ResolveOptions{
				Traits: traitConfig(cmd, enabledTraits, enableAll),
			})
			if err != nil {
				return err
			}
			cmd.Print(depview.StateTable(res.State))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&enabledTraits, "traits", nil, "traits to enable on the root package, replacing its defaults")
	cmd.Flags().BoolVar(&enableAll, "enable-all-traits", envEnableAll(), "enable every declared trait")
	return cmd
}

func traitConfig(cmd *cobra.Command, enabledTraits []string, enableAll bool) traits.Configuration {
	config := traits.Configuration{EnableAllTraits: enableAll}
	if cmd.Flags().Changed("traits") {
		config.EnabledTraits = enabledTraits
	}
	return config
}

func envEnableAll() bool {
	v, ok := os.LookupEnv(wpmconfig.EnableAllTraitsEnvVar)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
