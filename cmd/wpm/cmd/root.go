// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"daml.com/x/wpm/cmd/wpm/cmd/edit"
	"daml.com/x/wpm/cmd/wpm/cmd/mirror"
	"daml.com/x/wpm/cmd/wpm/cmd/publish"
	"daml.com/x/wpm/cmd/wpm/cmd/resolve"
	"daml.com/x/wpm/cmd/wpm/cmd/showdeps"
	"daml.com/x/wpm/cmd/wpm/cmd/statecmd"
	"daml.com/x/wpm/cmd/wpm/cmd/unedit"
	"daml.com/x/wpm/cmd/wpm/cmd/update"
	"daml.com/x/wpm/pkg/logging"
	"daml.com/x/wpm/pkg/wpmconfig"
	"daml.com/x/wpm/pkg/wpmversion"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

const WpmName = "wpm"

func RootCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   WpmName,
		Short: "workspace package manager",
	}

	if err := logging.InitLogging(); err != nil {
		return nil, err
	}

	config, err := wpmconfig.Get()
	if err != nil {
		return nil, err
	}
	if err := config.EnsureDirs(); err != nil {
		return nil, err
	}

	cmd.AddCommand(
		resolve.Cmd(config),
		update.Cmd(config),
		edit.Cmd(config),
		unedit.Cmd(config),
		showdeps.Cmd(config),
		statecmd.Cmd(config),
		mirror.Cmd(config),
		publish.Cmd(config),
	)

	version, err := yaml.Marshal(wpmversion.Get())
	if err != nil {
		return nil, err
	}
	cmd.Version = string(version)
	cmd.SetVersionTemplate("{{.Version}}")

	return cmd, nil
}
