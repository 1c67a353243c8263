// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"fmt"
	"os"

	"daml.com/x/wpm/pkg/builtincommand"
	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/registry"
	"daml.com/x/wpm/pkg/wpmconfig"
	"github.com/Masterminds/semver/v3"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func Cmd(config *wpmconfig.Config) *cobra.Command {
	var archive, description string

	cmd := &cobra.Command{
		Use:   string(builtincommand.Publish) + " <scope.name> <version>",
		Short: "publish a package release to the registry",
		Long:  "pushes the package manifest in the current directory, plus an optional source archive, as one release of the given registry identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.ParseRegistryIdentity(args[0])
			if err != nil {
				return err
			}
			version, err := semver.StrictNewVersion(args[1])
			if err != nil {
				return err
			}

			manifestPath, found, err := wpmconfig.GetPackageAbsolutePath()
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no %s found in the current directory or any parent", manifest.FileName)
			}
			contents, err := os.ReadFile(manifestPath)
			if err != nil {
				return err
			}

			client, err := registry.New(config.Registry, config.NetrcPath, config.Insecure)
			if err != nil {
				return err
			}
			_, err = client.Publish(cmd.Context(), id, version, registry.Release{
				Manifest:    contents,
				ArchivePath: archive,
				Description: description,
			})
			if err != nil {
				return err
			}

			scope, name, _ := id.ScopeAndName()
			dest := color.GreenString("%s/%s/%s:%s", config.Registry, scope, name, version)
			cmd.Printf("published %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVar(&archive, "archive", "", "gzipped source archive to attach to the release")
	cmd.Flags().StringVar(&description, "description", "", "release description")
	return cmd
}
