// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package wpmconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/schema"
	"daml.com/x/wpm/pkg/utils"
	"github.com/goccy/go-yaml"
)

const (
	MirrorsKind       = "Mirrors"
	MirrorsVersion    = "v1"
	MirrorsAPIVersion = schema.APIGroup + "/" + MirrorsVersion
)

var ErrInvalidMirrors = fmt.Errorf("invalid mirrors file")

type MirrorEntry struct {
	Original string `yaml:"original"`
	Mirror   string `yaml:"mirror"`
}

type MirrorsDocument struct {
	schema.ManifestMeta `yaml:",inline"`
	Mirrors             []MirrorEntry `yaml:"mirrors"`
}

func (c *Config) MirrorsPath() string {
	return filepath.Join(c.WpmHomePath, MirrorsFileName)
}

// LoadMirrors reads the workspace's mirror configuration. A missing file
// yields an empty set.
func (c *Config) LoadMirrors() (*identity.Mirrors, error) {
	bytes, err := os.ReadFile(c.MirrorsPath())
	if os.IsNotExist(err) {
		return identity.NewMirrors(), nil
	}
	if err != nil {
		return nil, err
	}

	var doc MirrorsDocument
	if err := yaml.Unmarshal(bytes, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMirrors, err.Error())
	}
	expected := schema.ManifestMeta{APIVersion: MirrorsAPIVersion, Kind: MirrorsKind}
	if err := expected.ValidateSchema(doc.ManifestMeta); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMirrors, err.Error())
	}

	mirrors := identity.NewMirrors()
	for _, entry := range doc.Mirrors {
		if err := mirrors.Set(entry.Original, entry.Mirror); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidMirrors, err.Error())
		}
	}
	return mirrors, nil
}

// SaveMirrors writes the mirror set back, one entry per original, sorted.
func (c *Config) SaveMirrors(mirrors *identity.Mirrors) error {
	doc := MirrorsDocument{
		ManifestMeta: schema.ManifestMeta{APIVersion: MirrorsAPIVersion, Kind: MirrorsKind},
	}
	for _, original := range mirrors.Originals() {
		mirror, _ := mirrors.Mirror(original)
		doc.Mirrors = append(doc.Mirrors, MirrorEntry{Original: original, Mirror: mirror})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := utils.EnsureDirs(c.WpmHomePath); err != nil {
		return err
	}
	return utils.WriteFileAtomic(c.MirrorsPath(), data, 0644)
}
