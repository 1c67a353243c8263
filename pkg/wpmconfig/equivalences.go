// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package wpmconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/schema"
	"github.com/goccy/go-yaml"
)

const (
	EquivalencesKind       = "Equivalences"
	EquivalencesVersion    = "v1"
	EquivalencesAPIVersion = schema.APIGroup + "/" + EquivalencesVersion
)

var ErrInvalidEquivalences = fmt.Errorf("invalid equivalences file")

// EquivalenceEntry states that the package served from a source-control URL
// is the same package published under a registry identity. The swizzle
// policy uses these to unify the two declaration forms.
type EquivalenceEntry struct {
	Source   string `yaml:"source"`
	Registry string `yaml:"registry"`
}

type EquivalencesDocument struct {
	schema.ManifestMeta `yaml:",inline"`
	Equivalences        []EquivalenceEntry `yaml:"equivalences"`
}

func (c *Config) EquivalencesPath() string {
	return filepath.Join(c.WpmHomePath, EquivalencesFileName)
}

// LoadEquivalences reads the source-control/registry equivalence table,
// keyed by source-control URL. A missing file yields an empty table.
func (c *Config) LoadEquivalences() (map[string]identity.PackageIdentity, error) {
	bytes, err := os.ReadFile(c.EquivalencesPath())
	if os.IsNotExist(err) {
		return map[string]identity.PackageIdentity{}, nil
	}
	if err != nil {
		return nil, err
	}

	var doc EquivalencesDocument
	if err := yaml.Unmarshal(bytes, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEquivalences, err.Error())
	}
	expected := schema.ManifestMeta{APIVersion: EquivalencesAPIVersion, Kind: EquivalencesKind}
	if err := expected.ValidateSchema(doc.ManifestMeta); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEquivalences, err.Error())
	}

	equivalences := map[string]identity.PackageIdentity{}
	for _, entry := range doc.Equivalences {
		id, err := identity.ParseRegistryIdentity(entry.Registry)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidEquivalences, err.Error())
		}
		if prior, ok := equivalences[entry.Source]; ok && prior != id {
			return nil, fmt.Errorf("%w: %q is listed as both %q and %q", ErrInvalidEquivalences, entry.Source, prior, id)
		}
		equivalences[entry.Source] = id
	}
	return equivalences, nil
}
