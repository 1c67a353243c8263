// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
)

const (
	APIGroup = "digitalasset.com"
)

type ManifestMeta struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
}

func (m ManifestMeta) ValidateSchema(target ManifestMeta) error {
	if target.Kind == "" {
		return fmt.Errorf("missing required field 'kind'")
	} else if target.Kind != m.Kind {
		return fmt.Errorf("unsupported kind %q. expected %q", target.Kind, m.Kind)
	}

	if target.APIVersion == "" {
		return fmt.Errorf("missing required field 'apiVersion'")
	}
	if target.APIVersion != m.APIVersion {
		return fmt.Errorf("unsupported apiVersion %q. expected %q", target.APIVersion, m.APIVersion)
	}

	return nil
}

// DocumentVersion is the integer schema number carried by the JSON
// persistence documents (workspace state, pins). Migration chains are keyed
// by it; ValidateRange rejects documents this build cannot read.
type DocumentVersion int

func (v DocumentVersion) ValidateRange(oldest, current DocumentVersion) error {
	if v < oldest || v > current {
		return fmt.Errorf("unsupported schema version %d. expected a version between %d and %d", int(v), int(oldest), int(current))
	}
	return nil
}
