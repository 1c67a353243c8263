// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"
)

// SemVer is a yaml-codable semver.Version.
type SemVer semver.Version

func NewSemVer(v *semver.Version) *SemVer {
	if v == nil {
		return nil
	}
	s := SemVer(*v)
	return &s
}

func MustSemVer(s string) *SemVer {
	return NewSemVer(semver.MustParse(s))
}

func (v *SemVer) Value() *semver.Version {
	if v == nil {
		return nil
	}
	return (*semver.Version)(v)
}

func (v *SemVer) String() string {
	return v.Value().String()
}

func (v *SemVer) UnmarshalYAML(data []byte) error {
	var versionStr string
	if err := yaml.Unmarshal(data, &versionStr); err != nil {
		return fmt.Errorf("failed to unmarshal version: %w", err)
	}
	parsed, err := semver.NewVersion(versionStr)
	if err != nil {
		return fmt.Errorf("invalid semantic version %q: %w", versionStr, err)
	}
	*v = SemVer(*parsed)
	return nil
}

func (v *SemVer) MarshalYAML() ([]byte, error) {
	return []byte(v.Value().String()), nil
}

var _ yaml.BytesUnmarshaler = (*SemVer)(nil)
var _ yaml.BytesMarshaler = (*SemVer)(nil)
