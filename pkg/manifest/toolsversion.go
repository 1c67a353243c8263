// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ToolsVersion is the schema version of the manifest format itself, declared
// on the first line of every manifest source file:
//
//	// swift-tools-version:<major>.<minor>[.<patch>]
type ToolsVersion struct {
	Major, Minor, Patch int
}

// CurrentToolsVersion is the newest manifest format this build understands.
var CurrentToolsVersion = ToolsVersion{Major: 6, Minor: 1}

// MinimumToolsVersion is the oldest manifest format still accepted.
var MinimumToolsVersion = ToolsVersion{Major: 5, Minor: 0}

const toolsVersionPrefix = "// swift-tools-version:"

var toolsVersionRegex = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?$`)

var ErrMissingToolsVersion = fmt.Errorf("missing tools-version header. The first line must have the form %q", toolsVersionPrefix+"<major>.<minor>[.<patch>]")

// UnsupportedToolsVersionError is raised when a manifest requires a newer
// engine than this one.
type UnsupportedToolsVersionError struct {
	Declared ToolsVersion
	Current  ToolsVersion
}

func (e *UnsupportedToolsVersionError) Error() string {
	return fmt.Sprintf("package requires tools-version %s but the current tools-version is %s", e.Declared, e.Current)
}

// RoundingPolicy controls how many components the header emits.
type RoundingPolicy string

const (
	// RoundingAutomatic keeps the patch component only when it is non-zero.
	RoundingAutomatic RoundingPolicy = "automatic"
	// RoundingMinor always truncates to two components.
	RoundingMinor RoundingPolicy = "minor"
	// RoundingPatch always emits three components.
	RoundingPatch RoundingPolicy = "patch"
)

func (v ToolsVersion) String() string {
	return v.Render(RoundingAutomatic)
}

func (v ToolsVersion) Render(policy RoundingPolicy) string {
	switch policy {
	case RoundingMinor:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	case RoundingPatch:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	default:
		if v.Patch != 0 {
			return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
		}
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
}

// Header renders the complete first line of a manifest source file.
func (v ToolsVersion) Header(policy RoundingPolicy) string {
	return toolsVersionPrefix + v.Render(policy)
}

func (v ToolsVersion) Compare(other ToolsVersion) int {
	if v.Major != other.Major {
		return v.Major - other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor - other.Minor
	}
	return v.Patch - other.Patch
}

// ParseToolsVersion parses the numeric part of the header, e.g. "5.9" or "5.9.1".
func ParseToolsVersion(s string) (ToolsVersion, error) {
	m := toolsVersionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ToolsVersion{}, fmt.Errorf("invalid tools-version %q. expected '<major>.<minor>[.<patch>]'", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch := 0
	if m[3] != "" {
		patch, _ = strconv.Atoi(m[3])
	}
	return ToolsVersion{Major: major, Minor: minor, Patch: patch}, nil
}

// SplitToolsVersionHeader separates the tools-version header from the
// manifest body. The header must be the first line.
func SplitToolsVersionHeader(contents []byte) (ToolsVersion, []byte, error) {
	header, body, _ := strings.Cut(string(contents), "\n")
	if !strings.HasPrefix(strings.TrimSpace(header), toolsVersionPrefix) {
		return ToolsVersion{}, nil, ErrMissingToolsVersion
	}

	raw := strings.TrimPrefix(strings.TrimSpace(header), toolsVersionPrefix)
	v, err := ParseToolsVersion(raw)
	if err != nil {
		return ToolsVersion{}, nil, err
	}
	return v, []byte(body), nil
}
