// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package versionresolver turns the graph builder's accumulated requirements
// into concrete version selections. Branch and revision requirements are
// taken structurally; version-based requirements are intersected and handed
// to a solving primitive.
package versionresolver

import (
	"fmt"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/pkggraph"
	"github.com/Masterminds/semver/v3"
)

// ConstraintSet is one package's merged requirement: either a structural
// pin (branch or revision, never both) or a version window narrowed by
// every contributing requirement.
type ConstraintSet struct {
	Identity identity.PackageIdentity
	// Contributions preserves each declared requirement with its declarer,
	// for conflict explanations.
	Contributions []pkggraph.Constraint

	// Branch and Revision are set for structural requirements.
	Branch   string
	Revision string

	// Lower and Upper bound the intersected window for version-based
	// requirements, half-open. nil when the set is structural.
	Lower *semver.Version
	Upper *semver.Version
	// Exact, when non-nil, is the single admissible version.
	Exact *semver.Version
}

func (c *ConstraintSet) IsStructural() bool {
	return c.Branch != "" || c.Revision != ""
}

// Admits reports whether a version falls in the intersected window.
func (c *ConstraintSet) Admits(v *semver.Version) bool {
	if c.IsStructural() {
		return false
	}
	if c.Exact != nil && !v.Equal(c.Exact) {
		return false
	}
	return v.Compare(c.Lower) >= 0 && v.Compare(c.Upper) < 0
}

// Assemble merges the per-identity constraints gathered during the graph
// walk. Mixing structural and version-based requirements on one identity,
// or two different branches or revisions, is a conflict detected here
// without any version algebra.
func Assemble(id identity.PackageIdentity, constraints []pkggraph.Constraint) (*ConstraintSet, error) {
	set := &ConstraintSet{Identity: id, Contributions: constraints}

	for _, c := range constraints {
		switch c.Requirement.Kind {
		case manifest.RequirementBranch:
			if set.Branch != "" && set.Branch != c.Requirement.Branch {
				return nil, newConflict(id, constraints)
			}
			set.Branch = c.Requirement.Branch
		case manifest.RequirementRevision:
			if set.Revision != "" && set.Revision != c.Requirement.Revision {
				return nil, newConflict(id, constraints)
			}
			set.Revision = c.Requirement.Revision
		}
	}
	if set.Branch != "" && set.Revision != "" {
		return nil, newConflict(id, constraints)
	}

	for _, c := range constraints {
		if !c.Requirement.IsVersionBased() {
			continue
		}
		if set.IsStructural() {
			// a branch/revision pin cannot be narrowed by a version range
			return nil, newConflict(id, constraints)
		}
		lower, upper, err := c.Requirement.Bounds()
		if err != nil {
			return nil, fmt.Errorf("constraint on %q: %w", id, err)
		}
		if set.Lower == nil || lower.Compare(set.Lower) > 0 {
			set.Lower = lower
		}
		if set.Upper == nil || upper.Compare(set.Upper) < 0 {
			set.Upper = upper
		}
		if c.Requirement.Kind == manifest.RequirementExact {
			exact := c.Requirement.Version.Value()
			if set.Exact != nil && !set.Exact.Equal(exact) {
				return nil, newConflict(id, constraints)
			}
			set.Exact = exact
		}
	}

	if !set.IsStructural() {
		if set.Lower == nil {
			return nil, fmt.Errorf("no requirement recorded for %q", id)
		}
		if set.Lower.Compare(set.Upper) >= 0 {
			return nil, newConflict(id, constraints)
		}
		if set.Exact != nil && (set.Exact.Compare(set.Lower) < 0 || set.Exact.Compare(set.Upper) >= 0) {
			return nil, newConflict(id, constraints)
		}
	}

	return set, nil
}
