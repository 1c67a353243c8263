// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"
)

// RequirementKind is the closed set of version requirement shapes a
// dependency declaration can carry.
type RequirementKind string

const (
	RequirementExact         RequirementKind = "exact"
	RequirementRange         RequirementKind = "range"
	RequirementBranch        RequirementKind = "branch"
	RequirementRevision      RequirementKind = "revision"
	RequirementUpToNextMajor RequirementKind = "upToNextMajor"
	RequirementUpToNextMinor RequirementKind = "upToNextMinor"
)

// Requirement is one dependency's version window. Branch and revision
// requirements never participate in version-range algebra; they are taken
// as-is and conflicts between them are detected structurally.
type Requirement struct {
	Kind RequirementKind

	// Version is set for exact, upToNextMajor and upToNextMinor.
	Version *SemVer
	// Lower/Upper bound a half-open range [Lower, Upper).
	Lower, Upper *SemVer
	// Branch / Revision are set for their respective kinds.
	Branch   string
	Revision string
}

func Exact(v string) Requirement {
	return Requirement{Kind: RequirementExact, Version: MustSemVer(v)}
}

func Range(lower, upper string) Requirement {
	return Requirement{Kind: RequirementRange, Lower: MustSemVer(lower), Upper: MustSemVer(upper)}
}

func UpToNextMajor(from string) Requirement {
	return Requirement{Kind: RequirementUpToNextMajor, Version: MustSemVer(from)}
}

func UpToNextMinor(from string) Requirement {
	return Requirement{Kind: RequirementUpToNextMinor, Version: MustSemVer(from)}
}

func Branch(name string) Requirement {
	return Requirement{Kind: RequirementBranch, Branch: name}
}

func Revision(rev string) Requirement {
	return Requirement{Kind: RequirementRevision, Revision: rev}
}

// IsVersionBased reports whether the requirement participates in version
// algebra (everything except branch and revision).
func (r Requirement) IsVersionBased() bool {
	switch r.Kind {
	case RequirementBranch, RequirementRevision:
		return false
	case RequirementExact, RequirementRange, RequirementUpToNextMajor, RequirementUpToNextMinor:
		return true
	}
	return false
}

// Bounds normalizes a version-based requirement to a half-open [lower, upper)
// window. Exact yields [v, v']; v' being the next patch.
func (r Requirement) Bounds() (lower, upper *semver.Version, err error) {
	switch r.Kind {
	case RequirementExact:
		v := r.Version.Value()
		next := v.IncPatch()
		return v, &next, nil
	case RequirementRange:
		return r.Lower.Value(), r.Upper.Value(), nil
	case RequirementUpToNextMajor:
		v := r.Version.Value()
		next := v.IncMajor()
		return v, &next, nil
	case RequirementUpToNextMinor:
		v := r.Version.Value()
		next := v.IncMinor()
		return v, &next, nil
	case RequirementBranch, RequirementRevision:
		return nil, nil, fmt.Errorf("requirement %s has no version bounds", r.Kind)
	}
	return nil, nil, fmt.Errorf("unknown requirement kind %q", r.Kind)
}

// Satisfies reports whether the given version falls in the requirement's window.
func (r Requirement) Satisfies(v *semver.Version) (bool, error) {
	lower, upper, err := r.Bounds()
	if err != nil {
		return false, err
	}
	return v.Compare(lower) >= 0 && v.Compare(upper) < 0, nil
}

func (r Requirement) String() string {
	switch r.Kind {
	case RequirementExact:
		return r.Version.String()
	case RequirementRange:
		return fmt.Sprintf("%s..<%s", r.Lower, r.Upper)
	case RequirementUpToNextMajor:
		next := r.Version.Value().IncMajor()
		return fmt.Sprintf("%s..<%s", r.Version, next.String())
	case RequirementUpToNextMinor:
		next := r.Version.Value().IncMinor()
		return fmt.Sprintf("%s..<%s", r.Version, next.String())
	case RequirementBranch:
		return "branch " + r.Branch
	case RequirementRevision:
		return "revision " + r.Revision
	}
	return string(r.Kind)
}

type requirementDoc struct {
	Exact         *SemVer `yaml:"exact,omitempty"`
	From          *SemVer `yaml:"from,omitempty"`
	UpToNextMinor *SemVer `yaml:"upToNextMinorFrom,omitempty"`
	Branch        string  `yaml:"branch,omitempty"`
	Revision      string  `yaml:"revision,omitempty"`
	Range         *struct {
		Lower *SemVer `yaml:"lowerBound"`
		Upper *SemVer `yaml:"upperBound"`
	} `yaml:"range,omitempty"`
}

func (r Requirement) MarshalYAML() ([]byte, error) {
	doc := requirementDoc{}
	switch r.Kind {
	case RequirementExact:
		doc.Exact = r.Version
	case RequirementUpToNextMajor:
		doc.From = r.Version
	case RequirementUpToNextMinor:
		doc.UpToNextMinor = r.Version
	case RequirementBranch:
		doc.Branch = r.Branch
	case RequirementRevision:
		doc.Revision = r.Revision
	case RequirementRange:
		doc.Range = &struct {
			Lower *SemVer `yaml:"lowerBound"`
			Upper *SemVer `yaml:"upperBound"`
		}{Lower: r.Lower, Upper: r.Upper}
	default:
		return nil, fmt.Errorf("unknown requirement kind %q", r.Kind)
	}
	return yaml.Marshal(doc)
}

func (r *Requirement) UnmarshalYAML(data []byte) error {
	var doc requirementDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	switch {
	case doc.Exact != nil:
		*r = Requirement{Kind: RequirementExact, Version: doc.Exact}
	case doc.From != nil:
		*r = Requirement{Kind: RequirementUpToNextMajor, Version: doc.From}
	case doc.UpToNextMinor != nil:
		*r = Requirement{Kind: RequirementUpToNextMinor, Version: doc.UpToNextMinor}
	case doc.Branch != "":
		*r = Requirement{Kind: RequirementBranch, Branch: doc.Branch}
	case doc.Revision != "":
		*r = Requirement{Kind: RequirementRevision, Revision: doc.Revision}
	case doc.Range != nil:
		*r = Requirement{Kind: RequirementRange, Lower: doc.Range.Lower, Upper: doc.Range.Upper}
	default:
		return fmt.Errorf("dependency requirement must set one of 'exact', 'from', 'upToNextMinorFrom', 'branch', 'revision', 'range'")
	}
	return nil
}

var _ yaml.BytesMarshaler = Requirement{}
var _ yaml.BytesUnmarshaler = (*Requirement)(nil)
