// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package manifest holds the parsed, language-agnostic representation of one
// package's declaration. A Manifest is immutable once loaded.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/schema"
	"github.com/goccy/go-yaml"
	"github.com/samber/lo"
)

const (
	PackageKind       = "Package"
	PackageVersion    = "v1"
	PackageAPIVersion = schema.APIGroup + "/" + PackageVersion

	// FileName is the manifest file name inside a package directory.
	FileName = "package.yaml"

	// DefaultTraitName is the implicit trait active unless a configuration
	// disables defaults. It is stored as an ordinary trait entry so the
	// closure algorithm has a single path.
	DefaultTraitName = "default"
)

var ErrInvalidManifest = fmt.Errorf("invalid package manifest")

type Manifest struct {
	AbsolutePath string       `yaml:"-"`
	ToolsVersion ToolsVersion `yaml:"-"`

	schema.ManifestMeta `yaml:",inline"`

	DisplayName         string     `yaml:"name"`
	DefaultLocalization string     `yaml:"defaultLocalization,omitempty"`
	Platforms           []Platform `yaml:"platforms,omitempty"`
	PkgConfig           string     `yaml:"pkgConfig,omitempty"`
	Providers           []Provider `yaml:"providers,omitempty"`

	Products     []Product    `yaml:"products,omitempty"`
	Dependencies []Dependency `yaml:"dependencies,omitempty"`
	Targets      []Target     `yaml:"targets,omitempty"`
	Traits       []Trait      `yaml:"traits,omitempty"`

	SwiftLanguageVersions []string `yaml:"swiftLanguageVersions,omitempty"`
	CLanguageStandard     string   `yaml:"cLanguageStandard,omitempty"`
	CxxLanguageStandard   string   `yaml:"cxxLanguageStandard,omitempty"`
}

type Platform struct {
	Name       string `yaml:"name"`
	MinVersion string `yaml:"minVersion,omitempty"`
}

// Provider names a system package provider, e.g. brew or apt, with the
// package names to install through it.
type Provider struct {
	Name     string   `yaml:"name"`
	Packages []string `yaml:"packages"`
}

type ProductType string

const (
	ProductLibrary    ProductType = "library"
	ProductExecutable ProductType = "executable"
	ProductPlugin     ProductType = "plugin"
)

type Product struct {
	Name    string      `yaml:"name"`
	Type    ProductType `yaml:"type"`
	Targets []string    `yaml:"targets,omitempty"`
}

type TargetType string

const (
	TargetRegular    TargetType = "regular"
	TargetExecutable TargetType = "executable"
	TargetTest       TargetType = "test"
	TargetBinary     TargetType = "binary"
)

type Target struct {
	Name         string             `yaml:"name"`
	Type         TargetType         `yaml:"type,omitempty"`
	Dependencies []TargetDependency `yaml:"dependencies,omitempty"`

	// Binary targets carry either a remote archive or a local path.
	URL      string `yaml:"url,omitempty"`
	Checksum string `yaml:"checksum,omitempty"`
	Path     string `yaml:"path,omitempty"`
}

// TargetDependency names either a sibling target or a product of a declared
// package dependency, optionally gated by a trait condition.
type TargetDependency struct {
	Target    string     `yaml:"target,omitempty"`
	Product   string     `yaml:"product,omitempty"`
	Package   string     `yaml:"package,omitempty"`
	Condition *Condition `yaml:"condition,omitempty"`
}

// Condition gates an edge: the edge is included iff at least one listed
// trait is active on the declaring package.
type Condition struct {
	Traits []string `yaml:"traits,omitempty"`
}

// Dependency is one declared package dependency. Exactly one of URL, Path
// and ID is set.
type Dependency struct {
	URL  string `yaml:"url,omitempty"`
	Path string `yaml:"path,omitempty"`
	// ID is a registry coordinate of the form "scope.name".
	ID string `yaml:"id,omitempty"`

	Requirement *Requirement `yaml:"requirement,omitempty"`

	// EnabledTraits lists the traits this edge requests on the child.
	// nil means "the child's defaults"; an explicit empty list means none.
	EnabledTraits []string `yaml:"traits,omitempty"`

	// ProductFilter restricts which child products this package uses;
	// empty means all.
	ProductFilter []string `yaml:"products,omitempty"`

	Condition *Condition `yaml:"condition,omitempty"`
}

type Trait struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description,omitempty"`
	EnabledTraits []string `yaml:"enabledTraits,omitempty"`
}

// Locator is the raw declared locator, before identity resolution.
func (d Dependency) Locator() string {
	switch {
	case d.URL != "":
		return d.URL
	case d.Path != "":
		return d.Path
	default:
		return d.ID
	}
}

// Reference derives the package reference a declaration points at. The
// manifest's own directory anchors relative paths.
func (d Dependency) Reference(manifestDir string) (identity.PackageReference, error) {
	switch {
	case d.URL != "":
		return identity.NewRemoteSourceControlReference(d.URL), nil
	case d.ID != "":
		id, err := identity.ParseRegistryIdentity(d.ID)
		if err != nil {
			return identity.PackageReference{}, err
		}
		return identity.NewRegistryReference(id), nil
	case d.Path != "":
		p := d.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(manifestDir, p)
		}
		return identity.NewFileSystemReference(filepath.Clean(p)), nil
	}
	return identity.PackageReference{}, fmt.Errorf("%w: dependency must set one of 'url', 'path', 'id'", ErrInvalidManifest)
}

func Load(filePath string) (*Manifest, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	bytes, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return LoadContents(bytes, abs)
}

func LoadContents(contents []byte, absPath string) (*Manifest, error) {
	toolsVersion, body, err := SplitToolsVersionHeader(contents)
	if err != nil {
		// keep the header error in the chain so callers can match
		// ErrMissingToolsVersion as well as ErrInvalidManifest
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if toolsVersion.Compare(CurrentToolsVersion) > 0 {
		return nil, &UnsupportedToolsVersionError{Declared: toolsVersion, Current: CurrentToolsVersion}
	}
	if toolsVersion.Compare(MinimumToolsVersion) < 0 {
		return nil, fmt.Errorf("%w: tools-version %s is no longer supported. minimum is %s", ErrInvalidManifest, toolsVersion, MinimumToolsVersion)
	}

	var m Manifest
	if err := yaml.UnmarshalWithOptions(body, &m, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidManifest, err.Error())
	}

	s := schema.ManifestMeta{
		APIVersion: PackageAPIVersion,
		Kind:       PackageKind,
	}
	if err := s.ValidateSchema(m.ManifestMeta); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidManifest, err.Error())
	}

	m.ToolsVersion = toolsVersion
	m.AbsolutePath = absPath

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	var errs []string

	if m.DisplayName == "" {
		errs = append(errs, "missing required field 'name'")
	}

	if dup := firstDuplicate(lo.Map(m.Products, func(p Product, _ int) string { return p.Name })); dup != "" {
		errs = append(errs, fmt.Sprintf("duplicate product %q", dup))
	}
	if dup := firstDuplicate(lo.Map(m.Targets, func(t Target, _ int) string { return t.Name })); dup != "" {
		errs = append(errs, fmt.Sprintf("duplicate target %q", dup))
	}
	if dup := firstDuplicate(lo.Map(m.Traits, func(t Trait, _ int) string { return t.Name })); dup != "" {
		errs = append(errs, fmt.Sprintf("duplicate trait %q", dup))
	}

	for _, d := range m.Dependencies {
		set := lo.Count([]bool{d.URL != "", d.Path != "", d.ID != ""}, true)
		if set != 1 {
			errs = append(errs, fmt.Sprintf("dependency %q must set exactly one of 'url', 'path', 'id'", d.Locator()))
			continue
		}
		if d.Path != "" && d.Requirement != nil {
			errs = append(errs, fmt.Sprintf("dependency %q is path-based and cannot carry a version requirement", d.Path))
		}
		if d.Path == "" && d.Requirement == nil {
			errs = append(errs, fmt.Sprintf("dependency %q is missing a version requirement", d.Locator()))
		}
	}

	for _, t := range m.Targets {
		if t.Type != TargetBinary && (t.URL != "" || t.Checksum != "") {
			errs = append(errs, fmt.Sprintf("target %q is not binary and cannot carry 'url' or 'checksum'", t.Name))
		}
		if t.Type == TargetBinary && t.URL == "" && t.Path == "" {
			errs = append(errs, fmt.Sprintf("binary target %q must set 'url' or 'path'", t.Name))
		}
		if t.Type == TargetBinary && t.URL != "" && t.Checksum == "" {
			errs = append(errs, fmt.Sprintf("binary target %q with a remote url must set 'checksum'", t.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w (%s): %s", ErrInvalidManifest, m.DisplayName, strings.Join(errs, "; "))
	}
	return nil
}

func firstDuplicate(names []string) string {
	seen := map[string]struct{}{}
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return n
		}
		seen[n] = struct{}{}
	}
	return ""
}

// DeclaredTraitNames lists every trait the package declares, including the
// implicit default whenever any trait is declared at all.
func (m *Manifest) DeclaredTraitNames() []string {
	names := lo.Map(m.Traits, func(t Trait, _ int) string { return t.Name })
	if len(names) > 0 && !slices.Contains(names, DefaultTraitName) {
		names = append(names, DefaultTraitName)
	}
	slices.Sort(names)
	return names
}

// TraitByName also answers a synthesized empty default when the package
// declares traits but no explicit one.
func (m *Manifest) TraitByName(name string) (Trait, bool) {
	for _, t := range m.Traits {
		if t.Name == name {
			return t, true
		}
	}
	if name == DefaultTraitName && len(m.Traits) > 0 {
		return Trait{Name: DefaultTraitName}, true
	}
	return Trait{}, false
}

func (m *Manifest) ProductNames() []string {
	return lo.Map(m.Products, func(p Product, _ int) string { return p.Name })
}

func (m *Manifest) TargetNames() []string {
	return lo.Map(m.Targets, func(t Target, _ int) string { return t.Name })
}

// BinaryTargets lists targets backed by prebuilt artifacts.
func (m *Manifest) BinaryTargets() []Target {
	return lo.Filter(m.Targets, func(t Target, _ int) bool { return t.Type == TargetBinary })
}
