// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package traits computes, for a given root configuration, the transitive
// closure of enabled traits across the dependency graph, and decides which
// trait-guarded dependency edges survive.
package traits

import (
	"fmt"
	"strings"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/utils/stringset"
	"github.com/samber/lo"
)

// Configuration is the root-session trait input. Exactly one policy is
// active per resolution.
type Configuration struct {
	// EnabledTraits, when non-nil, replaces the default-trait activation
	// for the roots. nil means "activate each root's default trait".
	EnabledTraits []string
	// EnableAllTraits short-circuits all trait gating to "on".
	EnableAllTraits bool
}

// EnabledTraitsMap is the resolved output: the set of traits active for
// each package, merged across all parents that depend on it.
type EnabledTraitsMap map[identity.PackageIdentity]stringset.StringSet

// UndeclaredTraitError is the hard validation error raised when a condition,
// configuration or edge names a trait the target package does not declare.
type UndeclaredTraitError struct {
	Trait   string
	Package string
	// DeclaredTraits lists the valid names, including the implicit default.
	DeclaredTraits []string
}

func (e *UndeclaredTraitError) Error() string {
	return fmt.Sprintf("trait %q is not declared by package %q; declared traits are: [%s]",
		e.Trait, e.Package, strings.Join(e.DeclaredTraits, ", "))
}

// Closure expands a seed of trait names to the fixed point of the "enables"
// relation within one package. Every encountered name must be declared.
func Closure(m *manifest.Manifest, seed []string) (stringset.StringSet, error) {
	active := stringset.New()
	frontier := seed
	for len(frontier) > 0 {
		name := frontier[0]
		frontier = frontier[1:]
		if active.Contains(name) {
			continue
		}
		t, ok := m.TraitByName(name)
		if !ok {
			return nil, &UndeclaredTraitError{Trait: name, Package: m.DisplayName, DeclaredTraits: m.DeclaredTraitNames()}
		}
		active.Add(name)
		frontier = append(frontier, t.EnabledTraits...)
	}
	return active, nil
}

// AllDeclared is the closure used under EnableAllTraits.
func AllDeclared(m *manifest.Manifest) stringset.StringSet {
	return stringset.New(m.DeclaredTraitNames()...)
}

// RootActiveSet seeds a root package's active traits from the configuration.
// An explicitly supplied enabled set replaces the default-trait activation
// for that root.
func RootActiveSet(m *manifest.Manifest, config Configuration) (stringset.StringSet, error) {
	if config.EnableAllTraits {
		return AllDeclared(m), nil
	}
	if config.EnabledTraits != nil {
		return Closure(m, config.EnabledTraits)
	}
	if _, ok := m.TraitByName(manifest.DefaultTraitName); ok {
		return Closure(m, []string{manifest.DefaultTraitName})
	}
	return stringset.New(), nil
}

// RootActiveSetAmong seeds one root of a multi-root session. Configured
// trait names are validated against the union of all roots, so each root
// activates only the configured names it declares itself.
func RootActiveSetAmong(m *manifest.Manifest, config Configuration) (stringset.StringSet, error) {
	if config.EnabledTraits != nil && !config.EnableAllTraits {
		declared := lo.Filter(config.EnabledTraits, func(name string, _ int) bool {
			_, ok := m.TraitByName(name)
			return ok
		})
		return Closure(m, declared)
	}
	return RootActiveSet(m, config)
}

// EdgeIncluded decides whether a trait-guarded edge survives: it does iff
// the declaring package has at least one of the condition's traits active.
// Condition traits must be declared by the declaring package.
func EdgeIncluded(parent *manifest.Manifest, cond *manifest.Condition, parentActive stringset.StringSet, enableAll bool) (bool, error) {
	if cond == nil || len(cond.Traits) == 0 {
		return true, nil
	}
	for _, name := range cond.Traits {
		if _, ok := parent.TraitByName(name); !ok {
			return false, &UndeclaredTraitError{Trait: name, Package: parent.DisplayName, DeclaredTraits: parent.DeclaredTraitNames()}
		}
	}
	if enableAll {
		return true, nil
	}
	return parentActive.ContainsAny(cond.Traits...), nil
}

// ChildSeed is what one included edge contributes to the child's active set:
// the traits explicitly requested on the edge, or the child's default-trait
// closure when the edge requests nothing. An explicit empty list contributes
// nothing but does not suppress other parents' contributions.
func ChildSeed(dep manifest.Dependency, child *manifest.Manifest, enableAll bool) (stringset.StringSet, error) {
	if enableAll {
		return AllDeclared(child), nil
	}
	if dep.EnabledTraits != nil {
		for _, name := range dep.EnabledTraits {
			if _, ok := child.TraitByName(name); !ok {
				return nil, &UndeclaredTraitError{Trait: name, Package: child.DisplayName, DeclaredTraits: child.DeclaredTraitNames()}
			}
		}
		return Closure(child, dep.EnabledTraits)
	}
	if _, ok := child.TraitByName(manifest.DefaultTraitName); ok {
		return Closure(child, []string{manifest.DefaultTraitName})
	}
	return stringset.New(), nil
}
