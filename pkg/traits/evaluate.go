// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package traits

import (
	"path/filepath"
	"slices"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/utils/stringset"
)

// Universe gives the evaluator access to the loaded dependency graph.
type Universe interface {
	// ResolveDependency normalizes a declared dependency of the given
	// manifest into its canonical package reference.
	ResolveDependency(parent *manifest.Manifest, dep manifest.Dependency) (identity.PackageReference, error)
	// Manifest answers the loaded manifest for a reference.
	Manifest(ref identity.PackageReference) (*manifest.Manifest, error)
}

// Root is one root package of the resolution session.
type Root struct {
	Ref      identity.PackageReference
	Manifest *manifest.Manifest
}

// Result is the evaluator's output.
type Result struct {
	Enabled EnabledTraitsMap
	// IncludedDependencies holds, per package identity, the indices into
	// that manifest's Dependencies slice whose edges survived trait gating.
	IncludedDependencies map[identity.PackageIdentity][]int
}

// Included reports whether the given dependency index of a package survived.
func (r *Result) Included(id identity.PackageIdentity, depIndex int) bool {
	return slices.Contains(r.IncludedDependencies[id], depIndex)
}

// Evaluate walks the graph from the roots, accumulating each package's
// active-trait set as the union of all parents' contributions, and recording
// which trait-guarded edges are included. Packages are revisited whenever
// their active set grows; sets only grow, so the fixed point terminates.
func Evaluate(roots []Root, config Configuration, universe Universe) (*Result, error) {
	result := &Result{
		Enabled:              EnabledTraitsMap{},
		IncludedDependencies: map[identity.PackageIdentity][]int{},
	}

	type workItem struct {
		ref identity.PackageReference
		m   *manifest.Manifest
	}
	var queue []workItem

	// configured trait names are validated against the union of roots, so a
	// trait declared by any root may be named; seeding stays per-root
	if err := ValidateConfigured(roots, config); err != nil {
		return nil, err
	}

	for _, root := range roots {
		active, err := RootActiveSetAmong(root.Manifest, config)
		if err != nil {
			return nil, err
		}
		result.Enabled[root.Ref.Identity] = active
		queue = append(queue, workItem{ref: root.Ref, m: root.Manifest})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		parentActive := result.Enabled[item.ref.Identity]

		for i, dep := range item.m.Dependencies {
			included, err := EdgeIncluded(item.m, dep.Condition, parentActive, config.EnableAllTraits)
			if err != nil {
				return nil, err
			}
			if !included {
				continue
			}

			childRef, err := universe.ResolveDependency(item.m, dep)
			if err != nil {
				return nil, err
			}
			child, err := universe.Manifest(childRef)
			if err != nil {
				return nil, err
			}

			seed, err := ChildSeed(dep, child, config.EnableAllTraits)
			if err != nil {
				return nil, err
			}

			if !slices.Contains(result.IncludedDependencies[item.ref.Identity], i) {
				result.IncludedDependencies[item.ref.Identity] = append(result.IncludedDependencies[item.ref.Identity], i)
			}

			existing, seen := result.Enabled[childRef.Identity]
			if !seen {
				result.Enabled[childRef.Identity] = seed
				queue = append(queue, workItem{ref: childRef, m: child})
				continue
			}
			if !seed.IsSubsetOf(existing) {
				result.Enabled[childRef.Identity] = existing.Union(seed)
				queue = append(queue, workItem{ref: childRef, m: child})
			}
		}
	}

	for id := range result.IncludedDependencies {
		slices.Sort(result.IncludedDependencies[id])
	}
	return result, nil
}

// manifestDir is the directory anchoring a manifest's relative path deps.
func manifestDir(m *manifest.Manifest) string {
	return filepath.Dir(m.AbsolutePath)
}

// DefaultUniverse resolves dependencies with an identity resolver over an
// in-memory manifest table; the graph builder supplies a loading one.
type DefaultUniverse struct {
	Resolver  *identity.Resolver
	Manifests map[identity.PackageIdentity]*manifest.Manifest
}

func (u *DefaultUniverse) ResolveDependency(parent *manifest.Manifest, dep manifest.Dependency) (identity.PackageReference, error) {
	ref, err := dep.Reference(manifestDir(parent))
	if err != nil {
		return identity.PackageReference{}, err
	}
	return u.Resolver.Resolve(ref), nil
}

func (u *DefaultUniverse) Manifest(ref identity.PackageReference) (*manifest.Manifest, error) {
	m, ok := u.Manifests[ref.Identity]
	if !ok {
		return nil, &UnknownPackageError{Identity: ref.Identity}
	}
	return m, nil
}

var _ Universe = (*DefaultUniverse)(nil)

type UnknownPackageError struct {
	Identity identity.PackageIdentity
}

func (e *UnknownPackageError) Error() string {
	return "no manifest loaded for package " + e.Identity.String()
}

// ValidateConfigured checks that every trait named by the configuration is
// declared by at least one root; the hard error carries the offending trait
// and the declared names.
func ValidateConfigured(roots []Root, config Configuration) error {
	for _, name := range config.EnabledTraits {
		declared := false
		for _, root := range roots {
			if _, ok := root.Manifest.TraitByName(name); ok {
				declared = true
				break
			}
		}
		if !declared {
			var names []string
			for _, root := range roots {
				names = append(names, root.Manifest.DeclaredTraitNames()...)
			}
			pkg := ""
			if len(roots) > 0 {
				pkg = roots[0].Manifest.DisplayName
			}
			return &UndeclaredTraitError{Trait: name, Package: pkg, DeclaredTraits: stringset.New(names...).Sorted()}
		}
	}
	return nil
}
