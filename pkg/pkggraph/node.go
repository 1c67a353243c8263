// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pkggraph builds a consistent package graph from a set of root
// manifests plus transitive dependencies, detecting identity collisions,
// location conflicts and duplicate products along the way.
package pkggraph

import (
	"slices"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/utils/stringset"
	"github.com/samber/lo"
)

// ResolvedNode is one package in the output graph. Dependencies are
// back-references by identity, never literal pointers, so the graph is a
// DAG by construction.
type ResolvedNode struct {
	PackageRef    identity.PackageReference
	Manifest      *manifest.Manifest
	EnabledTraits stringset.StringSet
	Dependencies  []identity.PackageIdentity
}

// Constraint is one contribution to a package's version window, recorded
// with the package that declared it for diagnostics.
type Constraint struct {
	Requirement manifest.Requirement
	DeclaredBy  identity.PackageIdentity
}

// Graph is the resolved package DAG plus the version constraints gathered
// while walking it.
type Graph struct {
	Roots []identity.PackageIdentity
	Nodes map[identity.PackageIdentity]*ResolvedNode
	// Constraints holds, per non-root identity, every requirement that some
	// parent declared on it.
	Constraints map[identity.PackageIdentity][]Constraint
}

func (g *Graph) Node(id identity.PackageIdentity) (*ResolvedNode, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// Identities lists every resolved identity in lexicographic order.
func (g *Graph) Identities() []identity.PackageIdentity {
	ids := lo.Keys(g.Nodes)
	slices.Sort(ids)
	return ids
}

// NonRootIdentities lists resolved identities excluding the roots, sorted.
func (g *Graph) NonRootIdentities() []identity.PackageIdentity {
	return lo.Filter(g.Identities(), func(id identity.PackageIdentity, _ int) bool {
		return !slices.Contains(g.Roots, id)
	})
}
