// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package versionresolver

import (
	"context"
	"errors"
	"log/slog"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/pkggraph"
	"github.com/Masterminds/semver/v3"
)

// VersionLister enumerates the published versions of a package, e.g. from
// registry releases or source-control semver tags.
type VersionLister interface {
	Versions(ctx context.Context, ref identity.PackageReference) ([]*semver.Version, error)
}

// RevisionResolver pins a branch name to a concrete revision.
type RevisionResolver interface {
	ResolveBranch(ctx context.Context, ref identity.PackageReference, branch string) (string, error)
}

// Selection is the resolved state of one package.
type Selection struct {
	Ref      identity.PackageReference
	Version  *semver.Version
	Branch   string
	Revision string
}

// Solution maps every version-managed identity in the graph to its selection.
type Solution map[identity.PackageIdentity]Selection

// Pinned is a previously-recorded selection, fed back in for the fast path.
type Pinned struct {
	Identity identity.PackageIdentity
	Version  *semver.Version
	Branch   string
	Revision string
}

// Solver is the solving primitive: pick a version out of the published
// ones that the constraint set admits. ok is false when nothing qualifies.
type Solver interface {
	Pick(set *ConstraintSet, available []*semver.Version) (picked *semver.Version, ok bool)
}

// Greedy picks the highest admissible version. Deterministic: equal inputs
// always pick the same version.
type Greedy struct{}

func (Greedy) Pick(set *ConstraintSet, available []*semver.Version) (*semver.Version, bool) {
	var best *semver.Version
	for _, v := range available {
		if !set.Admits(v) {
			continue
		}
		if best == nil || v.Compare(best) > 0 {
			best = v
		}
	}
	return best, best != nil
}

// Resolver orchestrates: assemble constraint sets from the graph, try the
// pins fast path, otherwise solve package by package.
type Resolver struct {
	solver   Solver
	versions VersionLister
	branches RevisionResolver
}

func New(solver Solver, versions VersionLister, branches RevisionResolver) *Resolver {
	if solver == nil {
		solver = Greedy{}
	}
	return &Resolver{solver: solver, versions: versions, branches: branches}
}

// Resolve computes a solution for every constrained identity in the graph.
// When every such identity carries an existing pin that still satisfies its
// merged constraints, the pins are authoritative and no metadata is fetched.
func (r *Resolver) Resolve(ctx context.Context, graph *pkggraph.Graph, existing []Pinned) (Solution, error) {
	sets, err := r.assembleAll(graph)
	if err != nil {
		return nil, err
	}

	if solution, ok := r.fastPath(graph, sets, existing); ok {
		slog.Debug("existing pins satisfy all constraints, skipping resolution", "pins", len(solution))
		return solution, nil
	}

	solution := Solution{}
	var retrieval []error
	for _, id := range graph.NonRootIdentities() {
		set, ok := sets[id]
		if !ok {
			continue
		}
		selection, err := r.solveOne(ctx, graph.Nodes[id].PackageRef, set)
		if err != nil {
			var conflict *ResolutionError
			if errors.As(err, &conflict) {
				// unsatisfiability trumps retrieval noise: one diagnostic
				return nil, conflict
			}
			// keep resolving siblings; surface retrieval failures together
			retrieval = append(retrieval, err)
			continue
		}
		solution[id] = selection
	}
	if len(retrieval) > 0 {
		return nil, errors.Join(retrieval...)
	}
	return solution, nil
}

// assembleAll merges constraints per identity, skipping packages that are
// not version-managed (roots, filesystem and local checkouts).
func (r *Resolver) assembleAll(graph *pkggraph.Graph) (map[identity.PackageIdentity]*ConstraintSet, error) {
	sets := map[identity.PackageIdentity]*ConstraintSet{}
	for _, id := range graph.NonRootIdentities() {
		node := graph.Nodes[id]
		switch node.PackageRef.Kind {
		case identity.KindRemoteSourceControl, identity.KindRegistry:
		default:
			continue
		}
		constraints := graph.Constraints[id]
		if len(constraints) == 0 {
			continue
		}
		set, err := Assemble(id, constraints)
		if err != nil {
			return nil, err
		}
		sets[id] = set
	}
	return sets, nil
}

func (r *Resolver) fastPath(graph *pkggraph.Graph, sets map[identity.PackageIdentity]*ConstraintSet, existing []Pinned) (Solution, bool) {
	if len(existing) == 0 || len(sets) == 0 {
		return nil, false
	}
	byIdentity := map[identity.PackageIdentity]Pinned{}
	for _, p := range existing {
		byIdentity[p.Identity] = p
	}

	solution := Solution{}
	for id, set := range sets {
		pin, ok := byIdentity[id]
		if !ok || !pinSatisfies(pin, set) {
			return nil, false
		}
		solution[id] = Selection{
			Ref:      graph.Nodes[id].PackageRef,
			Version:  pin.Version,
			Branch:   pin.Branch,
			Revision: pin.Revision,
		}
	}
	return solution, true
}

func pinSatisfies(pin Pinned, set *ConstraintSet) bool {
	if set.Branch != "" {
		return pin.Branch == set.Branch && pin.Revision != ""
	}
	if set.Revision != "" {
		return pin.Revision == set.Revision
	}
	return pin.Version != nil && set.Admits(pin.Version)
}

func (r *Resolver) solveOne(ctx context.Context, ref identity.PackageReference, set *ConstraintSet) (Selection, error) {
	switch {
	case set.Branch != "":
		revision, err := r.branches.ResolveBranch(ctx, ref, set.Branch)
		if err != nil {
			return Selection{}, &RetrievalError{Ref: ref, Cause: err}
		}
		return Selection{Ref: ref, Branch: set.Branch, Revision: revision}, nil
	case set.Revision != "":
		return Selection{Ref: ref, Revision: set.Revision}, nil
	}

	available, err := r.versions.Versions(ctx, ref)
	if err != nil {
		return Selection{}, &RetrievalError{Ref: ref, Cause: err}
	}
	picked, ok := r.solver.Pick(set, available)
	if !ok {
		return Selection{}, &ResolutionError{
			Identity:      set.Identity,
			Contributions: set.Contributions,
			Available:     available,
		}
	}
	return Selection{Ref: ref, Version: picked}, nil
}
