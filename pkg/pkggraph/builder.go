// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pkggraph

import (
	"context"
	"path/filepath"
	"slices"

	"daml.com/x/wpm/pkg/diagnostics"
	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/traits"
	"daml.com/x/wpm/pkg/utils/stringset"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Resolver           *identity.Resolver
	TraitConfiguration traits.Configuration
	// PruneDependencies additionally drops dependencies none of whose
	// filtered products is used by any active target edge of the parent.
	PruneDependencies bool
	// Sink receives non-fatal findings. Defaults to logging.
	Sink diagnostics.Sink
	// Overrides substitute a local package for any dependency that resolves
	// to the same identity.
	Overrides []traits.Root
}

type Builder struct {
	opts   Options
	loader *memoLoader
}

func NewBuilder(loader ManifestLoader, opts Options) *Builder {
	if opts.Resolver == nil {
		opts.Resolver = identity.NewResolver(nil, identity.SwizzleDisabled)
	}
	if opts.Sink == nil {
		opts.Sink = diagnostics.SlogSink{}
	}
	return &Builder{opts: opts, loader: newMemoLoader(loader)}
}

// Build walks breadth-first from the root manifests, loading each distinct
// (identity, version window) once, gating edges by active traits, and
// validating the result. Loads for sibling identities run concurrently;
// merging into the shared frontier happens on a single goroutine.
func (b *Builder) Build(ctx context.Context, roots []traits.Root) (*Graph, error) {
	if err := traits.ValidateConfigured(roots, b.opts.TraitConfiguration); err != nil {
		return nil, err
	}

	graph := &Graph{
		Nodes:       map[identity.PackageIdentity]*ResolvedNode{},
		Constraints: map[identity.PackageIdentity][]Constraint{},
	}

	var queue []identity.PackageIdentity
	for _, root := range roots {
		active, err := traits.RootActiveSetAmong(root.Manifest, b.opts.TraitConfiguration)
		if err != nil {
			return nil, err
		}
		graph.Roots = append(graph.Roots, root.Ref.Identity)
		graph.Nodes[root.Ref.Identity] = &ResolvedNode{
			PackageRef:    root.Ref,
			Manifest:      root.Manifest,
			EnabledTraits: active,
		}
		queue = append(queue, root.Ref.Identity)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		node := graph.Nodes[id]
		included, err := b.includedDependencies(node)
		if err != nil {
			return nil, err
		}

		childRefs, err := b.resolveChildren(graph, node, included)
		if err != nil {
			return nil, err
		}

		loaded, err := b.loadMissing(ctx, graph, node.Manifest, included, childRefs)
		if err != nil {
			return nil, err
		}

		for i, depIndex := range included {
			dep := node.Manifest.Dependencies[depIndex]
			childRef := childRefs[i]

			child, known := graph.Nodes[childRef.Identity]
			if !known {
				child = &ResolvedNode{
					PackageRef:    childRef,
					Manifest:      loaded[childRef.Identity],
					EnabledTraits: stringset.New(),
				}
				graph.Nodes[childRef.Identity] = child
			}

			if dep.Requirement != nil {
				constraint := Constraint{
					Requirement: *dep.Requirement,
					DeclaredBy:  id,
				}
				// a node re-expanded after trait growth must not restate
				// the constraints it already contributed
				dup := slices.ContainsFunc(graph.Constraints[childRef.Identity], func(c Constraint) bool {
					return c.DeclaredBy == constraint.DeclaredBy && c.Requirement.String() == constraint.Requirement.String()
				})
				if !dup {
					graph.Constraints[childRef.Identity] = append(graph.Constraints[childRef.Identity], constraint)
				}
			}
			if !slices.Contains(node.Dependencies, childRef.Identity) {
				node.Dependencies = append(node.Dependencies, childRef.Identity)
			}

			seed, err := traits.ChildSeed(dep, child.Manifest, b.opts.TraitConfiguration.EnableAllTraits)
			if err != nil {
				return nil, err
			}
			// re-expand on any growth of the child's active set, so
			// traits enabled by a later parent still propagate
			grown := !seed.IsSubsetOf(child.EnabledTraits)
			if grown {
				child.EnabledTraits = child.EnabledTraits.Union(seed)
			}
			if (!known || grown) && !slices.Contains(queue, childRef.Identity) {
				queue = append(queue, childRef.Identity)
			}
		}
	}

	if err := b.validate(graph); err != nil {
		return nil, err
	}
	return graph, nil
}

// includedDependencies applies trait gating and, when requested, product
// pruning to a node's declared dependencies, returning surviving indices.
func (b *Builder) includedDependencies(node *ResolvedNode) ([]int, error) {
	var included []int
	usedProducts, err := b.usedProducts(node)
	if err != nil {
		return nil, err
	}

	for i, dep := range node.Manifest.Dependencies {
		ok, err := traits.EdgeIncluded(node.Manifest, dep.Condition, node.EnabledTraits, b.opts.TraitConfiguration.EnableAllTraits)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if b.opts.PruneDependencies && len(dep.ProductFilter) > 0 && usedProducts != nil {
			if !usedProducts.ContainsAny(dep.ProductFilter...) {
				continue
			}
		}
		included = append(included, i)
	}
	return included, nil
}

// usedProducts collects the product names the node's targets actually use,
// honoring trait conditions on target dependencies. nil disables pruning
// for manifests that declare no targets at all.
func (b *Builder) usedProducts(node *ResolvedNode) (stringset.StringSet, error) {
	if len(node.Manifest.Targets) == 0 {
		return nil, nil
	}
	used := stringset.New()
	for _, t := range node.Manifest.Targets {
		for _, td := range t.Dependencies {
			if td.Product == "" {
				continue
			}
			ok, err := traits.EdgeIncluded(node.Manifest, td.Condition, node.EnabledTraits, b.opts.TraitConfiguration.EnableAllTraits)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			used.Add(td.Product)
		}
	}
	return used, nil
}

// resolveChildren normalizes each included dependency to its canonical
// reference, applying overrides and detecting identity conflicts.
func (b *Builder) resolveChildren(graph *Graph, node *ResolvedNode, included []int) ([]identity.PackageReference, error) {
	manifestDir := filepath.Dir(node.Manifest.AbsolutePath)
	refs := make([]identity.PackageReference, 0, len(included))
	seenThisLevel := map[identity.PackageIdentity]string{}

	for _, depIndex := range included {
		dep := node.Manifest.Dependencies[depIndex]
		declared, err := dep.Reference(manifestDir)
		if err != nil {
			return nil, err
		}
		ref := b.opts.Resolver.Resolve(declared)

		if override, ok := b.overrideFor(ref.Identity); ok {
			ref = override.Ref
		}

		// two declarations at the same graph level resolving to one
		// identity must be reconcilable under the policy
		if prior, ok := seenThisLevel[ref.Identity]; ok && prior != ref.Location {
			return nil, &ConflictingIdentityError{Identity: ref.Identity, LocatorA: prior, LocatorB: ref.Location}
		}
		seenThisLevel[ref.Identity] = ref.Location

		if existing, ok := graph.Nodes[ref.Identity]; ok && !b.opts.Resolver.SameUnderPolicy(existing.PackageRef, ref) {
			diag := diagnostics.Warningf(CodeConflictingIdentity, "%s", (&ConflictingIdentityError{
				Identity: ref.Identity,
				LocatorA: existing.PackageRef.Location,
				LocatorB: ref.Location,
			}).Error())
			b.opts.Sink.Emit(diag)
			ref = existing.PackageRef
		}

		refs = append(refs, ref)
	}
	return refs, nil
}

func (b *Builder) overrideFor(id identity.PackageIdentity) (traits.Root, bool) {
	for _, o := range b.opts.Overrides {
		if o.Ref.Identity == id {
			return o, true
		}
	}
	return traits.Root{}, false
}

// loadMissing fetches manifests for children not yet in the graph. Loads
// run concurrently; results are merged by the caller on one goroutine.
func (b *Builder) loadMissing(ctx context.Context, graph *Graph, parent *manifest.Manifest, included []int, childRefs []identity.PackageReference) (map[identity.PackageIdentity]*manifest.Manifest, error) {
	type loadRequest struct {
		ref identity.PackageReference
		req *manifest.Requirement
	}
	var requests []loadRequest
	requested := stringset.New()

	for i, depIndex := range included {
		ref := childRefs[i]
		if _, ok := graph.Nodes[ref.Identity]; ok {
			continue
		}
		if requested.Contains(ref.Identity.String()) {
			continue
		}
		requested.Add(ref.Identity.String())
		if override, ok := b.overrideFor(ref.Identity); ok {
			// overrides come with their manifest already loaded
			requests = append(requests, loadRequest{ref: override.Ref})
			continue
		}
		requests = append(requests, loadRequest{ref: ref, req: parent.Dependencies[depIndex].Requirement})
	}

	loaded := make(map[identity.PackageIdentity]*manifest.Manifest, len(requests))
	results := make([]*manifest.Manifest, len(requests))

	g, groupCtx := errgroup.WithContext(ctx)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			if override, ok := b.overrideFor(req.ref.Identity); ok {
				results[i] = override.Manifest
				return nil
			}
			m, err := b.loader.Load(groupCtx, req.ref, req.req)
			if err != nil {
				return err
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, req := range requests {
		loaded[req.ref.Identity] = results[i]
	}
	return loaded, nil
}

func (b *Builder) validate(graph *Graph) error {
	if err := b.checkDuplicateProducts(graph); err != nil {
		return err
	}
	if err := b.checkDuplicateTargets(graph); err != nil {
		return err
	}
	return b.checkAcyclic(graph)
}

// checkDuplicateProducts: products declared by two distinct packages must
// not collide in name. Always fatal.
func (b *Builder) checkDuplicateProducts(graph *Graph) error {
	owners := map[string]identity.PackageIdentity{}
	for _, id := range graph.Identities() {
		for _, name := range graph.Nodes[id].Manifest.ProductNames() {
			if prior, ok := owners[name]; ok && prior != id {
				return &DuplicateProductError{Product: name, PackageA: prior, PackageB: id}
			}
			owners[name] = id
		}
	}
	return nil
}

// checkDuplicateTargets flags target names shared between a registry package
// and a source-control package, which usually means one package reachable
// through both worlds. Fatal under 'disabled', a warning otherwise.
func (b *Builder) checkDuplicateTargets(graph *Graph) error {
	registryTargets := map[string]identity.PackageIdentity{}
	for _, id := range graph.Identities() {
		node := graph.Nodes[id]
		if node.PackageRef.Kind != identity.KindRegistry {
			continue
		}
		for _, t := range node.Manifest.TargetNames() {
			registryTargets[t] = id
		}
	}

	for _, id := range graph.Identities() {
		node := graph.Nodes[id]
		switch node.PackageRef.Kind {
		case identity.KindRemoteSourceControl, identity.KindLocalSourceControl:
		default:
			continue
		}
		for _, t := range node.Manifest.TargetNames() {
			regID, ok := registryTargets[t]
			if !ok || regID == id {
				continue
			}
			dup := &DuplicateTargetError{Target: t, RegistryPackage: regID, SourcePackage: id}
			if b.opts.Resolver.Policy == identity.SwizzleDisabled {
				return dup
			}
			b.opts.Sink.Emit(diagnostics.NewWarning(CodeDuplicateTarget, dup))
		}
	}
	return nil
}

// checkAcyclic: an edge back to an ancestor of the current traversal path is
// a hard error, reported with the full path.
func (b *Builder) checkAcyclic(graph *Graph) error {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := map[identity.PackageIdentity]int{}
	var path []identity.PackageIdentity

	var walk func(id identity.PackageIdentity) error
	walk = func(id identity.PackageIdentity) error {
		switch state[id] {
		case done:
			return nil
		case inProgress:
			start := slices.Index(path, id)
			cycle := append(slices.Clone(path[start:]), id)
			return &CycleError{Path: cycle}
		}
		state[id] = inProgress
		path = append(path, id)
		node := graph.Nodes[id]
		for _, dep := range node.Dependencies {
			if err := walk(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, root := range graph.Roots {
		if err := walk(root); err != nil {
			return err
		}
	}
	return nil
}

