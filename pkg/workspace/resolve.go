// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"
	"log/slog"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/pins"
	"daml.com/x/wpm/pkg/pkggraph"
	"daml.com/x/wpm/pkg/state"
	"daml.com/x/wpm/pkg/traits"
	"daml.com/x/wpm/pkg/versionresolver"
	"github.com/Masterminds/semver/v3"
)

type ResolveOptions struct {
	// Traits configures the root's enabled traits.
	Traits traits.Configuration
	// Update ignores the pins fast path and re-resolves from live metadata.
	Update bool
}

// Resolution is the outcome of one resolve run.
type Resolution struct {
	Graph    *pkggraph.Graph
	Solution versionresolver.Solution
	State    *state.WorkspaceState
}

// Resolve builds the dependency graph, solves versions (honoring existing
// pins unless updating), materializes checkouts and records everything in
// the workspace state and pins file.
func (w *Workspace) Resolve(ctx context.Context, opts ResolveOptions) (*Resolution, error) {
	if err := w.config.EnsureDirs(); err != nil {
		return nil, err
	}

	overrides, err := w.editedOverrides()
	if err != nil {
		return nil, err
	}

	builder := pkggraph.NewBuilder(&manifestLoader{workspace: w}, pkggraph.Options{
		Resolver:           w.resolver,
		TraitConfiguration: opts.Traits,
		PruneDependencies:  w.config.PruneDependencies,
		Sink:               w.sink,
		Overrides:          overrides,
	})
	roots := []traits.Root{{Ref: w.RootReference(), Manifest: w.root}}
	graph, err := builder.Build(ctx, roots)
	if err != nil {
		return nil, err
	}

	existing, err := w.existingPins(opts.Update)
	if err != nil {
		return nil, err
	}

	meta := metadataSource{workspace: w}
	solution, err := versionresolver.New(nil, meta, meta).Resolve(ctx, graph, existing)
	if err != nil {
		return nil, err
	}

	doc, err := w.record(ctx, graph, solution)
	if err != nil {
		return nil, err
	}
	return &Resolution{Graph: graph, Solution: solution, State: doc}, nil
}

// existingPins feeds the solver's fast path, unless updating or the root
// manifest changed since the pins were written.
func (w *Workspace) existingPins(update bool) ([]versionresolver.Pinned, error) {
	if update {
		return nil, nil
	}
	doc, err := w.pinsStore.Load()
	if err != nil {
		return nil, err
	}
	hash, err := w.originHash()
	if err != nil {
		return nil, err
	}
	if doc.Stale(hash) {
		slog.Debug("root manifest changed since pins were written, re-resolving")
		return nil, nil
	}

	var pinned []versionresolver.Pinned
	for _, p := range doc.Pins {
		entry := versionresolver.Pinned{
			Identity: p.Identity,
			Branch:   p.State.Branch,
			Revision: p.State.Revision,
		}
		if p.State.Version != "" {
			v, err := semver.NewVersion(p.State.Version)
			if err != nil {
				return nil, fmt.Errorf("pin for %q carries malformed version %q: %w", p.Identity, p.State.Version, err)
			}
			entry.Version = v
		}
		pinned = append(pinned, entry)
	}
	return pinned, nil
}

// record materializes the solution and persists state and pins.
func (w *Workspace) record(ctx context.Context, graph *pkggraph.Graph, solution versionresolver.Solution) (*state.WorkspaceState, error) {
	doc, err := w.stateStore.Load()
	if err != nil {
		return nil, err
	}

	resolved := map[identity.PackageIdentity]struct{}{}
	for _, id := range graph.NonRootIdentities() {
		resolved[id] = struct{}{}
		node := graph.Nodes[id]

		// an edited dependency stays as the user left it
		if existing, ok := doc.Dependency(id); ok && existing.State.Name == state.StateEdited {
			continue
		}

		switch node.PackageRef.Kind {
		case identity.KindFileSystem, identity.KindLocalSourceControl:
			doc.SetDependency(state.ManagedDependency{
				PackageRef: state.RefOf(node.PackageRef),
				State:      state.DependencyState{Name: state.StateLocal, Path: node.PackageRef.Location},
			})
		case identity.KindRemoteSourceControl:
			if err := w.recordCheckout(ctx, doc, node, solution[id]); err != nil {
				return nil, err
			}
		case identity.KindRegistry:
			sel, ok := solution[id]
			if !ok {
				return nil, fmt.Errorf("no version selected for registry package %q", id)
			}
			doc.SetDependency(state.ManagedDependency{
				PackageRef: state.RefOf(node.PackageRef),
				State:      state.DependencyState{Name: state.StateRegistryDownload, Version: sel.Version.String()},
				Subpath:    id.String(),
			})
		}

		w.recordArtifacts(doc, node.PackageRef, node.Manifest)
	}

	// dependencies that fell out of the graph fall out of the state
	var stale []identity.PackageIdentity
	for _, dep := range doc.Dependencies {
		id := dep.PackageRef.Identity
		if _, ok := resolved[id]; !ok && dep.State.Name != state.StateEdited {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		doc.RemoveDependency(id)
	}

	if err := w.stateStore.Save(ctx, doc); err != nil {
		return nil, err
	}
	if err := w.savePins(ctx, graph, solution); err != nil {
		return nil, err
	}
	return doc, nil
}

func (w *Workspace) recordCheckout(ctx context.Context, doc *state.WorkspaceState, node *pkggraph.ResolvedNode, sel versionresolver.Selection) error {
	revision := sel.Revision
	if revision == "" {
		if sel.Version == nil {
			return fmt.Errorf("no version selected for source-control package %q", node.PackageRef.Identity)
		}
		resolved, err := w.git.ResolveVersion(ctx, node.PackageRef, sel.Version)
		if err != nil {
			return err
		}
		revision = resolved
	}
	if _, err := w.git.Checkout(ctx, node.PackageRef, revision); err != nil {
		return err
	}

	depState := state.DependencyState{Name: state.StateCheckout, Branch: sel.Branch, Revision: revision}
	if sel.Version != nil {
		depState.Version = sel.Version.String()
	}
	doc.SetDependency(state.ManagedDependency{
		PackageRef: state.RefOf(node.PackageRef),
		State:      depState,
		Subpath:    node.PackageRef.Identity.String(),
	})
	return nil
}

// recordArtifacts registers the binary targets a resolved package declares.
// Fetching is left to the archive capability; the state records provenance.
func (w *Workspace) recordArtifacts(doc *state.WorkspaceState, ref identity.PackageReference, m *manifest.Manifest) {
	for _, target := range m.BinaryTargets() {
		source := state.ArtifactSource{Type: "remote", URL: target.URL, Checksum: target.Checksum}
		if target.Path != "" {
			source = state.ArtifactSource{Type: "local", Path: target.Path}
		}
		doc.SetArtifact(state.ManagedArtifact{
			PackageRef: state.RefOf(ref),
			TargetName: target.Name,
			Source:     source,
			Path:       w.artifactPath(ref.Identity, target.Name),
		})
	}
}

func (w *Workspace) savePins(ctx context.Context, graph *pkggraph.Graph, solution versionresolver.Solution) error {
	hash, err := w.originHash()
	if err != nil {
		return err
	}
	doc := pins.NewDocument()
	doc.OriginHash = hash
	for id, sel := range solution {
		node := graph.Nodes[id]
		pin := pins.Pin{
			Identity: id,
			Kind:     node.PackageRef.Kind,
			Location: node.PackageRef.Location,
			State: pins.PinState{
				Branch:   sel.Branch,
				Revision: sel.Revision,
			},
		}
		if sel.Version != nil {
			pin.State.Version = sel.Version.String()
		}
		doc.Add(pin)
	}
	return w.pinsStore.Save(ctx, doc)
}

// metadataSource dispatches release metadata per locator kind.
type metadataSource struct {
	workspace *Workspace
}

func (m metadataSource) Versions(ctx context.Context, ref identity.PackageReference) ([]*semver.Version, error) {
	if ref.Kind == identity.KindRegistry {
		return m.workspace.registry.Releases(ctx, ref.Identity)
	}
	return m.workspace.git.Versions(ctx, ref)
}

func (m metadataSource) ResolveBranch(ctx context.Context, ref identity.PackageReference, branch string) (string, error) {
	return m.workspace.git.ResolveBranch(ctx, ref, branch)
}
