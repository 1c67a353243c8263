// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"
	"path/filepath"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/state"
	"daml.com/x/wpm/pkg/traits"
)

// Edit puts a managed dependency into edited mode: subsequent resolves use
// the package at path instead of the recorded checkout or download. The
// original reference is kept so Unedit can restore it.
func (w *Workspace) Edit(ctx context.Context, id identity.PackageIdentity, path string) error {
	doc, err := w.stateStore.Load()
	if err != nil {
		return err
	}
	dep, ok := doc.Dependency(id)
	if !ok {
		return fmt.Errorf("package %q is not a managed dependency of this workspace", id)
	}
	if dep.State.Name == state.StateEdited {
		return fmt.Errorf("package %q is already in edited state at %q", id, dep.State.Path)
	}

	path, err = filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := manifest.Load(filepath.Join(path, manifest.FileName)); err != nil {
		return fmt.Errorf("%q does not contain an editable package: %w", path, err)
	}

	basedOn := dep.PackageRef
	doc.SetDependency(state.ManagedDependency{
		PackageRef: state.PackageRef{
			Identity: id,
			Kind:     identity.KindFileSystem,
			Location: path,
			Name:     dep.PackageRef.Name,
		},
		State:   state.DependencyState{Name: state.StateEdited, Path: path},
		BasedOn: &basedOn,
	})
	return w.stateStore.Save(ctx, doc)
}

// Unedit restores an edited dependency to the reference it replaced. The
// next resolve re-materializes it.
func (w *Workspace) Unedit(ctx context.Context, id identity.PackageIdentity) error {
	doc, err := w.stateStore.Load()
	if err != nil {
		return err
	}
	dep, ok := doc.Dependency(id)
	if !ok {
		return fmt.Errorf("package %q is not a managed dependency of this workspace", id)
	}
	if dep.State.Name != state.StateEdited || dep.BasedOn == nil {
		return fmt.Errorf("package %q is not in edited state", id)
	}

	// drop the entry entirely; the next resolve re-materializes it from
	// the declared requirement
	doc.RemoveDependency(id)
	return w.stateStore.Save(ctx, doc)
}

// editedOverrides turns the edited entries of the workspace state into
// resolution overrides, so the graph builder substitutes the local copy.
func (w *Workspace) editedOverrides() ([]traits.Root, error) {
	doc, err := w.stateStore.Load()
	if err != nil {
		return nil, err
	}
	var overrides []traits.Root
	for _, dep := range doc.Dependencies {
		if dep.State.Name != state.StateEdited {
			continue
		}
		m, err := manifest.Load(filepath.Join(dep.State.Path, manifest.FileName))
		if err != nil {
			return nil, fmt.Errorf("edited package %q is broken: %w", dep.PackageRef.Identity, err)
		}
		overrides = append(overrides, traits.Root{
			Ref: identity.PackageReference{
				Identity: dep.PackageRef.Identity,
				Kind:     identity.KindFileSystem,
				Location: dep.State.Path,
				Name:     m.DisplayName,
			},
			Manifest: m,
		})
	}
	return overrides, nil
}

func (w *Workspace) artifactPath(id identity.PackageIdentity, targetName string) string {
	return filepath.Join(w.config.ArtifactsPath, id.String(), targetName)
}
