// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package state persists the workspace's managed dependencies and artifacts
// as a schema-versioned JSON document. Older documents are migrated forward
// on load; saves always emit the current schema, sorted, atomically.
package state

import (
	"slices"
	"strings"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/schema"
)

const (
	CurrentSchemaVersion schema.DocumentVersion = 3
	OldestSchemaVersion  schema.DocumentVersion = 1

	FileName = "workspace-state.json"
)

// DependencyStateName tags how a managed dependency is materialized.
type DependencyStateName string

const (
	// StateCheckout is a source-control clone pinned to a revision.
	StateCheckout DependencyStateName = "checkout"
	// StateRegistryDownload is an archive fetched from a registry release.
	StateRegistryDownload DependencyStateName = "registryDownload"
	// StateLocal points at a filesystem package outside workspace management.
	StateLocal DependencyStateName = "local"
	// StateEdited is a checkout replaced by a local working copy.
	StateEdited DependencyStateName = "edited"
)

// PackageRef is the serialized form of an identity.PackageReference.
type PackageRef struct {
	Identity identity.PackageIdentity `json:"identity"`
	Kind     identity.Kind            `json:"kind"`
	Location string                   `json:"location"`
	Name     string                   `json:"name,omitempty"`
}

func RefOf(ref identity.PackageReference) PackageRef {
	return PackageRef{
		Identity: ref.Identity,
		Kind:     ref.Kind,
		Location: ref.Location,
		Name:     ref.Name,
	}
}

func (r PackageRef) Reference() identity.PackageReference {
	return identity.PackageReference{
		Identity: r.Identity,
		Kind:     r.Kind,
		Location: r.Location,
		Name:     r.Name,
	}
}

// DependencyState captures the pinned coordinates of one materialization.
// Version is set for registryDownload and versioned checkouts, revision and
// branch for source-control checkouts, path for local and edited packages.
type DependencyState struct {
	Name     DependencyStateName `json:"name"`
	Version  string              `json:"version,omitempty"`
	Branch   string              `json:"branch,omitempty"`
	Revision string              `json:"revision,omitempty"`
	Path     string              `json:"path,omitempty"`
}

type ManagedDependency struct {
	PackageRef PackageRef      `json:"packageRef"`
	State      DependencyState `json:"state"`
	// Subpath locates the checkout below the workspace's checkouts
	// directory.
	Subpath string `json:"subpath,omitempty"`
	// BasedOn records, for an edited dependency, the reference it replaced.
	BasedOn *PackageRef `json:"basedOn,omitempty"`
}

// ArtifactSource says where a binary artifact came from.
type ArtifactSource struct {
	Type     string `json:"type"` // "remote" or "local"
	URL      string `json:"url,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Path     string `json:"path,omitempty"`
}

// ManagedArtifact is one extracted binary target, keyed by owning package
// plus target name.
type ManagedArtifact struct {
	PackageRef PackageRef     `json:"packageRef"`
	TargetName string         `json:"targetName"`
	Source     ArtifactSource `json:"source"`
	Path       string         `json:"path"`
}

// WorkspaceState is the in-memory document. Mutate through the accessors so
// collections stay unique per key.
type WorkspaceState struct {
	Version      schema.DocumentVersion `json:"version"`
	Dependencies []ManagedDependency    `json:"dependencies"`
	Artifacts    []ManagedArtifact      `json:"artifacts"`
}

func NewWorkspaceState() *WorkspaceState {
	return &WorkspaceState{Version: CurrentSchemaVersion}
}

func (s *WorkspaceState) Dependency(id identity.PackageIdentity) (ManagedDependency, bool) {
	for _, d := range s.Dependencies {
		if d.PackageRef.Identity == id {
			return d, true
		}
	}
	return ManagedDependency{}, false
}

// SetDependency inserts or replaces the entry for the dependency's identity.
func (s *WorkspaceState) SetDependency(dep ManagedDependency) {
	for i, d := range s.Dependencies {
		if d.PackageRef.Identity == dep.PackageRef.Identity {
			s.Dependencies[i] = dep
			return
		}
	}
	s.Dependencies = append(s.Dependencies, dep)
}

func (s *WorkspaceState) RemoveDependency(id identity.PackageIdentity) bool {
	for i, d := range s.Dependencies {
		if d.PackageRef.Identity == id {
			s.Dependencies = slices.Delete(s.Dependencies, i, i+1)
			return true
		}
	}
	return false
}

func (s *WorkspaceState) Artifact(id identity.PackageIdentity, target string) (ManagedArtifact, bool) {
	for _, a := range s.Artifacts {
		if a.PackageRef.Identity == id && a.TargetName == target {
			return a, true
		}
	}
	return ManagedArtifact{}, false
}

// SetArtifact inserts or replaces the entry keyed by identity plus target.
func (s *WorkspaceState) SetArtifact(artifact ManagedArtifact) {
	for i, a := range s.Artifacts {
		if a.PackageRef.Identity == artifact.PackageRef.Identity && a.TargetName == artifact.TargetName {
			s.Artifacts[i] = artifact
			return
		}
	}
	s.Artifacts = append(s.Artifacts, artifact)
}

// normalize sorts both collections so repeated saves of the same logical
// state are byte-identical.
func (s *WorkspaceState) normalize() {
	slices.SortFunc(s.Dependencies, func(a, b ManagedDependency) int {
		return strings.Compare(a.PackageRef.Identity.String(), b.PackageRef.Identity.String())
	})
	slices.SortFunc(s.Artifacts, func(a, b ManagedArtifact) int {
		if c := strings.Compare(a.PackageRef.Identity.String(), b.PackageRef.Identity.String()); c != 0 {
			return c
		}
		return strings.Compare(a.TargetName, b.TargetName)
	})
}
