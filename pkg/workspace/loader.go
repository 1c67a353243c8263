// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"
	"path/filepath"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/pkggraph"
	"daml.com/x/wpm/pkg/sourcecontrol"
	"github.com/Masterminds/semver/v3"
)

// manifestLoader materializes dependency manifests per locator kind:
// filesystem packages straight from disk, source-control packages from a
// checkout of the best admissible version, registry packages from the
// release's manifest blob.
type manifestLoader struct {
	workspace *Workspace
}

var _ pkggraph.ManifestLoader = (*manifestLoader)(nil)

func (l *manifestLoader) Load(ctx context.Context, ref identity.PackageReference, req *manifest.Requirement) (*manifest.Manifest, error) {
	switch ref.Kind {
	case identity.KindRoot, identity.KindFileSystem, identity.KindLocalSourceControl:
		return manifest.Load(filepath.Join(ref.Location, manifest.FileName))
	case identity.KindRemoteSourceControl:
		return l.loadSourceControl(ctx, ref, req)
	case identity.KindRegistry:
		return l.loadRegistry(ctx, ref, req)
	}
	return nil, fmt.Errorf("cannot load manifest for %q: unknown locator kind %q", ref.Identity, ref.Kind)
}

func (l *manifestLoader) loadSourceControl(ctx context.Context, ref identity.PackageReference, req *manifest.Requirement) (*manifest.Manifest, error) {
	git := l.workspace.git

	revision, err := l.sourceControlRevision(ctx, git, ref, req)
	if err != nil {
		return nil, err
	}
	dir, err := git.Checkout(ctx, ref, revision)
	if err != nil {
		return nil, err
	}
	return manifest.Load(filepath.Join(dir, manifest.FileName))
}

func (l *manifestLoader) sourceControlRevision(ctx context.Context, git *sourcecontrol.Client, ref identity.PackageReference, req *manifest.Requirement) (string, error) {
	if req == nil {
		return "", fmt.Errorf("source-control dependency %q declares no requirement", ref.Identity)
	}
	switch {
	case req.Kind == manifest.RequirementBranch:
		return git.ResolveBranch(ctx, ref, req.Branch)
	case req.Kind == manifest.RequirementRevision:
		return req.Revision, nil
	}

	versions, err := git.Versions(ctx, ref)
	if err != nil {
		return "", err
	}
	best, err := highestSatisfying(ref, req, versions)
	if err != nil {
		return "", err
	}
	return git.ResolveVersion(ctx, ref, best)
}

func (l *manifestLoader) loadRegistry(ctx context.Context, ref identity.PackageReference, req *manifest.Requirement) (*manifest.Manifest, error) {
	if req == nil || !req.IsVersionBased() {
		return nil, fmt.Errorf("registry dependency %q requires a version-based requirement", ref.Identity)
	}

	releases, err := l.workspace.registry.Releases(ctx, ref.Identity)
	if err != nil {
		return nil, err
	}
	best, err := highestSatisfying(ref, req, releases)
	if err != nil {
		return nil, err
	}

	contents, err := l.workspace.registry.Manifest(ctx, ref.Identity, best)
	if err != nil {
		return nil, err
	}
	// registry manifests have no on-disk location; anchor them under the
	// downloads directory they would extract to
	virtualPath := filepath.Join(l.workspace.config.RegistryDownloadsPath, ref.Identity.String(), best.String(), manifest.FileName)
	return manifest.LoadContents(contents, virtualPath)
}

func highestSatisfying(ref identity.PackageReference, req *manifest.Requirement, versions []*semver.Version) (*semver.Version, error) {
	var best *semver.Version
	for _, v := range versions {
		ok, err := req.Satisfies(v)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if best == nil || v.Compare(best) > 0 {
			best = v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no published version of %q satisfies %s", ref.Identity, req)
	}
	return best, nil
}
