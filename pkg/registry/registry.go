// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package registry is the package-registry capability: release enumeration,
// per-release metadata and manifest retrieval for scope.name packages,
// served from an OCI registry.
package registry

import (
	"context"
	"fmt"

	"daml.com/x/wpm/pkg/identity"
	"github.com/Masterminds/semver/v3"
)

const (
	// PackageArtifactType tags a package release image.
	PackageArtifactType = "application/vnd.wpm.package"
	// ManifestMediaType is the layer carrying the package manifest source.
	ManifestMediaType = "application/vnd.wpm.package.manifest.v1+yaml"
	// ArchiveMediaType is the layer carrying the source archive.
	ArchiveMediaType = "application/vnd.wpm.package.archive.v1+tar+gzip"
)

// Client is what the resolution engine needs from a registry.
type Client interface {
	// Releases lists the published versions of a package, unordered.
	Releases(ctx context.Context, id identity.PackageIdentity) ([]*semver.Version, error)
	// VersionMetadata describes one release: its resources with checksums
	// plus descriptive annotations.
	VersionMetadata(ctx context.Context, id identity.PackageIdentity, version *semver.Version) (*ReleaseMetadata, error)
	// Manifest fetches the release's package manifest source.
	Manifest(ctx context.Context, id identity.PackageIdentity, version *semver.Version) ([]byte, error)
}

// Resource is one downloadable part of a release.
type Resource struct {
	Name      string
	MediaType string
	Checksum  string
	Size      int64
}

type ReleaseMetadata struct {
	Version     *semver.Version
	Resources   []Resource
	Description string
	LicenseURL  string
	ReadmeURL   string
}

// Archive returns the release's source archive resource, if published.
func (m *ReleaseMetadata) Archive() (Resource, bool) {
	for _, r := range m.Resources {
		if r.MediaType == ArchiveMediaType {
			return r, true
		}
	}
	return Resource{}, false
}

// Error wraps a registry failure with the host and package it concerns.
type Error struct {
	Host     string
	Identity identity.PackageIdentity
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("registry %s failed for package %q: %s", e.Host, e.Identity, e.Cause.Error())
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NotFoundError distinguishes "the registry answered but does not know the
// package or version" from transport failure.
type NotFoundError struct {
	Host     string
	Identity identity.PackageIdentity
	Version  *semver.Version
}

func (e *NotFoundError) Error() string {
	if e.Version != nil {
		return fmt.Sprintf("registry %s has no release %s of package %q", e.Host, e.Version, e.Identity)
	}
	return fmt.Sprintf("registry %s does not know package %q", e.Host, e.Identity)
}
