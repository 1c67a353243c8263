// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"github.com/Masterminds/semver/v3"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
)

// Release is the material of one published package version.
type Release struct {
	// Manifest holds the package.yaml contents, tools-version header
	// included.
	Manifest []byte
	// ArchivePath optionally points at the gzipped source archive.
	ArchivePath string

	Description string
	LicenseURL  string
	ReadmeURL   string
}

// Publish pushes one release of a package. The version becomes the tag; the
// manifest and archive become layers the resolver can fetch independently.
func (c *OCIClient) Publish(ctx context.Context, id identity.PackageIdentity, version *semver.Version, release Release) (ocispec.Descriptor, error) {
	if _, err := manifest.LoadContents(release.Manifest, manifest.FileName); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("refusing to publish %q: %w", id, err)
	}

	store := memory.New()
	layers := []ocispec.Descriptor{}

	manifestDesc := content.NewDescriptorFromBytes(ManifestMediaType, release.Manifest)
	manifestDesc.Annotations = map[string]string{ocispec.AnnotationTitle: manifest.FileName}
	if err := store.Push(ctx, manifestDesc, bytes.NewReader(release.Manifest)); err != nil {
		return ocispec.Descriptor{}, err
	}
	layers = append(layers, manifestDesc)

	if release.ArchivePath != "" {
		blob, err := os.ReadFile(release.ArchivePath)
		if err != nil {
			return ocispec.Descriptor{}, err
		}
		archiveDesc := content.NewDescriptorFromBytes(ArchiveMediaType, blob)
		archiveDesc.Annotations = map[string]string{ocispec.AnnotationTitle: "source-archive.tar.gz"}
		if err := store.Push(ctx, archiveDesc, bytes.NewReader(blob)); err != nil {
			return ocispec.Descriptor{}, err
		}
		layers = append(layers, archiveDesc)
	}

	annotations := map[string]string{
		ocispec.AnnotationVersion: version.String(),
	}
	if release.Description != "" {
		annotations[ocispec.AnnotationDescription] = release.Description
	}
	if release.LicenseURL != "" {
		annotations[ocispec.AnnotationLicenses] = release.LicenseURL
	}
	if release.ReadmeURL != "" {
		annotations[ocispec.AnnotationDocumentation] = release.ReadmeURL
	}

	packOpts := oras.PackManifestOptions{
		Layers:              layers,
		ManifestAnnotations: annotations,
	}
	desc, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, PackageArtifactType, packOpts)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	tag := version.String()
	if err := store.Tag(ctx, desc, tag); err != nil {
		return ocispec.Descriptor{}, err
	}

	repo, err := c.repo(id)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	if _, err := oras.Copy(ctx, store, tag, repo, tag, oras.DefaultCopyOptions); err != nil {
		return ocispec.Descriptor{}, &Error{Host: c.registry, Identity: id, Cause: err}
	}
	return desc, nil
}
