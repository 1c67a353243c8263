// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package registry_test

import (
	"testing"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/registry"
	"daml.com/x/wpm/pkg/testutil"
	"github.com/Masterminds/semver/v3"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleasesListsPublishedVersions(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)

	body := "name: utils\n"
	testutil.PushRelease(t, ctx, client, "acme.utils", "1.0.0", registry.Release{Manifest: testutil.PackageManifest(body)})
	testutil.PushRelease(t, ctx, client, "acme.utils", "1.2.0", registry.Release{Manifest: testutil.PackageManifest(body)})

	id, err := identity.ParseRegistryIdentity("acme.utils")
	require.NoError(t, err)
	versions, err := client.Releases(ctx, id)
	require.NoError(t, err)

	rendered := lo.Map(versions, func(v *semver.Version, _ int) string { return v.String() })
	assert.ElementsMatch(t, []string{"1.0.0", "1.2.0"}, rendered)
}

func TestReleasesUnknownPackage(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)

	id, err := identity.ParseRegistryIdentity("acme.ghost")
	require.NoError(t, err)
	_, err = client.Releases(ctx, id)

	var notFound *registry.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, id, notFound.Identity)
}

func TestVersionMetadataCarriesAnnotationsAndResources(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)

	testutil.PushRelease(t, ctx, client, "acme.utils", "2.0.0", registry.Release{
		Manifest:    testutil.PackageManifest("name: utils\n"),
		Description: "shared utilities",
		LicenseURL:  "https://example.com/LICENSE",
	})

	id, err := identity.ParseRegistryIdentity("acme.utils")
	require.NoError(t, err)
	meta, err := client.VersionMetadata(ctx, id, semver.MustParse("2.0.0"))
	require.NoError(t, err)

	assert.Equal(t, "shared utilities", meta.Description)
	assert.Equal(t, "https://example.com/LICENSE", meta.LicenseURL)
	require.Len(t, meta.Resources, 1)
	assert.Equal(t, "package.yaml", meta.Resources[0].Name)
	assert.Equal(t, registry.ManifestMediaType, meta.Resources[0].MediaType)
	assert.NotEmpty(t, meta.Resources[0].Checksum)
}

func TestManifestFetchesTheManifestLayer(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)

	contents := testutil.PackageManifest("name: utils\n")
	testutil.PushRelease(t, ctx, client, "acme.utils", "1.0.0", registry.Release{Manifest: contents})

	id, err := identity.ParseRegistryIdentity("acme.utils")
	require.NoError(t, err)
	raw, err := client.Manifest(ctx, id, semver.MustParse("1.0.0"))
	require.NoError(t, err)
	assert.Equal(t, contents, raw)
}

func TestManifestUnknownVersion(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)

	testutil.PushRelease(t, ctx, client, "acme.utils", "1.0.0", registry.Release{Manifest: testutil.PackageManifest("name: utils\n")})

	id, err := identity.ParseRegistryIdentity("acme.utils")
	require.NoError(t, err)
	_, err = client.Manifest(ctx, id, semver.MustParse("9.9.9"))

	var notFound *registry.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "9.9.9", notFound.Version.String())
}

func TestPublishRejectsBrokenManifest(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)

	id, err := identity.ParseRegistryIdentity("acme.utils")
	require.NoError(t, err)
	_, err = client.Publish(ctx, id, semver.MustParse("1.0.0"), registry.Release{Manifest: []byte("kind: Package\n")})
	require.ErrorContains(t, err, "refusing to publish")
}
