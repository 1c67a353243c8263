// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"daml.com/x/wpm/pkg/identity"
	"github.com/Masterminds/semver/v3"
	"github.com/jdx/go-netrc"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/errcode"
)

// OCIClient serves the registry capability from an OCI registry: one
// repository per scope/name, one tag per release version.
type OCIClient struct {
	registry string
	client   *auth.Client

	// Insecure switches repositories to plain HTTP, for test registries.
	Insecure bool
}

var _ Client = (*OCIClient)(nil)

// New builds a client for the given registry host. Credentials come from
// the netrc file when one exists there; otherwise requests are anonymous.
func New(registryHost, netrcPath string, insecure bool) (*OCIClient, error) {
	client := &auth.Client{Cache: auth.NewCache()}

	if netrcPath != "" {
		if _, err := os.Stat(netrcPath); err == nil {
			rc, err := netrc.Parse(netrcPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read netrc at %q: %w", netrcPath, err)
			}
			client.Credential = func(_ context.Context, host string) (auth.Credential, error) {
				machine := rc.Machine(host)
				if machine == nil {
					return auth.EmptyCredential, nil
				}
				return auth.Credential{
					Username: machine.Get("login"),
					Password: machine.Get("password"),
				}, nil
			}
		} else {
			slog.Debug("no netrc found, registry requests will be unauthenticated", "path", netrcPath)
		}
	}

	return &OCIClient{registry: registryHost, client: client, Insecure: insecure}, nil
}

func (c *OCIClient) Releases(ctx context.Context, id identity.PackageIdentity) ([]*semver.Version, error) {
	repo, err := c.repo(id)
	if err != nil {
		return nil, err
	}

	var versions []*semver.Version
	err = repo.Tags(ctx, "", func(tags []string) error {
		for _, tag := range tags {
			if v, err := semver.StrictNewVersion(tag); err == nil {
				versions = append(versions, v)
			}
		}
		return nil
	})
	if isErrorCode(err, errcode.ErrorCodeNameUnknown) {
		return nil, &NotFoundError{Host: c.registry, Identity: id}
	}
	if err != nil {
		return nil, &Error{Host: c.registry, Identity: id, Cause: err}
	}
	return versions, nil
}

func (c *OCIClient) VersionMetadata(ctx context.Context, id identity.PackageIdentity, version *semver.Version) (*ReleaseMetadata, error) {
	manifest, err := c.imageManifest(ctx, id, version)
	if err != nil {
		return nil, err
	}

	meta := &ReleaseMetadata{
		Version:     version,
		Description: manifest.Annotations[ocispec.AnnotationDescription],
		LicenseURL:  manifest.Annotations[ocispec.AnnotationLicenses],
		ReadmeURL:   manifest.Annotations[ocispec.AnnotationDocumentation],
	}
	for _, layer := range manifest.Layers {
		meta.Resources = append(meta.Resources, Resource{
			Name:      layer.Annotations[ocispec.AnnotationTitle],
			MediaType: layer.MediaType,
			Checksum:  layer.Digest.String(),
			Size:      layer.Size,
		})
	}
	return meta, nil
}

func (c *OCIClient) Manifest(ctx context.Context, id identity.PackageIdentity, version *semver.Version) ([]byte, error) {
	manifest, err := c.imageManifest(ctx, id, version)
	if err != nil {
		return nil, err
	}

	repo, err := c.repo(id)
	if err != nil {
		return nil, err
	}
	for _, layer := range manifest.Layers {
		if layer.MediaType != ManifestMediaType {
			continue
		}
		data, err := content.FetchAll(ctx, repo.Blobs(), layer)
		if err != nil {
			return nil, &Error{Host: c.registry, Identity: id, Cause: err}
		}
		return data, nil
	}
	return nil, &Error{Host: c.registry, Identity: id, Cause: fmt.Errorf("release %s carries no package manifest layer", version)}
}

func (c *OCIClient) imageManifest(ctx context.Context, id identity.PackageIdentity, version *semver.Version) (*ocispec.Manifest, error) {
	repo, err := c.repo(id)
	if err != nil {
		return nil, err
	}

	desc, err := repo.Resolve(ctx, version.String())
	if isErrorCode(err, errcode.ErrorCodeNameUnknown) || isErrorCode(err, errcode.ErrorCodeManifestUnknown) {
		return nil, &NotFoundError{Host: c.registry, Identity: id, Version: version}
	}
	if err != nil {
		return nil, &Error{Host: c.registry, Identity: id, Cause: err}
	}

	raw, err := content.FetchAll(ctx, repo.Manifests(), desc)
	if err != nil {
		return nil, &Error{Host: c.registry, Identity: id, Cause: err}
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, &Error{Host: c.registry, Identity: id, Cause: err}
	}
	return &manifest, nil
}

func (c *OCIClient) repo(id identity.PackageIdentity) (*remote.Repository, error) {
	scope, name, ok := id.ScopeAndName()
	if !ok {
		return nil, fmt.Errorf("%q is not a registry identity", id)
	}
	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s/%s", c.registry, scope, name))
	if err != nil {
		return nil, &Error{Host: c.registry, Identity: id, Cause: err}
	}
	repo.Client = c
	repo.PlainHTTP = c.Insecure
	return repo, nil
}

var _ remote.Client = (*OCIClient)(nil)

func (c *OCIClient) Do(req *http.Request) (*http.Response, error) {
	slog.Debug("registry request", "method", req.Method, "url", req.URL.String())
	return c.client.Do(req)
}

// isErrorCode reports whether err is an oras error with the given code.
func isErrorCode(err error, code string) bool {
	var ec errcode.Error
	return errors.As(err, &ec) && ec.Code == code
}