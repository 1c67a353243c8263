// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package sourcecontrol is the git capability behind source-control
// dependencies: release enumeration from semver tags, branch pinning and
// revision checkouts into the workspace's checkouts directory.
package sourcecontrol

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/utils"
	"github.com/Masterminds/semver/v3"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Client lists remote refs and manages local checkouts. One client serves
// all source-control packages of a workspace.
type Client struct {
	checkoutsDir string
}

func NewClient(checkoutsDir string) *Client {
	return &Client{checkoutsDir: checkoutsDir}
}

// Versions enumerates the remote's semver tags, with or without the
// conventional v prefix. Non-semver tags are ignored.
func (c *Client) Versions(ctx context.Context, ref identity.PackageReference) ([]*semver.Version, error) {
	tags, err := c.remoteTags(ctx, ref.Location)
	if err != nil {
		return nil, err
	}
	var versions []*semver.Version
	for tag := range tags {
		if v, err := semver.StrictNewVersion(strings.TrimPrefix(tag, "v")); err == nil {
			versions = append(versions, v)
		}
	}
	return versions, nil
}

// ResolveVersion maps a selected version back to the revision its tag
// points at.
func (c *Client) ResolveVersion(ctx context.Context, ref identity.PackageReference, version *semver.Version) (string, error) {
	tags, err := c.remoteTags(ctx, ref.Location)
	if err != nil {
		return "", err
	}
	for tag, hash := range tags {
		v, err := semver.StrictNewVersion(strings.TrimPrefix(tag, "v"))
		if err != nil || !v.Equal(version) {
			continue
		}
		return hash, nil
	}
	return "", fmt.Errorf("no tag for version %s in %s", version, ref.Location)
}

// ResolveBranch pins a branch name to the revision its remote head points at.
func (c *Client) ResolveBranch(ctx context.Context, ref identity.PackageReference, branch string) (string, error) {
	refs, err := c.listRemote(ctx, ref.Location)
	if err != nil {
		return "", err
	}
	want := plumbing.NewBranchReferenceName(branch)
	for _, r := range refs {
		if r.Name() == want {
			return r.Hash().String(), nil
		}
	}
	return "", fmt.Errorf("no branch %q in %s", branch, ref.Location)
}

// Checkout materializes the given revision under the checkouts directory
// and returns the checkout path. An existing clone is reused; the remote is
// fetched only when the revision is not present locally.
func (c *Client) Checkout(ctx context.Context, ref identity.PackageReference, revision string) (string, error) {
	dir := c.CheckoutPath(ref)
	repo, err := c.openOrClone(ctx, dir, ref.Location)
	if err != nil {
		return "", err
	}

	hash := plumbing.NewHash(revision)
	if _, err := repo.CommitObject(hash); err != nil {
		if err := repo.FetchContext(ctx, &git.FetchOptions{Tags: git.AllTags}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("failed to fetch %s: %w", ref.Location, err)
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return "", fmt.Errorf("failed to check out revision %s of %s: %w", revision, ref.Identity, err)
	}
	return dir, nil
}

// CheckoutPath is where a package's clone lives, whether or not it exists yet.
func (c *Client) CheckoutPath(ref identity.PackageReference) string {
	return filepath.Join(c.checkoutsDir, ref.Identity.String())
}

func (c *Client) openOrClone(ctx context.Context, dir, url string) (*git.Repository, error) {
	repo, err := git.PlainOpen(dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, err
	}
	if err := utils.EnsureDirs(c.checkoutsDir); err != nil {
		return nil, err
	}
	repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: url, Tags: git.AllTags})
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", url, err)
	}
	return repo, nil
}

func (c *Client) listRemote(ctx context.Context, url string) ([]*plumbing.Reference, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list refs of %s: %w", url, err)
	}
	return refs, nil
}

// remoteTags maps tag name to commit hash. Annotated tag peels (name^{})
// take precedence over the tag object's own hash.
func (c *Client) remoteTags(ctx context.Context, url string) (map[string]string, error) {
	refs, err := c.listRemote(ctx, url)
	if err != nil {
		return nil, err
	}
	tags := map[string]string{}
	for _, r := range refs {
		name := r.Name().String()
		if !strings.HasPrefix(name, "refs/tags/") {
			continue
		}
		tag := strings.TrimPrefix(name, "refs/tags/")
		if peeled, ok := strings.CutSuffix(tag, "^{}"); ok {
			tags[peeled] = r.Hash().String()
			continue
		}
		if _, ok := tags[tag]; !ok {
			tags[tag] = r.Hash().String()
		}
	}
	return tags, nil
}
