// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package workspace_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/registry"
	"daml.com/x/wpm/pkg/state"
	"daml.com/x/wpm/pkg/testutil"
	"daml.com/x/wpm/pkg/workspace"
	"daml.com/x/wpm/pkg/wpmconfig"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryRelease(body string) registry.Release {
	return registry.Release{Manifest: testutil.PackageManifest(body)}
}

func testConfig(t *testing.T) *wpmconfig.Config {
	t.Helper()
	t.Setenv(wpmconfig.WpmHomeEnvVar, t.TempDir())
	config, err := wpmconfig.Get()
	require.NoError(t, err)
	return config
}

func openWorkspace(t *testing.T, config *wpmconfig.Config, rootDir string, opts workspace.Options) *workspace.Workspace {
	t.Helper()
	w, err := workspace.Open(config, rootDir, opts)
	require.NoError(t, err)
	return w
}

func TestResolveRegistryDependency(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)
	testutil.PushRelease(t, ctx, client, "acme.utils", "1.0.0", registryRelease("name: utils\n"))
	testutil.PushRelease(t, ctx, client, "acme.utils", "1.2.0", registryRelease("name: utils\n"))

	rootDir := testutil.WriteManifest(t, filepath.Join(t.TempDir(), "app"), `name: app
dependencies:
  - id: acme.utils
    requirement:
      from: 1.0.0
`)

	config := testConfig(t)
	w := openWorkspace(t, config, rootDir, workspace.Options{Registry: client})
	res, err := w.Resolve(ctx, workspace.ResolveOptions{})
	require.NoError(t, err)

	require.Contains(t, res.Graph.Nodes, identity.PackageIdentity("acme.utils"))
	sel, ok := res.Solution["acme.utils"]
	require.True(t, ok)
	assert.Equal(t, "1.2.0", sel.Version.String())

	dep, ok := res.State.Dependency("acme.utils")
	require.True(t, ok)
	assert.Equal(t, state.StateRegistryDownload, dep.State.Name)
	assert.Equal(t, "1.2.0", dep.State.Version)

	pinsDoc, err := w.Pins()
	require.NoError(t, err)
	pin, ok := pinsDoc.Pin("acme.utils")
	require.True(t, ok)
	assert.Equal(t, "1.2.0", pin.State.Version)
	assert.NotEmpty(t, pinsDoc.OriginHash)

	// both documents landed on disk
	assert.FileExists(t, filepath.Join(rootDir, workspace.StateDirName, state.FileName))
	assert.FileExists(t, filepath.Join(rootDir, "package-pins.json"))
}

func TestResolveLocalPathDependency(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)

	base := t.TempDir()
	testutil.WriteManifest(t, filepath.Join(base, "libfoo"), `name: libfoo
targets:
  - name: FooKit
    type: binary
    url: https://example.com/fookit.tar.gz
    checksum: abc123
`)
	rootDir := testutil.WriteManifest(t, filepath.Join(base, "app"), `name: app
dependencies:
  - path: ../libfoo
`)

	config := testConfig(t)
	w := openWorkspace(t, config, rootDir, workspace.Options{Registry: client})
	res, err := w.Resolve(ctx, workspace.ResolveOptions{})
	require.NoError(t, err)

	dep, ok := res.State.Dependency("libfoo")
	require.True(t, ok)
	assert.Equal(t, state.StateLocal, dep.State.Name)
	assert.Equal(t, filepath.Join(base, "libfoo"), dep.State.Path)

	// the binary target of the local package is tracked as an artifact
	artifact, ok := res.State.Artifact("libfoo", "FooKit")
	require.True(t, ok)
	assert.Equal(t, "remote", artifact.Source.Type)
	assert.Equal(t, "https://example.com/fookit.tar.gz", artifact.Source.URL)
	assert.Equal(t, "abc123", artifact.Source.Checksum)
}

func TestResolveSourceControlDependency(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)

	repoDir := filepath.Join(t.TempDir(), "netlib")
	repo, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "package.yaml"), testutil.PackageManifest("name: netlib\n"), 0o644))
	worktree, err := repo.Worktree()
	require.NoError(t, err)
	_, err = worktree.Add("package.yaml")
	require.NoError(t, err)
	hash, err := worktree.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	_, err = repo.CreateTag("v1.1.0", plumbing.NewHash(hash.String()), nil)
	require.NoError(t, err)

	rootDir := testutil.WriteManifest(t, filepath.Join(t.TempDir(), "app"), `name: app
dependencies:
  - url: `+repoDir+`
    requirement:
      from: 1.0.0
`)

	config := testConfig(t)
	w := openWorkspace(t, config, rootDir, workspace.Options{Registry: client})
	res, err := w.Resolve(ctx, workspace.ResolveOptions{})
	require.NoError(t, err)

	dep, ok := res.State.Dependency("netlib")
	require.True(t, ok)
	assert.Equal(t, state.StateCheckout, dep.State.Name)
	assert.Equal(t, "1.1.0", dep.State.Version)
	assert.Equal(t, hash.String(), dep.State.Revision)

	// the checkout is materialized under the configured checkouts dir
	assert.FileExists(t, filepath.Join(config.CheckoutsPath, "netlib", "package.yaml"))

	pinsDoc, err := w.Pins()
	require.NoError(t, err)
	pin, ok := pinsDoc.Pin("netlib")
	require.True(t, ok)
	assert.Equal(t, hash.String(), pin.State.Revision)
}

func TestEditOverridesAndUneditRestores(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)
	testutil.PushRelease(t, ctx, client, "acme.utils", "1.0.0", registryRelease("name: utils\n"))

	rootDir := testutil.WriteManifest(t, filepath.Join(t.TempDir(), "app"), `name: app
dependencies:
  - id: acme.utils
    requirement:
      from: 1.0.0
`)
	editDir := testutil.WriteManifest(t, filepath.Join(t.TempDir(), "utils"), "name: utils\n")

	config := testConfig(t)
	w := openWorkspace(t, config, rootDir, workspace.Options{Registry: client})
	_, err := w.Resolve(ctx, workspace.ResolveOptions{})
	require.NoError(t, err)

	require.NoError(t, w.Edit(ctx, "acme.utils", editDir))

	res, err := w.Resolve(ctx, workspace.ResolveOptions{})
	require.NoError(t, err)

	node := res.Graph.Nodes["acme.utils"]
	require.NotNil(t, node)
	assert.Equal(t, identity.KindFileSystem, node.PackageRef.Kind)
	assert.Equal(t, editDir, node.PackageRef.Location)

	dep, ok := res.State.Dependency("acme.utils")
	require.True(t, ok)
	assert.Equal(t, state.StateEdited, dep.State.Name)
	require.NotNil(t, dep.BasedOn)
	assert.Equal(t, identity.KindRegistry, dep.BasedOn.Kind)

	require.NoError(t, w.Unedit(ctx, "acme.utils"))
	res, err = w.Resolve(ctx, workspace.ResolveOptions{})
	require.NoError(t, err)
	dep, ok = res.State.Dependency("acme.utils")
	require.True(t, ok)
	assert.Equal(t, state.StateRegistryDownload, dep.State.Name)
}

func TestEditRejectsUnknownOrAlreadyEdited(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)
	testutil.PushRelease(t, ctx, client, "acme.utils", "1.0.0", registryRelease("name: utils\n"))

	rootDir := testutil.WriteManifest(t, filepath.Join(t.TempDir(), "app"), `name: app
dependencies:
  - id: acme.utils
    requirement:
      from: 1.0.0
`)
	editDir := testutil.WriteManifest(t, filepath.Join(t.TempDir(), "utils"), "name: utils\n")

	config := testConfig(t)
	w := openWorkspace(t, config, rootDir, workspace.Options{Registry: client})

	err := w.Edit(ctx, "acme.ghost", editDir)
	require.ErrorContains(t, err, "not a managed dependency")

	_, err = w.Resolve(ctx, workspace.ResolveOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Edit(ctx, "acme.utils", editDir))
	err = w.Edit(ctx, "acme.utils", editDir)
	require.ErrorContains(t, err, "already in edited state")
}

func TestResolveDropsStaleDependencies(t *testing.T) {
	ctx := testutil.Context(t)
	client, _ := testutil.StartRegistry(t)
	testutil.PushRelease(t, ctx, client, "acme.utils", "1.0.0", registryRelease("name: utils\n"))
	testutil.PushRelease(t, ctx, client, "acme.extras", "1.0.0", registryRelease("name: extras\n"))

	rootDir := testutil.WriteManifest(t, filepath.Join(t.TempDir(), "app"), `name: app
dependencies:
  - id: acme.utils
    requirement:
      from: 1.0.0
  - id: acme.extras
    requirement:
      from: 1.0.0
`)

	config := testConfig(t)
	w := openWorkspace(t, config, rootDir, workspace.Options{Registry: client})
	res, err := w.Resolve(ctx, workspace.ResolveOptions{})
	require.NoError(t, err)
	_, ok := res.State.Dependency("acme.extras")
	require.True(t, ok)

	// shrink the root manifest and resolve again
	testutil.WriteManifest(t, rootDir, `name: app
dependencies:
  - id: acme.utils
    requirement:
      from: 1.0.0
`)
	w = openWorkspace(t, config, rootDir, workspace.Options{Registry: client})
	res, err = w.Resolve(ctx, workspace.ResolveOptions{})
	require.NoError(t, err)

	_, ok = res.State.Dependency("acme.extras")
	assert.False(t, ok)
	_, ok = res.State.Dependency("acme.utils")
	assert.True(t, ok)
}
