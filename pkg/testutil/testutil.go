// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"daml.com/x/wpm/pkg/identity"
	wpmregistry "daml.com/x/wpm/pkg/registry"
	"daml.com/x/wpm/pkg/wpmconfig"
	"github.com/Masterminds/semver/v3"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// TestdataPath gives absolute path within the common 'testdata'
func TestdataPath(t *testing.T, path ...string) string {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)

	p := []string{filepath.Dir(file), "testdata"}
	p = append(p, path...)
	return filepath.Join(p...)
}

// StartRegistry spins up an in-process OCI registry and points the
// environment at it, so wpmconfig.Get picks it up.
func StartRegistry(t *testing.T) (client *wpmregistry.OCIClient, reg *httptest.Server) {
	reg = httptest.NewServer(registry.New())
	t.Cleanup(reg.Close)
	host := strings.TrimPrefix(reg.URL, "http://")

	t.Setenv(wpmconfig.OciRegistryEnvVar, host)
	t.Setenv(wpmconfig.AllowInsecureRegistryEnvVar, "true")

	client, err := wpmregistry.New(host, "", true)
	require.NoError(t, err)
	return client, reg
}

// PushRelease publishes one package version to the test registry.
func PushRelease(t *testing.T, ctx context.Context, client *wpmregistry.OCIClient, id string, version string, release wpmregistry.Release) {
	v, err := semver.NewVersion(version)
	require.NoError(t, err)
	pkgID, err := identity.ParseRegistryIdentity(id)
	require.NoError(t, err)
	_, err = client.Publish(ctx, pkgID, v, release)
	require.NoError(t, err)
}

// PackageManifest renders a package.yaml body with the tools-version
// header, saving callers the boilerplate.
func PackageManifest(body string) []byte {
	return []byte("// swift-tools-version:5.9\napiVersion: digitalasset.com/v1\nkind: Package\n" + body)
}

// WriteManifest drops a manifest into dir and returns dir.
func WriteManifest(t *testing.T, dir string, body string) string {
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.yaml"), PackageManifest(body), 0o644))
	return dir
}

// CommonSetupSuite points WPM_HOME at a fresh temp dir before every test,
// otherwise tests would share the default ~/.wpm.
type CommonSetupSuite struct {
	suite.Suite
}

func (suite *CommonSetupSuite) SetupTest() {
	suite.T().Setenv(wpmconfig.WpmHomeEnvVar, suite.T().TempDir())
}

func Context(t *testing.T) context.Context {
	ctx, stopFn := context.WithCancel(context.Background())
	t.Cleanup(stopFn)
	return ctx
}

var OS = func() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "unix"
}()
