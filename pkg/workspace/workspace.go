// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package workspace orchestrates a resolution run end to end: root manifest
// in, dependency graph, version solution, checkouts and downloads recorded
// in the workspace state, pins written back out.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"daml.com/x/wpm/pkg/diagnostics"
	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/pins"
	"daml.com/x/wpm/pkg/registry"
	"daml.com/x/wpm/pkg/sourcecontrol"
	"daml.com/x/wpm/pkg/state"
	"daml.com/x/wpm/pkg/utils"
	"daml.com/x/wpm/pkg/wpmconfig"
)

// StateDirName is the per-workspace metadata directory under the root
// package's directory.
const StateDirName = ".wpm"

type Workspace struct {
	config  *wpmconfig.Config
	rootDir string
	root    *manifest.Manifest

	mirrors  *identity.Mirrors
	resolver *identity.Resolver
	registry registry.Client
	git      *sourcecontrol.Client

	stateStore *state.Store
	pinsStore  *pins.Store
	sink       diagnostics.Sink
}

// Options override the collaborators derived from configuration, mainly
// for tests.
type Options struct {
	Registry registry.Client
	Git      *sourcecontrol.Client
	Sink     diagnostics.Sink
}

// Open loads the root package at rootDir and wires the workspace's stores
// and capabilities.
func Open(config *wpmconfig.Config, rootDir string, opts Options) (*Workspace, error) {
	rootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	root, err := manifest.Load(filepath.Join(rootDir, manifest.FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to load root package at %q: %w", rootDir, err)
	}

	mirrors, err := config.LoadMirrors()
	if err != nil {
		return nil, err
	}
	policy, err := config.SwizzlePolicy()
	if err != nil {
		return nil, err
	}
	equivalences, err := config.LoadEquivalences()
	if err != nil {
		return nil, err
	}
	resolver := identity.NewResolver(mirrors, policy)
	for source, id := range equivalences {
		if err := resolver.AddEquivalence(source, id); err != nil {
			return nil, err
		}
	}

	sink := opts.Sink
	if sink == nil {
		sink = diagnostics.SlogSink{}
	}

	regClient := opts.Registry
	if regClient == nil {
		regClient, err = registry.New(config.Registry, config.NetrcPath, config.Insecure)
		if err != nil {
			return nil, err
		}
	}
	git := opts.Git
	if git == nil {
		git = sourcecontrol.NewClient(config.CheckoutsPath)
	}

	return &Workspace{
		config:     config,
		rootDir:    rootDir,
		root:       root,
		mirrors:    mirrors,
		resolver:   resolver,
		registry:   regClient,
		git:        git,
		stateStore: state.NewStore(filepath.Join(rootDir, StateDirName, state.FileName), sink),
		pinsStore:  pins.NewStore(filepath.Join(rootDir, pins.FileName), mirrors),
		sink:       sink,
	}, nil
}

// OpenCurrent opens the workspace whose root package encloses the working
// directory.
func OpenCurrent(config *wpmconfig.Config, opts Options) (*Workspace, error) {
	manifestPath, found, err := wpmconfig.GetPackageAbsolutePath()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no %s found in the current directory or any parent", manifest.FileName)
	}
	return Open(config, filepath.Dir(manifestPath), opts)
}

func (w *Workspace) Root() *manifest.Manifest {
	return w.root
}

func (w *Workspace) RootReference() identity.PackageReference {
	ref := identity.NewRootReference(w.root.DisplayName, w.rootDir)
	ref.Name = w.root.DisplayName
	return ref
}

// State returns the loaded workspace state.
func (w *Workspace) State() (*state.WorkspaceState, error) {
	return w.stateStore.Load()
}

// Pins returns the loaded pins document.
func (w *Workspace) Pins() (*pins.Document, error) {
	return w.pinsStore.Load()
}

// originHash fingerprints the root manifest source, for pins staleness.
func (w *Workspace) originHash() (string, error) {
	raw, err := os.ReadFile(filepath.Join(w.rootDir, manifest.FileName))
	if err != nil {
		return "", err
	}
	return utils.ContentHash(raw), nil
}
