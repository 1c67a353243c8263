// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"daml.com/x/wpm/pkg/diagnostics"
	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/utils"
)

const (
	CodeDuplicateDependencies = "STATE_DUPLICATE_DEPENDENCIES"
	CodeDuplicateArtifacts    = "STATE_DUPLICATE_ARTIFACTS"
)

// Store reads and writes the workspace state document. Loading is lazy and
// cached; saving writes a complete new document atomically, guarded by an
// advisory file lock against concurrent wpm processes.
type Store struct {
	path string
	sink diagnostics.Sink

	mu     sync.Mutex
	loaded *WorkspaceState
}

func NewStore(path string, sink diagnostics.Sink) *Store {
	if sink == nil {
		sink = diagnostics.SlogSink{}
	}
	return &Store{path: path, sink: sink}
}

// Load returns the current state, reading the file on first use. A missing
// file yields an empty state. Collections with duplicate keys are dropped
// with a warning rather than crashing; the rest of the document survives.
func (s *Store) Load() (*WorkspaceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded != nil {
		return s.loaded, nil
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.loaded = NewWorkspaceState()
		return s.loaded, nil
	}
	if err != nil {
		return nil, err
	}

	doc, err := decode(raw, s.path)
	if err != nil {
		return nil, err
	}
	s.dropDuplicates(doc)
	s.loaded = doc
	return s.loaded, nil
}

func (s *Store) dropDuplicates(doc *WorkspaceState) {
	depsSeen := map[identity.PackageIdentity]struct{}{}
	for _, d := range doc.Dependencies {
		if _, ok := depsSeen[d.PackageRef.Identity]; ok {
			s.sink.Emit(diagnostics.Warningf(CodeDuplicateDependencies,
				"workspace state at %q lists dependency %q more than once; discarding the dependencies section", s.path, d.PackageRef.Identity))
			doc.Dependencies = nil
			break
		}
		depsSeen[d.PackageRef.Identity] = struct{}{}
	}

	type artifactKey struct {
		id     identity.PackageIdentity
		target string
	}
	artifactsSeen := map[artifactKey]struct{}{}
	for _, a := range doc.Artifacts {
		key := artifactKey{a.PackageRef.Identity, a.TargetName}
		if _, ok := artifactsSeen[key]; ok {
			s.sink.Emit(diagnostics.Warningf(CodeDuplicateArtifacts,
				"workspace state at %q lists artifact %q/%q more than once; discarding the artifacts section", s.path, a.PackageRef.Identity, a.TargetName))
			doc.Artifacts = nil
			break
		}
		artifactsSeen[key] = struct{}{}
	}
}

// Save persists the given state as the current schema version, sorted by
// key so logically-identical states serialize byte-identically.
func (s *Store) Save(ctx context.Context, doc *WorkspaceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.Version = CurrentSchemaVersion
	doc.normalize()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	err = utils.WithFileLock(ctx, s.path+".lock", func() error {
		return utils.WriteFileAtomic(s.path, data, 0644)
	})
	if err != nil {
		return fmt.Errorf("failed to save workspace state to %q: %w", s.path, err)
	}
	s.loaded = doc
	return nil
}

func (s *Store) Path() string {
	return s.path
}
