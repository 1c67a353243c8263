// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/json"
	"fmt"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/schema"
)

// CorruptStateError is raised for documents this build cannot read at all:
// unparseable JSON or a schema version outside the supported range. The
// message names the file and tells the user what to do about it.
type CorruptStateError struct {
	Path  string
	Cause error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("workspace state at %q is not readable (%s); fix the file or delete it to start fresh", e.Path, e.Cause.Error())
}

func (e *CorruptStateError) Unwrap() error {
	return e.Cause
}

// v1 was a flat list without locator kind tagging.
type v1Document struct {
	Version      schema.DocumentVersion `json:"version"`
	Dependencies []v1Dependency         `json:"dependencies"`
}

type v1Dependency struct {
	Identity identity.PackageIdentity `json:"identity"`
	Location string                   `json:"location"`
	State    DependencyState          `json:"state"`
	Subpath  string                   `json:"subpath,omitempty"`
}

// v2 introduced the nested packageRef with explicit kind; v3 added the
// artifacts collection, so the current document type reads v2 as well.
type v2Document struct {
	Version      schema.DocumentVersion `json:"version"`
	Dependencies []ManagedDependency    `json:"dependencies"`
}

// decode parses a raw document of any supported schema version and migrates
// it forward to the current shape.
func decode(raw []byte, path string) (*WorkspaceState, error) {
	var probe struct {
		Version schema.DocumentVersion `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &CorruptStateError{Path: path, Cause: err}
	}
	if err := probe.Version.ValidateRange(OldestSchemaVersion, CurrentSchemaVersion); err != nil {
		return nil, &CorruptStateError{Path: path, Cause: err}
	}

	switch probe.Version {
	case 1:
		var doc v1Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &CorruptStateError{Path: path, Cause: err}
		}
		return migrateV2(migrateV1(doc)), nil
	case 2:
		var doc v2Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &CorruptStateError{Path: path, Cause: err}
		}
		return migrateV2(doc), nil
	default:
		var doc WorkspaceState
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &CorruptStateError{Path: path, Cause: err}
		}
		return &doc, nil
	}
}

// migrateV1 reconstructs the locator kind v1 never recorded, from the
// materialization state.
func migrateV1(doc v1Document) v2Document {
	out := v2Document{Version: 2}
	for _, d := range doc.Dependencies {
		out.Dependencies = append(out.Dependencies, ManagedDependency{
			PackageRef: PackageRef{
				Identity: d.Identity,
				Kind:     kindForState(d.State.Name),
				Location: d.Location,
			},
			State:   d.State,
			Subpath: d.Subpath,
		})
	}
	return out
}

func kindForState(name DependencyStateName) identity.Kind {
	switch name {
	case StateRegistryDownload:
		return identity.KindRegistry
	case StateLocal, StateEdited:
		return identity.KindFileSystem
	case StateCheckout:
		return identity.KindRemoteSourceControl
	}
	return identity.KindRemoteSourceControl
}

func migrateV2(doc v2Document) *WorkspaceState {
	return &WorkspaceState{
		Version:      CurrentSchemaVersion,
		Dependencies: doc.Dependencies,
	}
}
