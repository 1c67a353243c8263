// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pins persists resolved dependency versions as a schema-versioned
// JSON lockfile. Locations are stored in their canonical (un-mirrored) form
// so the file can be shared between workspaces with different mirrors.
package pins

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/schema"
)

const (
	CurrentSchemaVersion schema.DocumentVersion = 3
	OldestSchemaVersion  schema.DocumentVersion = 1

	FileName = "package-pins.json"
)

// PinState carries exactly the coordinates the resolution chose: a version
// for registry and versioned source-control pins, branch plus revision for
// branch pins, a bare revision otherwise.
type PinState struct {
	Version  string `json:"version,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Revision string `json:"revision,omitempty"`
}

type Pin struct {
	Identity identity.PackageIdentity `json:"identity"`
	Kind     identity.Kind            `json:"kind"`
	Location string                   `json:"location"`
	State    PinState                 `json:"state"`
}

func (p Pin) Reference() identity.PackageReference {
	return identity.PackageReference{
		Identity: p.Identity,
		Kind:     p.Kind,
		Location: p.Location,
	}
}

// Document is the lockfile: the pins plus an optional content hash of the
// root manifests that produced them, for staleness detection.
type Document struct {
	Version    schema.DocumentVersion `json:"version"`
	Pins       []Pin                  `json:"pins"`
	OriginHash string                 `json:"originHash,omitempty"`
}

func NewDocument() *Document {
	return &Document{Version: CurrentSchemaVersion}
}

func (d *Document) Pin(id identity.PackageIdentity) (Pin, bool) {
	for _, p := range d.Pins {
		if p.Identity == id {
			return p, true
		}
	}
	return Pin{}, false
}

// Add inserts or replaces the pin for its identity.
func (d *Document) Add(pin Pin) {
	for i, p := range d.Pins {
		if p.Identity == pin.Identity {
			d.Pins[i] = pin
			return
		}
	}
	d.Pins = append(d.Pins, pin)
}

// Stale reports whether the recorded origin hash disagrees with the given
// one. A document without a hash is never considered stale on that basis.
func (d *Document) Stale(originHash string) bool {
	return d.OriginHash != "" && d.OriginHash != originHash
}

func (d *Document) normalize() {
	slices.SortFunc(d.Pins, func(a, b Pin) int {
		return strings.Compare(a.Identity.String(), b.Identity.String())
	})
}

// CorruptPinsError is raised for unparseable documents or unknown schema
// versions, naming the file and the way out.
type CorruptPinsError struct {
	Path  string
	Cause error
}

func (e *CorruptPinsError) Error() string {
	return fmt.Sprintf("pins file at %q is not readable (%s); fix the file or delete it to re-resolve from scratch", e.Path, e.Cause.Error())
}

func (e *CorruptPinsError) Unwrap() error {
	return e.Cause
}

// v1 predates package identities: pins were keyed by declared package name
// and a repository URL.
type v1Document struct {
	Version schema.DocumentVersion `json:"version"`
	Pins    []v1Pin                `json:"pins"`
}

type v1Pin struct {
	Package       string   `json:"package"`
	RepositoryURL string   `json:"repositoryURL"`
	State         PinState `json:"state"`
}

// v2 introduced identity/kind/location; v3 added originHash on top, so the
// current document type reads both.
func decode(raw []byte, path string) (*Document, error) {
	var probe struct {
		Version schema.DocumentVersion `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &CorruptPinsError{Path: path, Cause: err}
	}
	if err := probe.Version.ValidateRange(OldestSchemaVersion, CurrentSchemaVersion); err != nil {
		return nil, &CorruptPinsError{Path: path, Cause: err}
	}

	if probe.Version == 1 {
		var doc v1Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &CorruptPinsError{Path: path, Cause: err}
		}
		return migrateV1(doc), nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &CorruptPinsError{Path: path, Cause: err}
	}
	doc.Version = CurrentSchemaVersion
	return &doc, nil
}

func migrateV1(doc v1Document) *Document {
	out := NewDocument()
	for _, p := range doc.Pins {
		ref := identity.NewRemoteSourceControlReference(p.RepositoryURL)
		out.Pins = append(out.Pins, Pin{
			Identity: ref.Identity,
			Kind:     identity.KindRemoteSourceControl,
			Location: p.RepositoryURL,
			State:    p.State,
		})
	}
	return out
}
