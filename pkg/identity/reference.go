// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"slices"
)

// Kind is the closed set of locator kinds a PackageReference can carry.
// Every consumer switches exhaustively over it; adding a kind is a
// compile-visible change at each switch.
type Kind string

const (
	// KindRoot marks a root package of the current resolution.
	KindRoot Kind = "root"
	// KindFileSystem is a plain directory that is not under source control.
	KindFileSystem Kind = "fileSystem"
	// KindLocalSourceControl is a source-control checkout on the local filesystem.
	KindLocalSourceControl Kind = "localSourceControl"
	// KindRemoteSourceControl is a fetchable source-control URL.
	KindRemoteSourceControl Kind = "remoteSourceControl"
	// KindRegistry is a "scope.name" registry coordinate.
	KindRegistry Kind = "registry"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRoot, KindFileSystem, KindLocalSourceControl, KindRemoteSourceControl, KindRegistry:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown package reference kind %q", s)
}

// PackageReference names one package and where it comes from. Immutable:
// mirror/swizzle transformations substitute the whole value, never mutate it.
type PackageReference struct {
	Identity PackageIdentity
	Kind     Kind
	// Location is the locator appropriate for the kind: an absolute path,
	// a source-control URL, or a "scope.name" registry coordinate.
	Location string
	// AlternateLocations are other known locators for the same package
	// (remote source control only).
	AlternateLocations []string
	// Name is the package's declared display name, when known.
	Name string
}

func (r PackageReference) String() string {
	return fmt.Sprintf("%s (%s)", r.Identity, r.Location)
}

// Equal ignores Name and AlternateLocations: two references denote the same
// node when identity, kind and canonical location agree.
func (r PackageReference) Equal(other PackageReference) bool {
	return r.Identity == other.Identity && r.Kind == other.Kind && r.Location == other.Location
}

// LocatesSamePackage is laxer than Equal: it also accepts a match through
// either side's alternate locations.
func (r PackageReference) LocatesSamePackage(other PackageReference) bool {
	if r.Location == other.Location {
		return true
	}
	return slices.Contains(r.AlternateLocations, other.Location) ||
		slices.Contains(other.AlternateLocations, r.Location)
}

func (r PackageReference) WithName(name string) PackageReference {
	r.Name = name
	return r
}

func NewRootReference(name, path string) PackageReference {
	return PackageReference{
		Identity: FromPath(path),
		Kind:     KindRoot,
		Location: path,
		Name:     name,
	}
}

func NewFileSystemReference(path string) PackageReference {
	return PackageReference{
		Identity: FromPath(path),
		Kind:     KindFileSystem,
		Location: path,
	}
}

func NewLocalSourceControlReference(path string) PackageReference {
	return PackageReference{
		Identity: FromPath(path),
		Kind:     KindLocalSourceControl,
		Location: path,
	}
}

func NewRemoteSourceControlReference(url string, alternates ...string) PackageReference {
	return PackageReference{
		Identity:           FromURL(url),
		Kind:               KindRemoteSourceControl,
		Location:           url,
		AlternateLocations: alternates,
	}
}

func NewRegistryReference(id PackageIdentity) PackageReference {
	return PackageReference{
		Identity: id,
		Kind:     KindRegistry,
		Location: id.String(),
	}
}
