// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
)

// SwizzlePolicy governs whether a source-control locator and a registry
// coordinate known to denote the same package are unified.
type SwizzlePolicy string

const (
	// SwizzleDisabled treats the two as genuinely distinct packages.
	SwizzleDisabled SwizzlePolicy = "disabled"
	// SwizzleIdentity keeps both as declared but detects conflicting identity.
	SwizzleIdentity SwizzlePolicy = "identity"
	// SwizzleEnabled rewrites source-control references to their registry
	// equivalent wherever an equivalence is known.
	SwizzleEnabled SwizzlePolicy = "swizzle"
)

func ParseSwizzlePolicy(s string) (SwizzlePolicy, error) {
	switch SwizzlePolicy(s) {
	case SwizzleDisabled, SwizzleIdentity, SwizzleEnabled:
		return SwizzlePolicy(s), nil
	case "":
		return SwizzleDisabled, nil
	}
	return "", fmt.Errorf("unknown swizzle policy %q. Must be one of ('disabled', 'identity', 'swizzle')", s)
}

// Resolver derives canonical identities from locators, applying the
// configured mirrors first and, under the swizzle policy, rewriting
// source-control references to their known registry equivalent.
type Resolver struct {
	Mirrors *Mirrors
	Policy  SwizzlePolicy

	// equivalences maps a remote source-control location to the registry
	// identity known to serve the same package.
	equivalences map[string]PackageIdentity
}

func NewResolver(mirrors *Mirrors, policy SwizzlePolicy) *Resolver {
	if mirrors == nil {
		mirrors = NewMirrors()
	}
	return &Resolver{
		Mirrors:      mirrors,
		Policy:       policy,
		equivalences: map[string]PackageIdentity{},
	}
}

// AddEquivalence records that the given source-control URL serves the
// package known to the registry as id.
func (r *Resolver) AddEquivalence(sourceControlURL string, id PackageIdentity) error {
	if !id.IsRegistry() {
		return fmt.Errorf("equivalence target %q is not a registry identity", id)
	}
	if existing, ok := r.equivalences[sourceControlURL]; ok && existing != id {
		return fmt.Errorf("%q is already known as registry package %q", sourceControlURL, existing)
	}
	r.equivalences[sourceControlURL] = id
	return nil
}

// RegistryEquivalent answers the registry identity known for a
// source-control location, if any.
func (r *Resolver) RegistryEquivalent(sourceControlURL string) (PackageIdentity, bool) {
	id, ok := r.equivalences[sourceControlURL]
	return id, ok
}

// Resolve normalizes a reference: mirrors are applied first, then, when the
// policy is 'swizzle' and an equivalence is known, a remote source-control
// reference is substituted wholesale with its registry form.
func (r *Resolver) Resolve(ref PackageReference) PackageReference {
	mirrored := r.Mirrors.Apply(ref)

	if r.Policy != SwizzleEnabled || mirrored.Kind != KindRemoteSourceControl {
		return mirrored
	}
	id, ok := r.equivalences[mirrored.Location]
	if !ok {
		// the pre-mirror location may be the one the equivalence is known by
		id, ok = r.equivalences[ref.Location]
	}
	if !ok {
		return mirrored
	}
	swizzled := NewRegistryReference(id)
	swizzled.Name = mirrored.Name
	return swizzled
}

// SameUnderPolicy reports whether two references denote the same package
// once mirrors and swizzling are taken into account.
func (r *Resolver) SameUnderPolicy(a, b PackageReference) bool {
	ra, rb := r.Resolve(a), r.Resolve(b)
	if ra.Equal(rb) || ra.LocatesSamePackage(rb) {
		return true
	}
	if r.Policy == SwizzleDisabled {
		return false
	}
	// under 'identity' the equivalence table still tells us the two sides
	// are one package even though we don't rewrite either
	if id, ok := r.registryIdentityOf(ra); ok {
		if other, ok := r.registryIdentityOf(rb); ok {
			return id == other
		}
	}
	return false
}

func (r *Resolver) registryIdentityOf(ref PackageReference) (PackageIdentity, bool) {
	switch ref.Kind {
	case KindRegistry:
		return ref.Identity, true
	case KindRemoteSourceControl:
		id, ok := r.equivalences[ref.Location]
		return id, ok
	case KindRoot, KindFileSystem, KindLocalSourceControl:
		return "", false
	}
	return "", false
}
