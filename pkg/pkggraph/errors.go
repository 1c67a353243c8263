// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pkggraph

import (
	"fmt"
	"strings"

	"daml.com/x/wpm/pkg/identity"
)

const (
	CodeConflictingIdentity = "CONFLICTING_IDENTITY"
	CodeDuplicateProduct    = "DUPLICATE_PRODUCT"
	CodeDuplicateTarget     = "DUPLICATE_TARGET"
	CodeDependencyCycle     = "DEPENDENCY_CYCLE"
	CodeManifestLoad        = "MANIFEST_LOAD"
)

// ConflictingIdentityError reports two declared dependencies that resolve to
// the same identity through locators the configured policy cannot reconcile.
type ConflictingIdentityError struct {
	Identity identity.PackageIdentity
	LocatorA string
	LocatorB string
}

func (e *ConflictingIdentityError) Error() string {
	return fmt.Sprintf("conflicting identity %q: declared as %q and as %q, which are not known to be the same package",
		e.Identity, e.LocatorA, e.LocatorB)
}

// DuplicateProductError is raised when two distinct packages declare a
// product with the same name. Always fatal.
type DuplicateProductError struct {
	Product  string
	PackageA identity.PackageIdentity
	PackageB identity.PackageIdentity
}

func (e *DuplicateProductError) Error() string {
	return fmt.Sprintf("product %q is declared by both package %q and package %q", e.Product, e.PackageA, e.PackageB)
}

// DuplicateTargetError reports the same target name appearing in a registry
// package and a source-control package that should be one package. Fatal
// under the 'disabled' swizzle policy, a warning otherwise.
type DuplicateTargetError struct {
	Target          string
	RegistryPackage identity.PackageIdentity
	SourcePackage   identity.PackageIdentity
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("multiple similar targets %q appear in registry package %q and source-control package %q",
		e.Target, e.RegistryPackage, e.SourcePackage)
}

// CycleError reports a package that transitively depends on itself.
type CycleError struct {
	Path []identity.PackageIdentity
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = id.String()
	}
	return "cyclic dependency declaration found: " + strings.Join(parts, " -> ")
}

// LoadError names the package whose manifest could not be loaded.
type LoadError struct {
	Ref   identity.PackageReference
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load manifest for %s: %s", e.Ref, e.Cause.Error())
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
