// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package identity normalizes dependency locators (source-control URLs,
// filesystem paths, registry coordinates) into canonical, comparable
// package identities, and applies the configured mirror substitutions.
package identity

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PackageIdentity is a canonical, case-insensitive, locator-independent key
// uniquely naming a package within a resolution session. Two locators that
// denote the same package (via mirrors or alternate URLs) resolve to one
// identity; two different packages never collide.
type PackageIdentity string

func (id PackageIdentity) String() string {
	return string(id)
}

// IsRegistry reports whether the identity has registry form, i.e. "scope.name".
func (id PackageIdentity) IsRegistry() bool {
	scope, name, ok := strings.Cut(string(id), ".")
	return ok && validScope(scope) && validName(name) && !strings.Contains(name, ".")
}

// ScopeAndName splits a registry-form identity into its scope and name.
func (id PackageIdentity) ScopeAndName() (scope, name string, ok bool) {
	if !id.IsRegistry() {
		return "", "", false
	}
	scope, name, _ = strings.Cut(string(id), ".")
	return scope, name, true
}

// FromURL derives the identity of a source-control locator: the last path
// component, stripped of a trailing ".git" suffix and lowercased.
//
//	https://example.com/org/Repo.git -> "repo"
//	git@example.com:org/Repo.git     -> "repo"
func FromURL(location string) PackageIdentity {
	s := strings.TrimSuffix(location, "/")

	// scp-style git locators use ':' instead of '/' before the path
	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".git")
	return PackageIdentity(strings.ToLower(s))
}

// FromPath derives the identity of a filesystem locator from its last
// path component, lowercased.
func FromPath(path string) PackageIdentity {
	return PackageIdentity(strings.ToLower(filepath.Base(filepath.Clean(path))))
}

// FromScopeAndName builds a registry identity "scope.name".
func FromScopeAndName(scope, name string) (PackageIdentity, error) {
	if !validScope(scope) {
		return "", fmt.Errorf("invalid registry scope %q", scope)
	}
	if !validName(name) || strings.Contains(name, ".") {
		return "", fmt.Errorf("invalid registry package name %q", name)
	}
	return PackageIdentity(strings.ToLower(scope + "." + name)), nil
}

// ParseRegistryIdentity parses a "scope.name" string, validating both halves.
func ParseRegistryIdentity(s string) (PackageIdentity, error) {
	scope, name, ok := strings.Cut(s, ".")
	if !ok {
		return "", fmt.Errorf("invalid registry identity %q. expected the form '<scope>.<name>'", s)
	}
	return FromScopeAndName(scope, name)
}

func validScope(s string) bool {
	if len(s) == 0 || len(s) > 39 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' && i > 0 && i < len(s)-1:
		default:
			return false
		}
	}
	return true
}

func validName(s string) bool {
	if len(s) == 0 || len(s) > 100 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case (r == '-' || r == '_') && i > 0:
		default:
			return false
		}
	}
	return true
}
