// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package versionresolver

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/pkggraph"
	"github.com/Masterminds/semver/v3"
)

const (
	CodeUnsatisfiable = "RESOLUTION_UNSATISFIABLE"
	CodeRetrieval     = "RELEASE_METADATA_RETRIEVAL"
)

// ResolutionError explains an unsatisfiable constraint set as one
// deterministic chain of depends-on clauses, deepest conflict last.
type ResolutionError struct {
	Identity      identity.PackageIdentity
	Contributions []pkggraph.Constraint
	// Available lists the versions that existed but satisfied nothing,
	// empty when the conflict is structural.
	Available []*semver.Version
}

func newConflict(id identity.PackageIdentity, constraints []pkggraph.Constraint) *ResolutionError {
	return &ResolutionError{Identity: id, Contributions: constraints}
}

func (e *ResolutionError) Error() string {
	ordered := slices.Clone(e.Contributions)
	// lexicographic by declarer, so the same conflict always renders the
	// same sentence
	slices.SortStableFunc(ordered, func(a, b pkggraph.Constraint) int {
		return strings.Compare(a.DeclaredBy.String(), b.DeclaredBy.String())
	})

	clauses := make([]string, 0, len(ordered))
	for i, c := range ordered {
		verb := "depends on"
		if i > 0 && ordered[i-1].DeclaredBy != c.DeclaredBy {
			verb = "practically depends on"
		}
		clauses = append(clauses, fmt.Sprintf("'%s' %s '%s' %s", c.DeclaredBy, verb, e.Identity, c.Requirement))
	}

	msg := "Dependencies could not be resolved because " + strings.Join(clauses, " and ")
	if len(e.Available) > 0 {
		published := make([]string, len(e.Available))
		for i, v := range e.Available {
			published[i] = v.String()
		}
		msg += fmt.Sprintf(", and no published version of '%s' among [%s] satisfies all of them", e.Identity, strings.Join(published, ", "))
	}
	return msg + "."
}

// RetrievalError names the host and package whose release metadata could not
// be fetched. Sibling packages keep resolving; this surfaces afterwards.
type RetrievalError struct {
	Ref   identity.PackageReference
	Cause error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("failed to fetch release metadata for package %q from %s: %s",
		e.Ref.Identity, hostOf(e.Ref.Location), e.Cause.Error())
}

func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

func hostOf(location string) string {
	if u, err := url.Parse(location); err == nil && u.Host != "" {
		return u.Host
	}
	return location
}
