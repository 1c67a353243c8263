// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"slices"

	"daml.com/x/wpm/pkg/utils/stringset"
	"github.com/samber/lo"
)

// Mirrors is an injective original -> replacement locator table with a
// deterministic reverse index. When several originals point to the same
// mirror, the reverse lookup answers with the alphabetically-first original,
// never an incidental map-iteration pick, so repeated runs agree.
type Mirrors struct {
	forward map[string]string
	// reverse holds every original per mirror target, kept sorted
	reverse map[string][]string
}

func NewMirrors() *Mirrors {
	return &Mirrors{
		forward: map[string]string{},
		reverse: map[string][]string{},
	}
}

// Set registers mirror as the replacement for original.
// An original can have at most one mirror.
func (m *Mirrors) Set(original, mirror string) error {
	if original == "" || mirror == "" {
		return fmt.Errorf("mirror entries must have a non-empty original and replacement")
	}
	if existing, ok := m.forward[original]; ok && existing != mirror {
		return fmt.Errorf("%q is already mirrored to %q", original, existing)
	}
	m.forward[original] = mirror

	originals := m.reverse[mirror]
	if !slices.Contains(originals, original) {
		originals = append(originals, original)
		slices.Sort(originals)
		m.reverse[mirror] = originals
	}
	return nil
}

func (m *Mirrors) Unset(original string) {
	mirror, ok := m.forward[original]
	if !ok {
		return
	}
	delete(m.forward, original)

	originals := slices.DeleteFunc(m.reverse[mirror], func(s string) bool { return s == original })
	if len(originals) == 0 {
		delete(m.reverse, mirror)
	} else {
		m.reverse[mirror] = originals
	}
}

// Mirror answers the replacement locator for original, if one is configured.
func (m *Mirrors) Mirror(original string) (string, bool) {
	mirror, ok := m.forward[original]
	return mirror, ok
}

// Original answers the canonical locator a mirror stands for.
func (m *Mirrors) Original(mirror string) (string, bool) {
	originals, ok := m.reverse[mirror]
	if !ok || len(originals) == 0 {
		return "", false
	}
	return originals[0], true
}

// Apply substitutes the mirror locator into a reference, if one is
// configured for its location. Identity is preserved: the mirror serves the
// same package.
func (m *Mirrors) Apply(ref PackageReference) PackageReference {
	if ref.Kind != KindRemoteSourceControl && ref.Kind != KindRegistry {
		return ref
	}
	mirror, ok := m.forward[ref.Location]
	if !ok {
		return ref
	}
	mirrored := ref
	mirrored.Location = mirror
	if !slices.Contains(mirrored.AlternateLocations, ref.Location) {
		mirrored.AlternateLocations = append(slices.Clone(ref.AlternateLocations), ref.Location)
	}
	return mirrored
}

// Unapply restores the canonical (original) locator before persisting, so
// pins and state never leak the mirrored URL.
func (m *Mirrors) Unapply(ref PackageReference) PackageReference {
	original, ok := m.Original(ref.Location)
	if !ok {
		return ref
	}
	restored := ref
	restored.Location = original
	restored.AlternateLocations = slices.DeleteFunc(slices.Clone(ref.AlternateLocations), func(s string) bool {
		return s == original
	})
	if len(restored.AlternateLocations) == 0 {
		restored.AlternateLocations = nil
	}
	return restored
}

// Originals lists every configured original locator, sorted.
func (m *Mirrors) Originals() []string {
	return stringset.New(lo.Keys(m.forward)...).Sorted()
}
