// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pkggraph

import (
	"context"
	"fmt"
	"sync"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"golang.org/x/sync/singleflight"
)

// ManifestLoader is the external capability that materializes a manifest for
// a locator, constrained to the declared version window.
type ManifestLoader interface {
	Load(ctx context.Context, ref identity.PackageReference, req *manifest.Requirement) (*manifest.Manifest, error)
}

// memoLoader deduplicates loads keyed by (identity, requirement): a second
// concurrent request for the same key awaits the first in-flight load
// instead of issuing another fetch, and completed loads are cached for the
// rest of the session.
type memoLoader struct {
	loader ManifestLoader
	group  singleflight.Group

	mu    sync.Mutex
	cache map[string]*manifest.Manifest
}

func newMemoLoader(loader ManifestLoader) *memoLoader {
	return &memoLoader{
		loader: loader,
		cache:  map[string]*manifest.Manifest{},
	}
}

func loadKey(ref identity.PackageReference, req *manifest.Requirement) string {
	if req == nil {
		return ref.Identity.String()
	}
	return fmt.Sprintf("%s@%s", ref.Identity, req.String())
}

func (l *memoLoader) Load(ctx context.Context, ref identity.PackageReference, req *manifest.Requirement) (*manifest.Manifest, error) {
	key := loadKey(ref, req)

	l.mu.Lock()
	if m, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return m, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do(key, func() (any, error) {
		m, err := l.loader.Load(ctx, ref, req)
		if err != nil {
			return nil, &LoadError{Ref: ref, Cause: err}
		}
		l.mu.Lock()
		l.cache[key] = m
		l.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*manifest.Manifest), nil
}
