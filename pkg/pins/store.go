// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pins

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/utils"
)

// Store reads and writes the pins file. Mirror substitution is reversed on
// save and re-applied on load, so the file always carries canonical
// locations while in-memory pins carry effective ones.
type Store struct {
	path    string
	mirrors *identity.Mirrors

	mu     sync.Mutex
	loaded *Document
}

func NewStore(path string, mirrors *identity.Mirrors) *Store {
	if mirrors == nil {
		mirrors = identity.NewMirrors()
	}
	return &Store{path: path, mirrors: mirrors}
}

// Load returns the pins with mirrors applied. A missing file yields an
// empty document.
func (s *Store) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded != nil {
		return s.loaded, nil
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.loaded = NewDocument()
		return s.loaded, nil
	}
	if err != nil {
		return nil, err
	}

	doc, err := decode(raw, s.path)
	if err != nil {
		return nil, err
	}
	for i, p := range doc.Pins {
		mirrored := s.mirrors.Apply(p.Reference())
		doc.Pins[i].Location = mirrored.Location
	}
	s.loaded = doc
	return s.loaded, nil
}

// Save persists the document sorted by identity, with every location
// restored to its canonical pre-mirror form.
func (s *Store) Save(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	persisted := &Document{
		Version:    CurrentSchemaVersion,
		OriginHash: doc.OriginHash,
	}
	for _, p := range doc.Pins {
		canonical := s.mirrors.Unapply(p.Reference())
		p.Location = canonical.Location
		persisted.Pins = append(persisted.Pins, p)
	}
	persisted.normalize()

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	err = utils.WithFileLock(ctx, s.path+".lock", func() error {
		return utils.WriteFileAtomic(s.path, data, 0644)
	})
	if err != nil {
		return fmt.Errorf("failed to save pins to %q: %w", s.path, err)
	}
	s.loaded = nil
	return nil
}
