// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package render turns a manifest model back into canonical manifest source
// text. Rendering then loading is a fixed point on every tracked field,
// which the workspace uses to verify round-trip fidelity of the model.
package render

import (
	"bytes"

	"daml.com/x/wpm/pkg/manifest"
	"github.com/goccy/go-yaml"
)

type Options struct {
	// Rounding controls how the tools-version header is emitted.
	Rounding manifest.RoundingPolicy
}

// Render produces the canonical source text for a manifest: the
// tools-version header line followed by the YAML body.
func Render(m *manifest.Manifest, opts Options) ([]byte, error) {
	if opts.Rounding == "" {
		opts.Rounding = manifest.RoundingAutomatic
	}

	body, err := yaml.Marshal(m)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(m.ToolsVersion.Header(opts.Rounding))
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes(), nil
}
