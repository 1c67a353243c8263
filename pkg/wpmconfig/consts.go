// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package wpmconfig

const (
	WpmConfigFileName    = "wpm-config.yaml"
	MirrorsFileName      = "mirrors.yaml"
	EquivalencesFileName = "equivalences.yaml"

	DefaultOciRegistry = "europe-docker.pkg.dev/da-images/packages"

	UserAgentPrefix = "wpm"
)
