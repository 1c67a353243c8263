// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package wpmconfig

const envVarPrefix = "WPM_"

const (
	// WpmHomeEnvVar
	// WPM_HOME is the absolute path to the `wpm` home directory
	WpmHomeEnvVar = envVarPrefix + "HOME"

	// PackageDirEnvVar
	// WPM_PACKAGE is a path to a package directory.
	// This allows running a command in a package context without changing directory
	PackageDirEnvVar = envVarPrefix + "PACKAGE"

	// OciRegistryEnvVar
	// WPM_REGISTRY overrides the OCI registry serving package releases
	OciRegistryEnvVar = envVarPrefix + "REGISTRY"

	// NetrcPathEnvVar
	// WPM_NETRC overrides the netrc file used for registry credentials
	// 	default: $HOME/.netrc
	NetrcPathEnvVar = envVarPrefix + "NETRC"

	// AllowInsecureRegistryEnvVar
	// WPM_INSECURE_REGISTRY allows an insecure registry to be used (http instead of https, and without auth)
	AllowInsecureRegistryEnvVar = envVarPrefix + "INSECURE_REGISTRY"

	// LogLevelEnvVar
	// WPM_LOG_LEVEL sets the log level.
	// 	Default: info
	//  Possible values: info error warning debug
	LogLevelEnvVar = envVarPrefix + "LOG_LEVEL"

	// SwizzlePolicyEnvVar
	// WPM_SWIZZLE sets the source-control/registry unification policy.
	//  Possible values: disabled identity swizzle
	SwizzlePolicyEnvVar = envVarPrefix + "SWIZZLE"

	// EnableAllTraitsEnvVar
	// WPM_ENABLE_ALL_TRAITS activates every declared trait of every package
	EnableAllTraitsEnvVar = envVarPrefix + "ENABLE_ALL_TRAITS"
)
