// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package wpmconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/utils"
	"github.com/goccy/go-yaml"
)

type Config struct {
	WpmHomePath string `yaml:"-"`

	CachePath string `yaml:"-"`
	// dir containing source-control clones, one per package identity
	CheckoutsPath string `yaml:"-"`
	// dir containing extracted registry downloads
	RegistryDownloadsPath string `yaml:"-"`
	// dir containing extracted binary artifacts
	ArtifactsPath string `yaml:"-"`

	Registry  string `yaml:"registry,omitempty"`
	NetrcPath string `yaml:"netrc-path,omitempty"`
	Insecure  bool   `yaml:"insecure,omitempty"`

	// Swizzle is the source-control/registry unification policy.
	// Defaults to disabled.
	Swizzle string `yaml:"swizzle,omitempty"`

	// PruneDependencies drops dependencies whose products no active target
	// uses.
	PruneDependencies bool `yaml:"prune-dependencies,omitempty"`
}

func (c *Config) EnsureDirs() error {
	return utils.EnsureDirs(c.WpmHomePath, c.CheckoutsPath, c.RegistryDownloadsPath, c.ArtifactsPath)
}

func (c *Config) SwizzlePolicy() (identity.SwizzlePolicy, error) {
	return identity.ParseSwizzlePolicy(c.Swizzle)
}

func Get() (*Config, error) {
	wpmHomePath, err := getWpmHomePath()
	if err != nil {
		return nil, err
	}
	return GetWithCustomHome(wpmHomePath)
}

func GetWithCustomHome(wpmHomePath string) (*Config, error) {
	config := Config{}

	// wpm-config.yaml is optional
	configFilePath := filepath.Join(wpmHomePath, WpmConfigFileName)
	fileInfo, err := os.Stat(configFilePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		if fileInfo.IsDir() {
			return nil, fmt.Errorf("%q is directory and not a file", configFilePath)
		}

		bytes, err := os.ReadFile(configFilePath)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(bytes, &config); err != nil {
			return nil, err
		}
	}

	if registry, ok := os.LookupEnv(OciRegistryEnvVar); ok {
		config.Registry = registry
	}
	if config.Registry == "" {
		config.Registry = DefaultOciRegistry
	}

	if netrcPath, ok := os.LookupEnv(NetrcPathEnvVar); ok {
		config.NetrcPath = netrcPath
	}
	if config.NetrcPath == "" {
		if home, ok := os.LookupEnv("HOME"); ok {
			config.NetrcPath = filepath.Join(home, ".netrc")
		}
	}

	insecure, ok, err := utils.BoolEnvVar(AllowInsecureRegistryEnvVar)
	if err != nil {
		return nil, err
	}
	if ok {
		config.Insecure = insecure
	}

	if swizzle, ok := os.LookupEnv(SwizzlePolicyEnvVar); ok {
		config.Swizzle = swizzle
	}
	if _, err := config.SwizzlePolicy(); err != nil {
		return nil, err
	}

	cacheDir := filepath.Join(wpmHomePath, "cache")
	config.WpmHomePath = wpmHomePath
	config.CachePath = cacheDir
	config.CheckoutsPath = filepath.Join(cacheDir, "checkouts")
	config.RegistryDownloadsPath = filepath.Join(cacheDir, "registry")
	config.ArtifactsPath = filepath.Join(cacheDir, "artifacts")
	return &config, nil
}

func getWpmHomePath() (string, error) {
	if v, ok := os.LookupEnv(WpmHomeEnvVar); ok {
		return v, nil
	}

	return getAppUserDataDirectory("wpm")
}

func getAppUserDataDirectory(appName string) (string, error) {
	switch runtime.GOOS {
	case "windows":
		dir, ok := os.LookupEnv("APPDATA")
		if !ok {
			return "", fmt.Errorf("APPDATA environment variable is not set")
		}
		return filepath.Join(dir, appName), nil
	default:
		dir, ok := os.LookupEnv("HOME")
		if !ok {
			return "", fmt.Errorf("HOME environment variable is not set")
		}
		return filepath.Join(dir, "."+appName), nil
	}
}

// GetPackageAbsolutePath locates the package manifest in scope: the
// WPM_PACKAGE directory when set, otherwise the nearest ancestor of the
// working directory carrying a package.yaml.
func GetPackageAbsolutePath() (manifestAbsPath string, found bool, err error) {
	if dir, ok := os.LookupEnv(PackageDirEnvVar); ok {
		absolutePath, err := filepath.Abs(filepath.Join(dir, manifest.FileName))
		if err != nil {
			return "", false, err
		}
		return absolutePath, true, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", false, err
	}
	return findInAncestors(cwd, manifest.FileName)
}

func findInAncestors(startDir, filename string) (absolutePath string, ok bool, err error) {
	p, ok, err := doFindInAncestors(startDir, filename)
	if err != nil {
		return
	}
	if !ok {
		return "", false, nil
	}
	absolutePath, err = filepath.Abs(p)
	return
}

func doFindInAncestors(startDir, filename string) (string, bool, error) {
	f := filepath.Join(startDir, filename)

	info, err := os.Stat(f)
	if err == nil && !info.IsDir() {
		return f, true, nil
	}

	parent := filepath.Dir(startDir)
	if parent == startDir {
		return "", false, nil
	}

	return doFindInAncestors(parent, filename)
}
