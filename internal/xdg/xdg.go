// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package xdg locates GeoElevate files under the XDG Base Directory layout.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName        = "geoelevate"
	configFileName = "config.yaml"
)

// ConfigDir returns the GeoElevate config directory.
// Checks XDG_CONFIG_HOME first, falls back to $HOME/.config.
func ConfigDir(getenv func(string) string) (string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if base := getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_NO_HOME").Errorf("neither XDG_CONFIG_HOME nor HOME is set")
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigFile returns the path of config.yaml in the config directory if that
// file exists, or "" otherwise.
func ConfigFile(getenv func(string) string) (string, error) {
	dir, err := ConfigDir(getenv)
	if err != nil {
		return "", nil //nolint:nilerr // no home means no default file
	}
	path := filepath.Join(dir, configFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", oops.Code("XDG_STAT_FAILED").With("path", path).Wrap(err)
	}
	return path, nil
}
