// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/geoelevate/geoelevate/internal/xdg"
)

// defaultEnvFile is loaded when present; a missing default file is not an error.
const defaultEnvFile = ".env"

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the GeoElevate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geoelevate",
		Short: "GeoElevate - geography quiz backend",
		Long: `GeoElevate serves accounts, score history, leaderboards and player
statistics for the geography quiz clients over a JSON HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file with environment overrides")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadEnvFile exports the variables in path without overriding ones already
// set in the environment.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == defaultEnvFile {
			return nil
		}
		return oops.Code("ENV_FILE_LOAD_FAILED").With("path", path).Wrap(err)
	}
	if err := godotenv.Load(path); err != nil {
		return oops.Code("ENV_FILE_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// resolveConfigFile returns the --config path, or the XDG default config file
// when the flag is unset and that file exists.
func resolveConfigFile(getenv func(string) string) (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return xdg.ConfigFile(getenv)
}
