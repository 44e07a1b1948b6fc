// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/medtrack/medtrack/internal/config"
	"github.com/medtrack/medtrack/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the MedTrack CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "medtrack",
		Short: "MedTrack - patient and doctor health tracking",
		Long: `MedTrack serves the health-tracking API for patients and doctors,
with role-scoped sessions, login throttling and per-user records.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/medtrack/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUsersCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig loads configuration for cmd from the --config file and the
// command's flags. Without --config, $XDG_CONFIG_HOME/medtrack/config.yaml
// is used when it exists.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file := configFile
	if file == "" {
		var err error
		if file, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(config.LoadOptions{
		File:  file,
		Flags: cmd.Flags(),
	})
}

// addStorageFlags registers the flags selecting the storage backend.
func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().String("storage-backend", "memory", "storage backend (memory or postgres)")
	cmd.Flags().String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")
}
