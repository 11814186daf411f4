// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flagforge/internal/domain"
	"github.com/AleutianAI/flagforge/internal/publish"
	"github.com/AleutianAI/flagforge/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	appIdentifier    string // App identifier to create
	appStoragePrefix string // Object-storage prefix
	appMinPoll       int    // Minimum client poll interval
	appCacheTTL      int    // Hard client cache lifetime
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Manage apps",
}

var appCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an app with its signing key and baseline publish",
	Long: `Creates an app, generates and activates its first signing key, and
publishes an empty baseline configuration. If any step fails the whole
creation is rolled back; an app never exists without a live, verifiable
configuration.

Examples:
  flagforge app create --app ios-client
  flagforge app create --app android-client --min-poll 600`,
	RunE: runAppCreateCommand,
}

var appListCmd = &cobra.Command{
	Use:   "list",
	Short: "List apps",
	RunE:  runAppListCommand,
}

func init() {
	appCreateCmd.Flags().StringVar(&appIdentifier, "app", "", "App identifier (required)")
	appCreateCmd.Flags().StringVar(&appStoragePrefix, "storage-prefix", "",
		"Object-storage prefix for the app's artifacts")
	appCreateCmd.Flags().IntVar(&appMinPoll, "min-poll", 300,
		"Minimum client poll interval in seconds")
	appCreateCmd.Flags().IntVar(&appCacheTTL, "cache-ttl", 86400,
		"Hard client cache lifetime in seconds")
	_ = appCreateCmd.MarkFlagRequired("app")

	appCmd.AddCommand(appCreateCmd, appListCmd)
	rootCmd.AddCommand(appCmd)
}

func runAppCreateCommand(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	app := &domain.App{
		Identifier:      appIdentifier,
		StoragePrefix:   appStoragePrefix,
		MinPollSeconds:  appMinPoll,
		CacheTTLSeconds: appCacheTTL,
	}
	var result *publish.Result
	err = ux.WithSpinner(fmt.Sprintf("Creating %s", app.Identifier), func() error {
		r, err := rt.bootstrapper.CreateApp(cmd.Context(), app)
		result = r
		return err
	})
	if err != nil {
		return err
	}

	ux.KeyValue("baseline version", result.Version)
	ux.KeyValue("artifact path", app.ArtifactPath())
	return nil
}

func runAppListCommand(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	apps, err := rt.apps.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		ux.Muted("No apps.")
		return nil
	}

	for _, app := range apps {
		fmt.Printf("%s  poll>=%ds ttl=%ds  %s\n",
			app.Identifier, app.MinPollSeconds, app.CacheTTLSeconds, app.ArtifactPath())
	}
	return nil
}
