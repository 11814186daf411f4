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

	"github.com/AleutianAI/flagforge/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	keysApp      string // App identifier
	keysKID      string // Key ID for activate/delete
	keysActivate bool   // Activate a newly generated key immediately
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage an app's artifact signing keys",
	Long: `Manages the Ed25519 keys that sign configuration artifacts.

Exactly one key per app is active at a time; the active key signs every
publish. Retired keys keep verifying old artifacts until they are
deleted. The active key cannot be deleted: activate a replacement first.

Examples:
  flagforge keys list --app ios-client
  flagforge keys generate --app ios-client --activate
  flagforge keys activate --app ios-client --kid 4f1c...
  flagforge keys delete --app ios-client --kid 4f1c...`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an app's signing keys",
	RunE:  runKeysListCommand,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new signing key",
	RunE:  runKeysGenerateCommand,
}

var keysActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Make a key the app's active signing key",
	RunE:  runKeysActivateCommand,
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a retired signing key",
	RunE:  runKeysDeleteCommand,
}

func init() {
	keysCmd.PersistentFlags().StringVar(&keysApp, "app", "", "App identifier (required)")
	_ = keysCmd.MarkPersistentFlagRequired("app")

	keysGenerateCmd.Flags().BoolVar(&keysActivate, "activate", false,
		"Activate the new key immediately, retiring the current one")

	keysActivateCmd.Flags().StringVar(&keysKID, "kid", "", "Key ID (required)")
	_ = keysActivateCmd.MarkFlagRequired("kid")

	keysDeleteCmd.Flags().StringVar(&keysKID, "kid", "", "Key ID (required)")
	_ = keysDeleteCmd.MarkFlagRequired("kid")

	keysCmd.AddCommand(keysListCmd, keysGenerateCmd, keysActivateCmd, keysDeleteCmd)
	rootCmd.AddCommand(keysCmd)
}

func runKeysListCommand(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	appID, err := rt.findApp(cmd, keysApp)
	if err != nil {
		return err
	}

	keys, err := rt.keys.PublicKeys(cmd.Context(), appID)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		ux.Muted("No signing keys.")
		return nil
	}

	for _, k := range keys {
		status := "retired"
		if k.Active {
			status = "active"
		}
		fmt.Printf("%s  %s  %s  created %s\n",
			k.KID, k.Algorithm, status, k.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runKeysGenerateCommand(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	appID, err := rt.findApp(cmd, keysApp)
	if err != nil {
		return err
	}

	key, err := rt.keys.Generate(cmd.Context(), appID)
	if err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("Generated key %s", key.KID))

	if keysActivate {
		if err := rt.keys.Activate(cmd.Context(), appID, key.KID); err != nil {
			return err
		}
		ux.Success(fmt.Sprintf("Activated key %s", key.KID))
	}
	return nil
}

func runKeysActivateCommand(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	appID, err := rt.findApp(cmd, keysApp)
	if err != nil {
		return err
	}

	if err := rt.keys.Activate(cmd.Context(), appID, keysKID); err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("Activated key %s", keysKID))
	return nil
}

func runKeysDeleteCommand(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	appID, err := rt.findApp(cmd, keysApp)
	if err != nil {
		return err
	}

	if err := rt.keys.Delete(cmd.Context(), appID, keysKID); err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("Deleted key %s", keysKID))
	return nil
}
