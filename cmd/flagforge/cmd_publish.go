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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flagforge/internal/publish"
	"github.com/AleutianAI/flagforge/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	publishApp       string // App identifier to publish
	publishAuthor    string // Audit log author
	publishChangelog string // Audit log changelog
	publishJSON      bool   // Output as JSON
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Compile, sign, and publish an app's configuration",
	Long: `Compiles the app's flags, cohorts, and experiments into a signed
artifact, uploads it to the artifact store, and records the publish in
the audit log.

Examples:
  flagforge publish --app ios-client --author jdoe --changelog "enable rollout"
  flagforge publish --app ios-client --author jdoe --changelog "fix splits" --json`,
	RunE: runPublishCommand,
}

func init() {
	publishCmd.Flags().StringVar(&publishApp, "app", "", "App identifier (required)")
	publishCmd.Flags().StringVar(&publishAuthor, "author", "", "Author recorded in the audit log (required)")
	publishCmd.Flags().StringVar(&publishChangelog, "changelog", "", "Changelog recorded in the audit log (required)")
	publishCmd.Flags().BoolVar(&publishJSON, "json", false, "Output the result as JSON")
	_ = publishCmd.MarkFlagRequired("app")
	_ = publishCmd.MarkFlagRequired("author")
	_ = publishCmd.MarkFlagRequired("changelog")
	rootCmd.AddCommand(publishCmd)
}

func runPublishCommand(cmd *cobra.Command, _ []string) error {
	ux.SetPlain(publishJSON)

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	var result *publish.Result
	err = ux.WithSpinner(fmt.Sprintf("Publishing %s", publishApp), func() error {
		r, err := rt.pipeline.Publish(cmd.Context(), publish.Request{
			AppIdentifier: publishApp,
			Author:        publishAuthor,
			Changelog:     publishChangelog,
		})
		result = r
		return err
	})
	if err != nil {
		return err
	}

	if publishJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	ux.KeyValue("version", result.Version)
	ux.KeyValue("changes", fmt.Sprintf("%d (%d flags, %d cohorts)",
		len(result.Summary.Changes), result.Summary.FlagCount, result.Summary.CohortCount))
	ux.KeyValue("artifact", fmt.Sprintf("%d bytes", result.ArtifactBytes))
	return nil
}
