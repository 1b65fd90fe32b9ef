// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of gcp-utils-go.
//
// gcp-utils-go is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newKeyRingCmd creates the keyring command and its subcommands
func newKeyRingCmd(app *App) *cobra.Command {
	keyRingCmd := &cobra.Command{
		Use:   "keyring",
		Short: "Manage Cloud KMS key rings",
	}

	createCmd := &cobra.Command{
		Use:   "create <key-ring-id>",
		Short: "Create a key ring",
		Long: `Create a key ring in the configured project and location and print its GRN.
Key rings cannot be deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locationGRN, err := app.locationGRN()
			if err != nil {
				return err
			}

			client, err := app.kmsService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { app.logger.MaybeError(client.Close()) }()

			app.printVerbose("Creating key ring %s in %s", args[0], locationGRN)
			keyRingGRN, err := client.CreateKeyRing(cmd.Context(), locationGRN, args[0])
			if err != nil {
				return err
			}
			return app.printer().PrintGRN(keyRingGRN)
		},
	}

	iamPolicyCmd := &cobra.Command{
		Use:   "iam-policy <key-ring-grn>",
		Short: "Show the IAM policy bindings of a key ring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.kmsService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { app.logger.MaybeError(client.Close()) }()

			bindings, err := client.GetKeyRingIAMPolicy(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get IAM policy: %w", err)
			}
			return app.printer().PrintBindings(args[0], bindings)
		},
	}

	keyRingCmd.AddCommand(createCmd, iamPolicyCmd)
	return keyRingCmd
}
