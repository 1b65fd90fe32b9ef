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
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// newKeyCmd creates the key command and its subcommands
func newKeyCmd(app *App) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage Cloud KMS crypto keys",
		Long:  `Create crypto keys, encrypt and decrypt data, and grant access to crypto keys`,
	}

	keyCmd.AddCommand(
		newKeyCreateCmd(app),
		newKeyEncryptCmd(app),
		newKeyDecryptCmd(app),
		newKeyAddMemberCmd(app),
	)
	return keyCmd
}

func newKeyCreateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create <key-ring-grn> [crypto-key-id]",
		Short: "Create an ENCRYPT_DECRYPT crypto key",
		Long: `Create a symmetric encryption crypto key in a key ring and print its GRN.
Without crypto-key-id a random 32 character ID is used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cryptoKeyID string
			if len(args) > 1 {
				cryptoKeyID = args[1]
			}

			km, release, err := app.keyManager(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			cryptoKeyGRN, err := km.CreateCryptoKey(cmd.Context(), args[0], cryptoKeyID)
			if err != nil {
				return err
			}
			return app.printer().PrintGRN(cryptoKeyGRN)
		},
	}
}

func newKeyEncryptCmd(app *App) *cobra.Command {
	var data, inFile string

	cmd := &cobra.Command{
		Use:   "encrypt <crypto-key-grn>",
		Short: "Encrypt data with a crypto key",
		Long: `Encrypt data with the primary version of a crypto key and print the
encrypted data as base64. The data is read from --data, --in, or stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plainData, err := readInput(cmd, data, inFile)
			if err != nil {
				return err
			}

			km, release, err := app.keyManager(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			app.printVerbose("Encrypting %d bytes with %s", len(plainData), args[0])
			encrypted, err := km.Encrypt(cmd.Context(), args[0], plainData)
			if err != nil {
				return err
			}
			return app.printer().PrintEncryptedData(args[0], encrypted)
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "plain data to encrypt")
	cmd.Flags().StringVar(&inFile, "in", "", "file with the plain data ('-' for stdin)")
	cmd.MarkFlagsMutuallyExclusive("data", "in")
	return cmd
}

func newKeyDecryptCmd(app *App) *cobra.Command {
	var data, inFile string

	cmd := &cobra.Command{
		Use:   "decrypt <crypto-key-grn>",
		Short: "Decrypt data with a crypto key",
		Long: `Decrypt base64 encrypted data produced by 'key encrypt' with the same crypto
key. The data is read from --data, --in, or stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, data, inFile)
			if err != nil {
				return err
			}
			encrypted, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(input)))
			if err != nil {
				return usageError(fmt.Errorf("encrypted data is not valid base64: %w", err))
			}

			km, release, err := app.keyManager(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			plainData, err := km.Decrypt(cmd.Context(), args[0], encrypted)
			if err != nil {
				return err
			}
			return app.printer().PrintDecryptedData(args[0], plainData)
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "base64 encrypted data")
	cmd.Flags().StringVar(&inFile, "in", "", "file with the base64 encrypted data ('-' for stdin)")
	cmd.MarkFlagsMutuallyExclusive("data", "in")
	return cmd
}

func newKeyAddMemberCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add-member <crypto-key-grn> <member> <role>",
		Short: "Grant a role on a crypto key",
		Long: `Add a binding of role to member in the IAM policy of a crypto key.

Examples of member: user:mike@example.com, group:admins@example.com,
serviceAccount:my-app@my-project.iam.gserviceaccount.com.
Examples of role: roles/cloudkms.cryptoKeyEncrypterDecrypter, roles/viewer.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.kmsService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { app.logger.MaybeError(client.Close()) }()

			cryptoKeyGRN, member, role := args[0], args[1], args[2]
			if err := client.AddMemberToCryptoKeyIAMPolicy(cmd.Context(), cryptoKeyGRN, member, role); err != nil {
				return err
			}
			return app.printer().PrintSuccess(fmt.Sprintf("Granted %s to %s on %s", role, member, cryptoKeyGRN))
		},
	}
}

// readInput returns the --data value when set, otherwise the content of
// inFile, or stdin when inFile is empty or "-".
func readInput(cmd *cobra.Command, data, inFile string) ([]byte, error) {
	if cmd.Flags().Changed("data") {
		return []byte(data), nil
	}

	if inFile == "" || inFile == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return b, nil
	}

	// #nosec G304 - Input file path is provided by the user
	b, err := os.ReadFile(inFile)
	if err != nil {
		return nil, usageError(fmt.Errorf("failed to read input file: %w", err))
	}
	return b, nil
}
