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
	"github.com/cordada/gcp-utils-go/pkg/grn"
	"github.com/spf13/cobra"
)

// newGRNCmd creates the grn command and its subcommands
func newGRNCmd(app *App) *cobra.Command {
	grnCmd := &cobra.Command{
		Use:   "grn",
		Short: "Compose Google Resource Names",
		Long: `Compose the Google Resource Name (GRN) of a project, location, key ring,
crypto key or crypto key version. Identifiers are not validated.`,
	}

	compose := func(use, short string, n int, fn func(args []string) string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(n),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.printer().PrintGRN(fn(args))
			},
		}
	}

	grnCmd.AddCommand(
		compose("project <project>", "GRN of a project", 1, func(a []string) string {
			return grn.Project(a[0])
		}),
		compose("location <project> <location>", "GRN of a location", 2, func(a []string) string {
			return grn.Location(a[0], a[1])
		}),
		compose("key-ring <project> <location> <key-ring>", "GRN of a key ring", 3, func(a []string) string {
			return grn.KeyRing(a[0], a[1], a[2])
		}),
		compose("crypto-key <project> <location> <key-ring> <crypto-key>", "GRN of a crypto key", 4, func(a []string) string {
			return grn.CryptoKey(a[0], a[1], a[2], a[3])
		}),
		compose("crypto-key-version <project> <location> <key-ring> <crypto-key> <version>", "GRN of a crypto key version", 5, func(a []string) string {
			return grn.CryptoKeyVersion(a[0], a[1], a[2], a[3], a[4])
		}),
	)

	return grnCmd
}
