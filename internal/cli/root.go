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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cordada/gcp-utils-go/internal/config"
	"github.com/cordada/gcp-utils-go/pkg/correlation"
	"github.com/cordada/gcp-utils-go/pkg/gcpkms"
	"github.com/cordada/gcp-utils-go/pkg/logging"
	"github.com/cordada/gcp-utils-go/pkg/metrics"
	"github.com/spf13/cobra"
)

// NewKMSClientFunc creates the client used by commands that reach Cloud KMS
type NewKMSClientFunc func(ctx context.Context, cfg *gcpkms.Config) (KMSService, error)

// KMSService is the part of *gcpkms.Client used by the CLI
type KMSService interface {
	gcpkms.KeyManager
	CreateKeyRing(ctx context.Context, locationGRN, keyRingID string) (string, error)
	AddMemberToCryptoKeyIAMPolicy(ctx context.Context, cryptoKeyGRN, member, role string) error
	GetKeyRingIAMPolicy(ctx context.Context, keyRingGRN string) ([]gcpkms.Binding, error)
	Close() error
}

// Option customizes the root command
type Option func(*App)

// WithOutput sets the writers used for results and errors
func WithOutput(out, errOut io.Writer) Option {
	return func(a *App) {
		a.out = out
		a.errOut = errOut
	}
}

// WithKMSClientFunc replaces the Cloud KMS client constructor
func WithKMSClientFunc(fn NewKMSClientFunc) Option {
	return func(a *App) {
		a.newKMSClient = fn
	}
}

// App holds the state shared by all commands of one invocation
type App struct {
	// Flag values
	configFile   string
	envFile      string
	outputFormat string
	verbose      bool
	mock         bool
	projectID    string
	location     string
	credentials  string
	transport    string
	endpoint     string

	out          io.Writer
	errOut       io.Writer
	newKMSClient NewKMSClientFunc

	config *config.Config
	logger *logging.Logger
}

func defaultKMSClient(ctx context.Context, cfg *gcpkms.Config) (KMSService, error) {
	return gcpkms.NewClient(ctx, cfg)
}

// NewRootCommand builds the gcpkms command tree
func NewRootCommand(opts ...Option) *cobra.Command {
	app := &App{
		out:          os.Stdout,
		errOut:       os.Stderr,
		newKMSClient: defaultKMSClient,
	}
	for _, opt := range opts {
		opt(app)
	}

	rootCmd := &cobra.Command{
		Use:   "gcpkms",
		Short: "gcp-utils-go CLI - Google Cloud KMS tool",
		Long: `gcpkms manages Google Cloud KMS key rings and crypto keys, encrypts and
decrypts data, and composes Google Resource Names (GRNs).

Failures reported by Google Cloud are classified and mapped to exit codes:
  3  authentication or authorization error
  4  permission denied on a resource
  5  resource not found
  6  resource already exists
  7  unrecognized Google API error

Use --mock to run crypto key operations locally, without Cloud KMS.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}
	rootCmd.SetOut(app.out)
	rootCmd.SetErr(app.errOut)

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.configFile, "config", "", "config file (YAML)")
	flags.StringVar(&app.envFile, "env-file", "", "dotenv file to load (default is ./.env when present)")
	flags.StringVarP(&app.outputFormat, "output", "o", string(OutputFormatText), "output format (text, json, yaml)")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&app.mock, "mock", false, "run crypto key operations locally")
	flags.StringVar(&app.projectID, "project", "", "Google Cloud project ID")
	flags.StringVar(&app.location, "location", "", "KMS location ID")
	flags.StringVar(&app.credentials, "credentials", "", "service account credentials file")
	flags.StringVar(&app.transport, "transport", "", "KMS transport (grpc, rest)")
	flags.StringVar(&app.endpoint, "endpoint", "", "KMS API endpoint")

	// Add subcommands
	rootCmd.AddCommand(newVersionCmd(app))
	rootCmd.AddCommand(newGRNCmd(app))
	rootCmd.AddCommand(newKeyRingCmd(app))
	rootCmd.AddCommand(newKeyCmd(app))

	return rootCmd
}

// Execute runs the root command with the process arguments and returns the
// process exit code
func Execute(opts ...Option) int {
	return Run(NewRootCommand(opts...))
}

// Run executes rootCmd, prints a failure to its error output and returns the
// exit code for it
func Run(rootCmd *cobra.Command) int {
	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, _ = correlation.Ensure(ctx)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	format, _ := rootCmd.PersistentFlags().GetString("output")
	errOut := rootCmd.ErrOrStderr()
	if perr := NewPrinter(format, errOut).PrintError(err); perr != nil {
		// Error printing to stderr is best-effort
		fmt.Fprintf(errOut, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// setup loads the configuration and applies flag overrides
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	if _, err := ParseOutputFormat(a.outputFormat); err != nil {
		return usageError(err)
	}

	if err := config.LoadEnvFile(a.envFile); err != nil {
		return usageError(fmt.Errorf("failed to load env file: %w", err))
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return usageError(err)
	}

	flags := cmd.Flags()
	if flags.Changed("project") {
		cfg.KMS.ProjectID = a.projectID
	}
	if flags.Changed("location") {
		cfg.KMS.Location = a.location
	}
	if flags.Changed("credentials") {
		cfg.KMS.CredentialsFile = a.credentials
	}
	if flags.Changed("transport") {
		cfg.KMS.Transport = a.transport
	}
	if flags.Changed("endpoint") {
		cfg.KMS.Endpoint = a.endpoint
	}
	if flags.Changed("mock") {
		cfg.KMS.Mock = a.mock
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}

	logger, err := cfg.Logger(a.errOut)
	if err != nil {
		return usageError(err)
	}

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	a.config = cfg
	a.logger = logger
	return nil
}

// printer returns a Printer for command results
func (a *App) printer() *Printer {
	return NewPrinter(a.outputFormat, a.out)
}

// printVerbose prints a message if verbose mode is enabled
func (a *App) printVerbose(format string, args ...interface{}) {
	if a.verbose {
		fmt.Fprintf(a.errOut, "[VERBOSE] "+format+"\n", args...)
	}
}
