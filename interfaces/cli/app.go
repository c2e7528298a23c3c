// Package cli provides the command-line interface of the compliance analyzer.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/adcompliance"
)

// Version information set at build time.
var (
	Version   = adcompliance.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root       *cobra.Command
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	envFiles   []string
	connect    ConnectFunc
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		envFiles: []string{".env"},
		connect:  connectAzure,
	}

	app.root = &cobra.Command{
		Use:   "adcompliance",
		Short: "Advertisement compliance analysis agent",
		Long: `adcompliance analyzes advertisement images for legal compliance issues:
mandatory disclosures, typography rules, price and date consistency.

A reasoning loop drives seven analysis tools over each image and grounds the
verdict in legislation retrieved from a local knowledge base.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Path to configuration file (YAML or JSON)")

	// Add subcommands
	app.root.AddCommand(
		app.newVersionCmd(),
		app.newAnalyzeCmd(),
		app.newIndexCmd(),
		app.newStatsCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithConnect replaces how the model service is reached.
func (a *App) WithConnect(fn ConnectFunc) *App {
	a.connect = fn
	return a
}

// WithEnvFiles sets the dotenv files loaded before reading credentials.
func (a *App) WithEnvFiles(files ...string) *App {
	a.envFiles = files
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	// Set up signal handling
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "adcompliance version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
