// Package cli implements the cobra-based commands for markovbotctl.
//
// Each subcommand (render, build, deploy, status, logs, start, stop,
// remove, update, verify, config) lives in its own file within this
// package. This file defines the root command, the global flags, and
// the error-to-exit-code translation.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// defaultDeploymentName is used when a command that takes a deployment
// name is called without one. A single-bot host never needs to name
// anything.
const defaultDeploymentName = "markovbot"

// Global flag variables shared across all subcommands. They are bound
// to persistent flags on the root command, which makes them available
// to every subcommand automatically.
var (
	// jsonOutput switches command output to JSON for machine
	// consumption. Errors go to stderr in both modes.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool
)

// logger is the process-wide zap logger, initialized in
// PersistentPreRunE and synced in PersistentPostRun. It writes to
// stderr; stdout is reserved for command output.
var logger = zap.NewNop()

// Version, Commit and Date are set at build time via ldflags, injected
// from the main package.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command. The
// root command itself performs no action; it provides help text,
// global flags and the logger lifecycle.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "markovbotctl",
		Short: "Build, deploy and operate the markovbot Discord bot container",
		Long: `markovbotctl owns the container packaging of the markovbot Discord bot.

It renders the build definition to a Dockerfile or compose file, builds
the image with a tag derived from the dependency lockfile, deploys the
bot as a non-root container, and inspects running deployments. All
deployment state lives in Docker container labels; there is no state
file.`,

		// Errors are formatted by Execute, not by cobra.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			config.OutputPaths = []string{"stderr"}
			if verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			built, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger = built
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(NewRenderCommand())
	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewDeployCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewLogsCommand())
	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewStopCommand())
	rootCmd.AddCommand(NewRemoveCommand())
	rootCmd.AddCommand(NewUpdateCommand())
	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// Execute runs the root command and translates errors into process
// exit codes. CLIError values carry their own code; anything else
// exits with the general error code.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error in the format selected by --json.
// Errors always go to stderr; stdout stays clean for command output.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]any{
			"error": map[string]any{
				"message": message,
			},
		}
		if underlying != nil {
			errObj["error"].(map[string]any)["detail"] = underlying.Error()
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// deploymentNameArg resolves the optional positional deployment name.
func deploymentNameArg(args []string) (string, error) {
	name := defaultDeploymentName
	if len(args) > 0 {
		name = args[0]
	}
	if err := model.ValidateName(name); err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "invalid deployment name", err)
	}
	return name, nil
}
