package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tocolab/internal/auth"
	"tocolab/internal/colab"
	"tocolab/internal/config"
	"tocolab/internal/state"
)

var (
	// Global flags
	verbose bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command. Running tocolab with a file path or
// piped input (and no subcommand) behaves as push.
var rootCmd = &cobra.Command{
	Use:   "tocolab",
	Short: "Push code to Google Colab from the command line",
	Long: `tocolab turns a Python file (or stdin) into a Colab notebook, uploads it
to Google Drive, and later pulls the executed notebook back to show its
outputs in the terminal.

Running tocolab with a file path or piped input runs the push command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(authCmd)
}

// routeArgs implements the default-command behavior: any invocation whose
// first argument is not a registered subcommand (or a help/completion
// request) is treated as a push.
func routeArgs(args []string) []string {
	if len(args) == 0 {
		return []string{"push"}
	}
	switch args[0] {
	case "help", "completion", "--help", "-h":
		return args
	}
	for _, c := range rootCmd.Commands() {
		if c.Name() == args[0] {
			return args
		}
	}
	return append([]string{"push"}, args...)
}

// exitCode maps an error to the CLI exit code by taxonomy category: user
// and resolution errors, auth errors, then everything remote.
func exitCode(err error) int {
	switch {
	case errors.Is(err, errNoInput),
		errors.Is(err, errEmptyInput),
		errors.Is(err, errFileNotFound),
		errors.Is(err, colab.ErrBadLocator),
		errors.Is(err, state.ErrNoLastPush):
		return config.ExitUserError
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrAuthRequired):
		return config.ExitAuthError
	default:
		return config.ExitNetworkError
	}
}

func main() {
	rootCmd.SetArgs(routeArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, auth.ErrMissingCredentials) {
			fmt.Fprint(os.Stderr, auth.SetupGuide())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
