package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sanisideup/fxrates/pkg/allowlist"
	"github.com/sanisideup/fxrates/pkg/client"
	"github.com/sanisideup/fxrates/pkg/config"
	"github.com/sanisideup/fxrates/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile    string
	jsonOutput bool
	verbose    bool

	// Global variables
	cfg        *config.Config
	rateClient *client.Client
	log        *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fxrates",
	Short: "Live currency conversion from the command line",
	Long: `fxrates converts amounts between currencies using live retail rates.
It can watch a currency pair in the terminal, fetch one-off quotes, and
serve rate views over HTTP for a browser front end.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A local .env file is optional
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env file: %w", err)
		}

		if err := allowlist.NewChecker().Check(cmd.Name()); err != nil {
			return err
		}

		// Skip setup for commands that don't need it
		if cmd.Name() == "configure" || cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		if cfgFile != "" {
			cfg, err = config.LoadFromPath(cfgFile)
		} else {
			// Load from default location (~/.fxrates/config.yaml)
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w\nRun 'fxrates configure' to write a config file", err)
		}

		log, err = buildLogger(cmd.Name())
		if err != nil {
			return fmt.Errorf("invalid logging config: %w", err)
		}

		rateClient = client.New(cfg, client.WithLogger(log.Named("client")))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// buildLogger creates the logger for a command. The watch view owns the
// terminal, so it only logs when an output file is configured or --verbose
// is set.
func buildLogger(command string) (*zap.Logger, error) {
	opts := logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	}
	if verbose {
		opts.Level = "debug"
	}
	if command == "watch" && opts.Output == "" && !verbose {
		opts.Output = logger.OutputDiscard
	}
	return logger.New(opts)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Exit codes:
//   - 0: Success
//   - 1: Other failure
//   - 2: Validation error
//   - 3: Pricing service error
//   - 4: Configuration error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		// Determine exit code based on error type
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type
func getExitCode(err error) int {
	switch client.ErrorKind(err) {
	case client.KindNetwork, client.KindRemote, client.KindInvalidResponse:
		return 3 // Pricing service error
	}

	var valErr *validationError
	if errors.As(err, &valErr) {
		return 2 // Validation error
	}

	errMsg := err.Error()

	if containsAny(errMsg, []string{"config", "configuration"}) {
		return 4 // Config error
	}

	if containsAny(errMsg, []string{"invalid", "unknown country", "required"}) {
		return 2 // Validation error
	}

	// Default error
	return 1
}

// validationError marks bad user input
type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

func newValidationError(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// containsAny checks if the string contains any of the substrings
func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fxrates/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
