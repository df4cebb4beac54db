package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helmcode/diag-analyzer/pkg/client"
	"github.com/helmcode/diag-analyzer/pkg/config"
	"github.com/helmcode/diag-analyzer/pkg/export"
	"github.com/helmcode/diag-analyzer/pkg/logging"
	"github.com/helmcode/diag-analyzer/pkg/validation"
)

var (
	configPath string
	backendURL string
	timeout    time.Duration
	logLevel   string
	logFormat  string

	cfg    = config.Default()
	logger = zap.NewNop()
)

// BindGlobalFlags registers the persistent flags and the config/logger
// lifecycle on the root command.
func BindGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.diag-analyzer/config.yaml)")
	root.PersistentFlags().StringVar(&backendURL, "backend", config.DefaultBackendURL, "Analysis backend base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout (0 uses the transport default)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Log format (console, json)")

	root.PersistentPreRunE = setup
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	}
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		loaded.BackendURL = backendURL
	}
	if flags.Changed("timeout") {
		loaded.Timeout = timeout
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		loaded.LogFormat = logFormat
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	l, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger = l
	logger.Debug("configuration loaded",
		zap.String("backend", cfg.BackendURL),
		zap.Duration("timeout", cfg.Timeout))
	return nil
}

func newClient() *client.Client {
	return client.New(cfg.BackendURL,
		client.WithTimeout(cfg.Timeout),
		client.WithLogger(logger.Named("client")))
}

func newExporter(source export.ReportSource) *export.Exporter {
	return export.New(source,
		export.WithFileName(cfg.ReportName),
		export.WithLogger(logger.Named("export")))
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	return s
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printSuccess(msg string) {
	green := color.New(color.FgGreen)
	green.Fprintf(os.Stderr, "✓ %s\n", msg)
}

func printError(msg string) {
	red := color.New(color.FgRed)
	red.Fprintf(os.Stderr, "✗ %s\n", msg)
}

func printWarning(msg string) {
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(os.Stderr, "⚠ %s\n", msg)
}

func printInfo(msg string) {
	fmt.Fprintf(os.Stderr, "ℹ %s\n", msg)
}

// reportValidation prints every rule a ValidationError carries. It returns
// false when err is not a validation error.
func reportValidation(err error) bool {
	var ve *validation.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	for _, d := range ve.Details() {
		printError(d)
	}
	return true
}
