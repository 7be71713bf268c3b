package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/installtool/internal/config"
	"github.com/oshokin/installtool/internal/logger"
	"github.com/oshokin/installtool/internal/service/installer"
	"github.com/oshokin/installtool/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level written to the log.
	logLevel string
	// logFile receives a copy of the log when set.
	logFile string
	// searchRoot overrides search.root.
	searchRoot string
	// searchPattern overrides search.pattern.
	searchPattern string
	// architecture overrides search.architecture.
	architecture string
	// recursive overrides search.recursive.
	recursive bool
	// manifestPath overrides the checksum manifest location.
	manifestPath string

	// logOutput is the open log file, closed when the command ends.
	logOutput io.Closer

	// rootCmd represents the base command; the work is done by subcommands.
	rootCmd = &cobra.Command{
		Use:   "installtool",
		Short: "Verify, classify and deploy CKCT release packages",
		Long: `Deploys a software release to the RCC, DCC and BCC computers.

Packages are discovered in the search root, checked against the MD5 manifest,
assigned to hosts by package-name prefix and then uploaded and installed on
each host in turn over SSH.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
	}
)

// Execute runs the installtool CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()

	if logOutput != nil {
		_ = logOutput.Close()
	}

	if err != nil {
		os.Exit(1)
	}
}

// setupLogging points the global logger at stderr and, optionally, a file.
func setupLogging(_ *cobra.Command, _ []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	var output io.Writer = os.Stderr

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, config.DefaultFilePermissions)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}

		logOutput = file
		output = io.MultiWriter(os.Stderr, file)
	}

	logger.SetLogger(logger.New(nil, output))
	logger.SetLevel(level)

	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// baseOptions collects the flags shared by every workflow.
func baseOptions(cmd *cobra.Command) *installer.Options {
	options := &installer.Options{
		ConfigPath:   configPath,
		Root:         searchRoot,
		Pattern:      searchPattern,
		Architecture: architecture,
		Manifest:     manifestPath,
		Out:          cmd.OutOrStdout(),
	}

	if cmd.Flags().Changed("recursive") {
		options.Recursive = &recursive
	}

	return options
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&logFile, "log-file", "", "append the log to this file as well")
	flags.StringVarP(&searchRoot, "root", "r", "", "directory searched for packages (overrides search.root)")
	flags.StringVar(&searchPattern, "pattern", "", "package filename glob (overrides search.pattern)")
	flags.StringVarP(&architecture, "arch", "a", "", "keep only packages whose name contains this architecture")
	flags.BoolVar(&recursive, "recursive", false, "search subdirectories of the root")
	flags.StringVarP(&manifestPath, "manifest", "m", "", "path to the MD5 manifest (overrides manifest)")

	rootCmd.AddCommand(classifyCmd, verifyCmd, deployCmd, configCmd)
}
