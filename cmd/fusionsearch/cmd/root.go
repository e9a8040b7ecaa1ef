// Package cmd provides the CLI commands for fusionsearch.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fusionsearch/internal/config"
	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/logging"
	"github.com/Aman-CERP/fusionsearch/internal/profiling"
	"github.com/Aman-CERP/fusionsearch/pkg/version"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath  string
	catalogPath string
	debug       bool
	jsonOutput  bool
	profile     profiling.Options
	profiler    *profiling.Session
}

// NewRootCmd creates the root command for the fusionsearch CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "fusionsearch",
		Short: "Hybrid catalog search with score fusion",
		Long: `fusionsearch answers catalog queries by fanning out to a keyword index,
a vector index and a SQL table, then fusing their scores into one ranking.

Results are exposed on the command line and as MCP tools for AI assistants.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("fusionsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: user and project config)")
	cmd.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "Catalog file or directory to index")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output JSON (default when stdout is not a terminal)")
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		if !opts.profile.Enabled() {
			return nil
		}
		session, err := profiling.Start(opts.profile)
		if err != nil {
			return err
		}
		opts.profiler = session
		return nil
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return opts.profiler.Stop()
	}

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newSuggestCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints errors for humans.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, apperrors.FormatForCLI(err))
		return err
	}
	return nil
}

// loadConfig resolves configuration from --config or the standard locations
// and applies --catalog.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		var dir string
		if dir, err = os.Getwd(); err == nil {
			cfg, err = config.Load(dir)
		}
	}
	if o.configPath != "" && errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.New(apperrors.ErrCodeConfigNotFound, "config file not found: "+o.configPath, err).
			WithSuggestion("Run 'fusionsearch config init' or drop --config")
	}
	if err != nil {
		return nil, apperrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Run 'fusionsearch config show' to inspect the effective configuration")
	}
	if o.catalogPath != "" {
		cfg.Sources.Catalog = o.catalogPath
	}
	return cfg, nil
}

// setupLogging installs the process logger. --debug raises the level and
// adds the default log file.
func (o *globalOptions) setupLogging(cfg logging.Config) (*slog.Logger, func(), error) {
	if o.debug {
		debug := logging.DebugConfig()
		cfg.Level = debug.Level
		if cfg.FilePath == "" {
			cfg.FilePath = debug.FilePath
		}
	}
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return slog.Default(), cleanup, nil
}

// openApp loads configuration and builds the search stack for a one-shot
// command. Logs go to stderr only with --debug.
func (o *globalOptions) openApp(ctx context.Context) (*app, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logCfg := cfg.Logging
	logCfg.WriteToStderr = o.debug
	logger, logCleanup, err := o.setupLogging(logCfg)
	if err != nil {
		return nil, nil, err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logCleanup()
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			logger.Warn("close_failed", slog.String("error", err.Error()))
		}
		logCleanup()
	}, nil
}
