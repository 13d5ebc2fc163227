// Package cmd provides the CLI commands for launchdex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/launchdex/internal/config"
	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/logging"
	"github.com/Aman-CERP/launchdex/internal/output"
	"github.com/Aman-CERP/launchdex/internal/profiling"
	"github.com/Aman-CERP/launchdex/pkg/version"
)

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configPath string
	pluginsDir string
	format     string
	debug      bool
	profile    profiling.Options

	cfg            *config.Config
	loggingCleanup func()
	prevLogger     *slog.Logger
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the launchdex CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launchdex",
		Short: "Plugin-scoped launcher search index",
		Long: `launchdex indexes the entrypoints declared by launcher plugins and
answers substring searches over them, ranked by frecency.

Plugins are YAML manifests in the plugins directory (see 'launchdex config show').
Run 'launchdex watch' to keep the index current while manifests change.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.setup,
	}
	cmd.SetVersionTemplate("launchdex version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: user config plus ./.launchdex.yaml)")
	cmd.PersistentFlags().StringVar(&opts.pluginsDir, "plugins-dir", "", "Plugin manifest directory (overrides config)")
	cmd.PersistentFlags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Debug logging to stderr and "+logging.DefaultLogPath())
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newPluginsCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a failure to stderr.
func Execute() error {
	opts := &rootOptions{}
	defer opts.teardown()

	err := newRootCmd(opts).Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, lderrors.FormatForCLI(err))
	}
	return err
}

// setup loads configuration and installs logging before any subcommand runs.
func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	if _, err := output.ParseFormat(o.format); err != nil {
		return lderrors.ValidationError(err.Error(), nil).WithDetail("flag", "format")
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if o.pluginsDir != "" {
		cfg.Plugins.Dir = o.pluginsDir
	}
	o.cfg = cfg

	logCfg := cfg.LoggingConfig()
	if o.debug {
		logCfg = logging.DebugConfig()
		logCfg.Stderr = cmd.ErrOrStderr()
	}
	prev := slog.Default()
	cleanup, err := logging.Install(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup
	o.prevLogger = prev

	if o.profile.Enabled() {
		session, err := profiling.Start(o.profile)
		if err != nil {
			return err
		}
		o.profiler = session
	}

	slog.Debug("cli_started",
		slog.String("command", cmd.Name()),
		slog.String("version", version.Short()),
		slog.Any("config_sources", cfg.Sources))
	return nil
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Load(cwd)
}

// teardown stops profiling, closes the log file and restores the previous
// default logger.
func (o *rootOptions) teardown() {
	if o.profiler != nil {
		if err := o.profiler.Stop(); err != nil {
			slog.Warn("profile_write_failed", slog.String("error", err.Error()))
		}
		o.profiler = nil
	}
	if o.loggingCleanup == nil {
		return
	}
	slog.SetDefault(o.prevLogger)
	o.loggingCleanup()
	o.loggingCleanup = nil
}

// writer returns an output writer for cmd's stdout in the selected format.
func (o *rootOptions) writer(cmd *cobra.Command) *output.Writer {
	format, _ := output.ParseFormat(o.format)
	return output.New(cmd.OutOrStdout(), format)
}
