package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/launchdex/internal/config"
	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration",
		Long: `Configuration is read from, lowest precedence first:
  1. built-in defaults
  2. the user config (` + config.GetUserConfigPath() + `)
  3. .launchdex.yaml in the working directory
  4. LAUNCHDEX_* environment variables

--config replaces 2 and 3 with a single file.`,
	}

	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := root.writer(cmd)
			if out.JSON() {
				return out.WriteJSON(root.cfg)
			}

			data, err := yaml.Marshal(root.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			for _, src := range root.cfg.Sources {
				out.Info("# from %s", src)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default user configuration",
		Long: `Write the default configuration to the user config file. An existing
file is kept unless --force is given, in which case it is backed up first.`,
		Args: cobra.NoArgs,
		// Runs even when the current configuration is invalid.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return lderrors.ValidationError("config file already exists", nil).
					WithDetail("path", path).
					WithSuggestion("Use --force to overwrite (a backup is kept)")
			}

			backup, err := config.BackupFile(path)
			if err != nil {
				return err
			}
			cfg := config.NewConfig()
			if err := cfg.WriteYAML(path); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Plugins.Dir, 0o755); err != nil {
				return fmt.Errorf("failed to create plugin directory: %w", err)
			}

			w := cmd.OutOrStdout()
			if backup != "" {
				_, _ = fmt.Fprintf(w, "Backed up %s\n", backup)
			}
			_, _ = fmt.Fprintf(w, "Wrote %s\nPlugin manifests go in %s\n", path, cfg.Plugins.Dir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "path",
		Short:             "Print the user config file path",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
