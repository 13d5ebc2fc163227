package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/launchdex/internal/output"
)

func newPluginsCmd(root *rootOptions) *cobra.Command {
	var entrypoints bool

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List indexed plugins",
		Long: `List the plugins loaded from the manifest directory.

With --entrypoints the full per-plugin entrypoint data is printed as JSON,
the shape a settings screen consumes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := openEngine(cmd.Context(), root.cfg, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := eng.Close(); err != nil {
					slog.Warn("engine_close_failed", slog.String("error", err.Error()))
				}
			}()

			data := eng.coord.PluginEntrypointData()
			if entrypoints {
				return output.New(cmd.OutOrStdout(), output.FormatJSON).WriteJSON(data)
			}

			rows := make([]output.PluginRow, 0, len(eng.plugins))
			for _, p := range eng.plugins {
				rows = append(rows, output.PluginRow{
					ID:          p.ID,
					Name:        p.Name,
					Entrypoints: len(data[p.ID].Entrypoints),
					Path:        p.Path,
				})
			}
			return root.writer(cmd).Plugins(rows)
		},
	}

	cmd.Flags().BoolVar(&entrypoints, "entrypoints", false, "Print entrypoint data per plugin as JSON")
	return cmd
}
