package cmd

import (
	"github.com/spf13/cobra"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/telemetry"
)

func newReportCmd(root *rootOptions) *cobra.Command {
	var days, top int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show query telemetry",
		Long: `Summarise the searches recorded in the telemetry database: query
types, latency distribution, most frequent terms and queries that found nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			if !cfg.Telemetry.Enabled {
				return lderrors.ConfigError("telemetry is disabled", nil).
					WithSuggestion("Set telemetry.enabled: true in the config file")
			}

			st, err := telemetry.OpenSQLiteStore(cfg.Telemetry.DBPath, cfg.Telemetry.ZeroResultBuffer)
			if err != nil {
				return lderrors.IndexError("failed to open telemetry database", err).
					WithDetail("path", cfg.Telemetry.DBPath)
			}
			defer func() { _ = st.Close() }()

			snapshot, err := st.Report(days, top)
			if err != nil {
				return lderrors.IndexError("failed to read telemetry", err)
			}
			return root.writer(cmd).Report(snapshot)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Days of history to include")
	cmd.Flags().IntVar(&top, "top", 10, "Number of top terms to show")
	return cmd
}
