package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

type searchOptions struct {
	limit int
	stats bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search plugin entrypoints",
		Long: `Search the entrypoints of every plugin manifest.

Every whitespace-separated word of the query must occur as a substring
of the entrypoint name or its generator name (case-insensitive).
An empty query lists everything. Results are ordered by frecency.

Examples:
  launchdex search
  launchdex search term
  launchdex search "open term" --format json
  launchdex search -n 5 --stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Show at most n results (0 = all)")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "Print index statistics after the results")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, root *rootOptions, query string, opts searchOptions) error {
	eng, err := openEngine(ctx, root.cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Warn("engine_close_failed", slog.String("error", err.Error()))
		}
	}()

	results, err := eng.coord.Search(ctx, query)
	if err != nil {
		return err
	}
	if opts.limit > 0 && len(results) > opts.limit {
		results = results[:opts.limit]
	}

	out := root.writer(cmd)
	if err := out.Results(results); err != nil {
		return err
	}
	if opts.stats && !out.JSON() {
		stats, err := eng.coord.Stats()
		if err != nil {
			return err
		}
		return out.Stats(stats)
	}
	return nil
}
