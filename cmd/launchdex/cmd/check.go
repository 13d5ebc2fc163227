package cmd

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/index"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the text index and the metadata agree",
		Long: `Load every manifest, then compare each indexed document with the
metadata store. Exits non-zero when an inconsistency is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, err := openEngine(ctx, root.cfg, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := eng.Close(); err != nil {
					slog.Warn("engine_close_failed", slog.String("error", err.Error()))
				}
			}()

			result, err := index.NewConsistencyChecker(eng.coord).Check(ctx)
			if err != nil {
				return err
			}
			if err := root.writer(cmd).Check(result); err != nil {
				return err
			}
			if !result.OK() {
				return lderrors.ConsistencyViolation("search index and metadata disagree").
					WithDetail("inconsistencies", strconv.Itoa(len(result.Inconsistencies)))
			}
			return nil
		},
	}
}
