package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand, which scans an ID range on the
// calling goroutine and exits when the range is exhausted or on SIGINT.
func newCrawlCmd() *cobra.Command {
	var startID, endID int64
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Scans a range of document IDs",
		Long: `Visits every identifier in [start, end] in ascending order, skipping
identifiers already in the catalog, and records each one that resolves to a
downloadable file. The catalog is flushed periodically and when the scan ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runErr := appInstance.Crawler().Run(ctx, startID, endID)
			snap := appInstance.Crawler().Status()
			appInstance.Logger().Info("crawl command finished",
				zap.Int64("current_id", snap.CurrentID),
				zap.Int64("found", snap.FoundCount),
				zap.Int64("elapsed_seconds", snap.ElapsedSeconds),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "scanned up to %d of %d, found %d in %ds\n",
				snap.CurrentID, snap.RangeEnd, snap.FoundCount, snap.ElapsedSeconds)
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return fmt.Errorf("run crawl: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&startID, "start", 0, "first document ID (inclusive)")
	cmd.Flags().Int64Var(&endID, "end", 0, "last document ID (inclusive)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
