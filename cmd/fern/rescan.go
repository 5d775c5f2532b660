package main

import (
	"github.com/spf13/cobra"
)

func rescanCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rescan",
		Short: "Re-score every pending candidate against the current thresholds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			detector, err := a.detector()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = a.cfg.ReviewPendingLimit
			}

			summary, err := detector.Rescan(cmd.Context(), a.candidates, limit)
			if err != nil {
				return err
			}
			cmd.Printf("scanned=%d duplicates=%d changed=%d failed=%d\n", summary.Scanned, summary.Duplicates, summary.Changed, summary.Failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum candidates to rescan (defaults to REVIEW_PENDING_LIMIT)")
	return cmd
}
