package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/report"
)

func newCompareCmd() *cobra.Command {
	var (
		filter          dashboard.Filter
		publishedAfter  string
		publishedBefore string
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Print the per-source comparison table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if filter.PublishedAfter, err = parseFlagTime(publishedAfter, "published-after"); err != nil {
				return err
			}
			if filter.PublishedBefore, err = parseFlagTime(publishedBefore, "published-before"); err != nil {
				return err
			}
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			snap, err := report.Collect(cmd.Context(), a.Client(), nil)
			if err != nil {
				return err
			}
			return report.RenderSources(cmd.OutOrStdout(), snap.Compare(filter))
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.Source, "source", "", "restrict to one source")
	f.BoolVar(&filter.OnlyNew, "only-new", false, "only new articles")
	f.BoolVar(&filter.OnlyUnchecked, "only-unchecked", false, "only unchecked articles")
	f.BoolVar(&filter.OnlyUnmatched, "only-unmatched", false, "only unmatched articles")
	f.StringVar(&publishedAfter, "published-after", "", "earliest published timestamp (RFC3339)")
	f.StringVar(&publishedBefore, "published-before", "", "latest published timestamp (RFC3339)")
	f.IntVar(&filter.Limit, "limit", 0, "cap on articles considered (0 = all)")
	return cmd
}

func parseFlagTime(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	ts, ok := dashboard.ParseTimestamp(raw)
	if !ok {
		return nil, fmt.Errorf("--%s must be an RFC3339 timestamp", name)
	}
	return &ts, nil
}
