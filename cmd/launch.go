package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

func newLaunchCmd() *cobra.Command {
	var (
		opts     dashboard.LaunchOptions
		wait     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:       "launch <fetch-articles|find-matches|compare-quality>",
		Short:     "Start a backend job and optionally wait for it to settle.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(dashboard.JobKindFetchArticles), string(dashboard.JobKindFindMatches), string(dashboard.JobKindCompareQuality)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := dashboard.JobKind(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown job kind %q", args[0])
			}
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			jobID, err := a.Client().Launch(cmd.Context(), kind, opts)
			if err != nil {
				return fmt.Errorf("launch %s: %w", kind, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "launched %s job %s\n", kind, jobID)
			if !wait {
				return nil
			}
			return trackJobs(cmd.Context(), out, a, []string{jobID}, interval)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&opts.Sources, "sources", nil, "sources to fetch (fetch-articles)")
	f.StringSliceVar(&opts.CompetitorSources, "competitors", nil, "competitor sources (compare jobs)")
	f.StringVar(&opts.FromDate, "from", "", "earliest published date to consider")
	f.StringVar(&opts.ToDate, "to", "", "latest published date to consider")
	f.BoolVar(&opts.OnlyUnmatched, "only-unmatched", false, "only consider unmatched articles")
	f.BoolVar(&opts.OnlyUnchecked, "only-unchecked", false, "only consider unchecked articles")
	f.IntVar(&opts.MaxArticlesPerSource, "max-per-source", 0, "cap on articles per source (0 = backend default)")
	f.BoolVar(&wait, "wait", false, "track the job until it settles")
	f.DurationVar(&interval, "interval", 0, "status query interval (default from config)")
	return cmd
}
