package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/matchwatch/internal/report"
)

func newReportCmd() *cobra.Command {
	var export bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the comparison report, optionally exporting it as JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			snap, err := report.Collect(cmd.Context(), a.Client(), a.Client())
			if err != nil {
				return err
			}
			r := snap.Report(time.Now())
			out := cmd.OutOrStdout()
			if err := r.Render(out); err != nil {
				return err
			}
			if !export {
				return nil
			}
			uri, err := r.Export(cmd.Context(), a.Reports(), a.Config().Reports.Prefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nexported to %s\n", uri)
			return nil
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "write the report to the configured report store")
	return cmd
}
