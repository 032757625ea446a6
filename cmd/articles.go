package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/matchwatch/internal/client"
	"github.com/JakeFAU/matchwatch/internal/report"
)

func newArticlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List new articles and edit their checked and new flags.",
	}
	cmd.AddCommand(newNewArticlesCmd())
	cmd.AddCommand(newEditCmd("delete <id>...", "Delete articles and their matches.", "deleted",
		cobra.MinimumNArgs(1), (*client.Client).DeleteArticles))
	cmd.AddCommand(newEditCmd("mark-checked <id>...", "Flag articles as already compared.", "marked checked",
		cobra.MinimumNArgs(1), (*client.Client).MarkArticlesChecked))
	cmd.AddCommand(newEditCmd("mark-old <id>...", "Clear the new flag on articles.", "marked old",
		cobra.MinimumNArgs(1), (*client.Client).MarkArticlesOld))
	cmd.AddCommand(newEditCmd("reset-checked [id...]", "Clear the checked flag on articles, or on all of them.", "reset",
		cobra.ArbitraryArgs, (*client.Client).ResetChecked))
	cmd.AddCommand(&cobra.Command{
		Use:   "mark-all-new",
		Short: "Set the new flag on every article.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if err := a.Client().MarkAllNew(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "marked every article new")
			return nil
		},
	})
	return cmd
}

func newMatchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matches",
		Short: "Edit recorded matches.",
	}
	cmd.AddCommand(newEditCmd("delete <id>...", "Delete matches by id.", "deleted",
		cobra.MinimumNArgs(1), (*client.Client).DeleteMatches))
	return cmd
}

func newNewArticlesCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "List articles still flagged as new.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			articles, err := a.Client().NewArticles(cmd.Context(), source)
			if err != nil {
				return err
			}
			return report.RenderArticles(cmd.OutOrStdout(), articles)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "restrict to one source")
	return cmd
}

// newEditCmd builds a command that sends its id arguments to one bulk edit.
func newEditCmd(
	use, short, verb string,
	args cobra.PositionalArgs,
	apply func(c *client.Client, ctx context.Context, ids []int64) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if err := apply(a.Client(), cmd.Context(), ids); err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s all\n", verb)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d record(s)\n", verb, len(ids))
			return nil
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
