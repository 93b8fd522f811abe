package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/templui/vaultgate/internal/app"
	"github.com/templui/vaultgate/internal/lifecycle"
)

func SweepCmd() *cobra.Command {
	kinds := make([]string, len(lifecycle.Kinds))
	for i, k := range lifecycle.Kinds {
		kinds[i] = string(k)
	}

	return &cobra.Command{
		Use:       "sweep <kind|all>",
		Short:     "Run lifecycle sweeps now",
		Long:      "Runs one lifecycle sweep, or all of them. Kinds: " + strings.Join(kinds, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: append(kinds, "all"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				return runSweep(cmd, a.Sweeper, args[0])
			})
		},
	}
}

func runSweep(cmd *cobra.Command, sweeper *lifecycle.Sweeper, name string) error {
	var reports []lifecycle.Report
	var err error

	if name == "all" {
		reports, err = sweeper.RunAll(cmd.Context())
	} else {
		kind, ok := lifecycle.ParseKind(name)
		if !ok {
			return fmt.Errorf("%w: %s", lifecycle.ErrUnknownKind, name)
		}
		var report lifecycle.Report
		report, err = sweeper.Run(cmd.Context(), kind)
		reports = append(reports, report)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tEXAMINED\tTRANSITIONED\tSKIPPED\tFAILED\tDURATION")
	var failed []error
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n", r.Kind, r.Examined, r.Transitioned, r.Skipped, len(r.Failures), r.Duration)
		for _, f := range r.Failures {
			failed = append(failed, f)
		}
	}
	tw.Flush()

	for _, f := range failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed: %v\n", f)
	}
	if err == nil && len(failed) > 0 {
		err = errors.New("some resources failed and will be retried on the next sweep")
	}
	return err
}
