package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stockline/internal/domain"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every document total from its lines",
		Long: `Recompute every document total from its lines and correct any that drifted.

Item quantities are never touched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			rt, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			rep, err := rt.engine.Reconcile(cmd.Context())
			if err != nil {
				return out.Fail("reconcile failed", err)
			}
			return out.Success(rep, func(w io.Writer) {
				fmt.Fprintf(w, "Scanned %d documents, corrected %d\n", rep.Scanned, rep.Corrected)
				for _, c := range rep.Corrections {
					fmt.Fprintf(w, "  document %d: %s -> %s\n", c.DocumentID,
						domain.FormatMoney(c.Before), domain.FormatMoney(c.After))
				}
			})
		},
	}
}

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	FailOnDrift bool
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare item quantities against their line history",
		Long: `Compare each item's quantity with initial + purchased - sold.

Drift is expected only where the zero floor clamped a decrease. Nothing is
written.

Exit codes:
  0 - No drift, or drift without --fail-on-drift
  1 - Drift found with --fail-on-drift`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			rep, err := rt.engine.Audit(cmd.Context())
			if err != nil {
				return out.Fail("audit failed", err)
			}
			err = out.Success(rep, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ITEM\tNAME\tEXPECTED\tACTUAL\tCLAMPED\tDRIFT")
				for _, it := range rep.Items {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%t\n", it.ItemID, it.Name, it.Expected, it.Actual, it.Clamped, it.Drift)
				}
				_ = tw.Flush()
				fmt.Fprintf(w, "%d of %d items drifted\n", rep.Drifted, len(rep.Items))
			})
			if err != nil {
				return err
			}
			if opts.FailOnDrift && rep.Drifted > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d item(s) drifted", rep.Drifted))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.FailOnDrift, "fail-on-drift", false, "exit 1 when any item drifted")

	return cmd
}
