package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stockline/internal/domain"
	"github.com/roach88/stockline/internal/report"
)

// NewReportCommand creates the report command and its subcommands.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read-only inventory reports",
	}

	cmd.AddCommand(newReportItemsCommand(rootOpts))
	cmd.AddCommand(newReportAvailableCommand(rootOpts))
	cmd.AddCommand(newReportStockValueCommand(rootOpts))
	cmd.AddCommand(newReportAlertsCommand(rootOpts))
	cmd.AddCommand(newReportHistoryCommand(rootOpts))
	cmd.AddCommand(newReportDocumentCommand(rootOpts))

	return cmd
}

// withReporter opens the database, runs fn with a reporter over it and
// prints what fn returns.
func withReporter[T any](opts *RootOptions, cmd *cobra.Command, what string,
	fn func(context.Context, *report.Reporter) (T, error), render func(io.Writer, T)) error {
	out := opts.formatter(cmd)
	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	v, err := fn(cmd.Context(), report.New(rt.store))
	if err != nil {
		return out.Fail(what+" failed", err)
	}
	return out.Success(v, func(w io.Writer) { render(w, v) })
}

func newReportItemsCommand(opts *RootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:           "items",
		Short:         "List items, optionally in one category",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReporter(opts, cmd, "items report",
				func(ctx context.Context, r *report.Reporter) ([]report.ItemDetail, error) {
					if category != "" {
						return r.ItemsByCategory(ctx, category)
					}
					return r.Items(ctx)
				}, writeItems)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category name")
	return cmd
}

func newReportAvailableCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "available",
		Short:         "List items with stock on hand",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReporter(opts, cmd, "available report",
				func(ctx context.Context, r *report.Reporter) ([]report.ItemDetail, error) {
					return r.AvailableItems(ctx)
				}, writeItems)
		},
	}
}

func newReportStockValueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stock-value",
		Short:         "Total value of stock on hand",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReporter(opts, cmd, "stock value report",
				func(ctx context.Context, r *report.Reporter) (report.StockValuation, error) {
					return r.StockValue(ctx)
				},
				func(w io.Writer, v report.StockValuation) {
					fmt.Fprintf(w, "Stock value: %s (%d units across %d items)\n", domain.FormatMoney(v.Total), v.Units, v.Items)
				})
		},
	}
}

func newReportAlertsCommand(opts *RootOptions) *cobra.Command {
	var (
		itemID   int64
		openOnly bool
	)
	cmd := &cobra.Command{
		Use:           "alerts",
		Short:         "List low-stock alerts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var item *int64
			if cmd.Flags().Changed("item") {
				item = &itemID
			}
			return withReporter(opts, cmd, "alerts report",
				func(ctx context.Context, r *report.Reporter) ([]domain.Alert, error) {
					return r.Alerts(ctx, item, openOnly)
				},
				func(w io.Writer, alerts []domain.Alert) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tITEM\tSTATE\tNOTES")
					for _, a := range alerts {
						state := "open"
						if a.Resolved {
							state = "resolved"
						}
						fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", a.ID, a.ItemID, state, a.Notes)
					}
					_ = tw.Flush()
				})
		},
	}
	cmd.Flags().Int64Var(&itemID, "item", 0, "only alerts for this item id")
	cmd.Flags().BoolVar(&openOnly, "open", false, "only unresolved alerts")
	return cmd
}

func newReportHistoryCommand(opts *RootOptions) *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "history <counterparty-id>",
		Short: "Purchase or sales history of a counterparty",
		Long: `Show the document lines of a counterparty: sales for a customer,
purchases for a supplier. With --as the counterparty must be of that kind.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("%q is not a counterparty id", args[0]))
			}
			fetch := (*report.Reporter).History
			switch domain.CounterpartyKind(as) {
			case "":
			case domain.CounterpartyCustomer:
				fetch = (*report.Reporter).CustomerHistory
			case domain.CounterpartySupplier:
				fetch = (*report.Reporter).SupplierHistory
			default:
				return NewExitError(ExitCommandError, fmt.Sprintf("--as must be customer or supplier, got %q", as))
			}
			return withReporter(opts, cmd, "history report",
				func(ctx context.Context, r *report.Reporter) ([]report.HistoryRow, error) {
					return fetch(r, ctx, id)
				},
				func(w io.Writer, rows []report.HistoryRow) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "DATE\tDOCUMENT\tITEM\tQTY\tPRICE\tVALUE")
					for _, r := range rows {
						fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\n", r.Date.Format("2006-01-02"), r.DocumentID,
							r.ItemName, r.Quantity, domain.FormatMoney(r.UnitPrice), domain.FormatMoney(r.LineValue))
					}
					_ = tw.Flush()
				})
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "require the counterparty to be a customer or a supplier")
	return cmd
}

func newReportDocumentCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "document <document-id>",
		Short:         "Show a document and its lines",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("%q is not a document id", args[0]))
			}
			return withReporter(opts, cmd, "document report",
				func(ctx context.Context, r *report.Reporter) (report.DocumentDetail, error) {
					return r.Document(ctx, id)
				},
				func(w io.Writer, d report.DocumentDetail) {
					fmt.Fprintf(w, "Document %d (%s, %s) total %s\n", d.ID, d.Kind, d.Date.Format("2006-01-02"), domain.FormatMoney(d.Total))
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ITEM\tNAME\tQTY\tPRICE\tVALUE")
					for _, l := range d.Lines {
						fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", l.ItemID, l.ItemName, l.Quantity,
							domain.FormatMoney(l.UnitPrice), domain.FormatMoney(l.LineValue))
					}
					_ = tw.Flush()
				})
		},
	}
}

func writeItems(w io.Writer, items []report.ItemDetail) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tQTY\tREORDER\tPRICE")
	for _, it := range items {
		category := "-"
		if it.CategoryName != nil {
			category = *it.CategoryName
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n", it.ID, it.Name, category, it.Quantity, it.ReorderLevel, domain.FormatMoney(it.UnitPrice))
	}
	_ = tw.Flush()
}
